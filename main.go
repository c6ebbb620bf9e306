package main

import (
	"log"

	_ "model-search/backends/bleve"
	_ "model-search/backends/mem"
	_ "model-search/backends/riot"
	"model-search/conf"
	"model-search/rest"
	"model-search/schema"
	"model-search/search"
)

func main() {
	if err := conf.CheckGlobalConf(); err != nil {
		log.Fatalf("[error] %v\n", err)
	}
	conf.DumpConf()

	reg := schema.NewRegistry()
	if err := reg.LoadModels(conf.ServiceConf.RootDir); err != nil {
		log.Fatalf("[error] loading models: %v\n", err)
	}

	search.Configure(conf.ServiceConf.Backends)
	rest.SetRegistry(reg)

	if err := StartService(); err != nil {
		log.Fatalf("[error] %v\n", err)
	}
}
