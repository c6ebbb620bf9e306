/**
 * REST API router
 */
package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rosbit/mgin"

	riotbackend "model-search/backends/riot"
	"model-search/conf"
	"model-search/rest"
)

// 设置路由，进入服务状态
func StartService() error {
	initWorkers()

	api := mgin.NewMgin()

	api.GET("/models", rest.ListModels)
	api.GET("/model/:name", rest.ShowModel)
	api.POST("/model/:name", rest.CreateModel)
	api.DELETE("/model/:name", rest.DeleteModel)

	api.PUT("/doc/:model", rest.AddDoc)
	api.PUT("/docs/:model", rest.AddDocs)
	api.DELETE("/doc/:model", rest.DeleteDoc)
	api.DELETE("/docs/:model", rest.DeleteDocs)

	api.GET("/search/:model", rest.Search)
	api.GET("/autocomplete/:model", rest.Autocomplete)

	api.POST("/refresh", rest.RefreshBackends)
	api.POST("/reset", rest.ResetBackends)

	// health check
	api.GET("/health", func(c *mgin.Context) {
		c.String(http.StatusOK, "OK\n")
	})

	serviceConf := conf.ServiceConf
	listenParam := fmt.Sprintf("%s:%d", serviceConf.ListenHost, serviceConf.ListenPort)
	log.Printf("I am listening at %s...\n", listenParam)
	return http.ListenAndServe(listenParam, api)
}

func initWorkers() {
	riotbackend.StartWorkers(conf.ServiceConf.WorkerNum)

	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGKILL, syscall.SIGTERM, syscall.SIGSTOP, syscall.SIGQUIT)
	go func() {
		for range c {
			log.Println("I will exit in a while")
			riotbackend.StopWorkers()
			os.Exit(0)
		}
	}()
}
