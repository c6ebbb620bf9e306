// global conf
//  ENV:
//   CONF_FILE        --- path to the configuration file
//   TZ               --- time zone name, e.g. "Asia/Shanghai"
//
// $CONF_FILE in JSON:
// {
//	"listen-host": "",
//	"listen-port": 7080,
//	"worker-num": 5,
//	"root-dir": "/path/to/models",
//	"backends": {
//		"default": {
//			"backend": "mem",
//			"cache-size": 128
//		},
//		"archive": {
//			"backend": "bleve",
//			"path": "/path/to/bleve-indexes",
//			"auto-update": false
//		}
//	}
// }
package conf

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

var (
	ServiceConf struct {
		ListenHost string                            `json:"listen-host"`
		ListenPort int                               `json:"listen-port"`
		WorkerNum  int                               `json:"worker-num"`
		RootDir    string                            `json:"root-dir"`
		Backends   map[string]map[string]interface{} `json:"backends"`
	}

	// default time zone, overridden by env TZ
	Loc = time.UTC
)

// CheckGlobalConf loads and checks the global configuration.
func CheckGlobalConf() error {
	if tz := os.Getenv("TZ"); tz != "" {
		if loc, err := time.LoadLocation(tz); err == nil {
			Loc = loc
		}
	}

	confFile := os.Getenv("CONF_FILE")
	if confFile == "" {
		return fmt.Errorf("env \"CONF_FILE\" not set")
	}
	fp, err := os.Open(confFile)
	if err != nil {
		return err
	}
	defer fp.Close()
	if err = json.NewDecoder(fp).Decode(&ServiceConf); err != nil {
		return err
	}

	if err = checkMust(); err != nil {
		return err
	}
	applyDefaults()
	return nil
}

func checkMust() error {
	c := &ServiceConf

	if c.ListenPort <= 0 {
		return fmt.Errorf("listening port expected in conf")
	}
	if c.RootDir == "" {
		return fmt.Errorf("root-dir expected in conf")
	}
	if fi, err := os.Stat(c.RootDir); err != nil {
		return err
	} else if !fi.IsDir() {
		return fmt.Errorf("%s is not a directory", c.RootDir)
	}

	for name, entry := range c.Backends {
		if kind, _ := entry["backend"].(string); kind == "" {
			return fmt.Errorf("backend entry %s has no \"backend\" key", name)
		}
	}
	return nil
}

func applyDefaults() {
	c := &ServiceConf
	if c.WorkerNum <= 0 {
		c.WorkerNum = 5
	}
	if len(c.Backends) == 0 {
		c.Backends = map[string]map[string]interface{}{
			"default": {"backend": "mem"},
		}
	}
}

// DumpConf prints the global configuration.
func DumpConf() {
	fmt.Printf("conf: %v\n", ServiceConf)
	fmt.Printf("TZ time location: %v\n", Loc)
}
