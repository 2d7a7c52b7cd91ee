package main

import (
	"flag"
	"os"
	"sync"

	"github.com/ohowland/cgc_topology/internal/pkg/config"
	"github.com/ohowland/cgc_topology/internal/pkg/hmi"
	logging "github.com/op/go-logging"
)

func main() {
	networkPath := flag.String("network", "./config/network.yaml", "network description")
	logPath := flag.String("log", "hmi.log", "log file, the terminal belongs to the view")
	flag.Parse()

	out, err := os.OpenFile(*logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		panic(err)
	}
	defer out.Close()
	logging.SetBackend(logging.NewLogBackend(out, "", 0))

	n, err := config.LoadNetwork(*networkPath)
	if err != nil {
		panic(err)
	}

	if err := hmi.New(n, &sync.Mutex{}).Run(); err != nil {
		panic(err)
	}
}
