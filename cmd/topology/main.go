package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/ohowland/cgc_topology/internal/pkg/comm/modbuscomm"
	"github.com/ohowland/cgc_topology/internal/pkg/config"
	"github.com/ohowland/cgc_topology/internal/pkg/database/mongodb"
	"github.com/ohowland/cgc_topology/internal/pkg/datastreams/mqtt"
	"github.com/ohowland/cgc_topology/internal/pkg/datastreams/natshandler"
	"github.com/ohowland/cgc_topology/internal/pkg/datastreams/sqldb"
	"github.com/ohowland/cgc_topology/internal/pkg/network"
	"github.com/ohowland/cgc_topology/internal/pkg/webservice"
	logging "github.com/op/go-logging"
)

var logger = logging.MustGetLogger("main")

var format = logging.MustStringFormatter(
	`%{time:15:04:05.000} %{module} ▶ %{level:.4s} %{message}`,
)

func setupLogging(level logging.Level) {
	backend := logging.NewLogBackend(os.Stderr, "", 0)
	formatted := logging.NewBackendFormatter(backend, format)
	leveled := logging.AddModuleLevel(formatted)
	leveled.SetLevel(level, "")
	logging.SetBackend(leveled)
}

func main() {
	configPath := flag.String("config", "./config/topology.json", "daemon configuration")
	flag.Parse()

	cfg, err := config.LoadDaemon(*configPath)
	if err != nil {
		panic(err)
	}
	level, err := cfg.Level()
	if err != nil {
		panic(err)
	}
	setupLogging(level)

	logger.Info("[Main] Starting topology v0.0.1")
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("[Main] Building Network")
	n, err := config.LoadNetwork(cfg.Network)
	if err != nil {
		panic(err)
	}

	// lock guards n between the switch loop and the webservice
	lock := &sync.Mutex{}
	stoppers := linkHandlers(cfg, n, lock)

	ctx := context.Background()
	lock.Lock()
	logBuses(ctx, n)
	lock.Unlock()

	if cfg.Modbus == "" {
		logger.Info("[Main] No switch poller configured")
		<-sigs
		shutdown(stoppers)
		return
	}

	logger.Info("[Main] Starting Modbus Poller")
	poller, err := modbuscomm.New(cfg.Modbus)
	if err != nil {
		panic(err)
	}
	readings := make(chan map[string]bool)
	go poller.Process(readings, cfg.Interval())
	stoppers = append(stoppers, poller.Stop)

loop:
	for {
		select {
		case states := <-readings:
			lock.Lock()
			applyReadings(ctx, n, states)
			lock.Unlock()
		case <-sigs:
			break loop
		}
	}
	shutdown(stoppers)
}

func applyReadings(ctx context.Context, n *network.Network, states map[string]bool) {
	changed, err := n.ApplySwitchStates(ctx, states)
	if err != nil {
		logger.Warningf("[Main] %v", err)
	}
	if len(changed) == 0 {
		return
	}
	sort.Strings(changed)
	logger.Infof("[Main] Switches changed: %v", changed)
	logBuses(ctx, n)
}

// linkHandlers starts every configured handler and returns their Stop funcs.
func linkHandlers(cfg config.Daemon, n *network.Network, lock *sync.Mutex) []func() {
	stoppers := make([]func(), 0)

	if cfg.MongoDB != "" {
		logger.Info("[Main] Connecting MongoDB Service")
		h, err := mongodb.New(cfg.MongoDB, n)
		if err != nil {
			panic(err)
		}
		go h.Process()
		stoppers = append(stoppers, h.Stop)
	}

	if cfg.NATS != "" {
		logger.Info("[Main] Connecting NATS Stream")
		h, err := natshandler.New(cfg.NATS, n)
		if err != nil {
			panic(err)
		}
		go h.Process()
		stoppers = append(stoppers, h.Stop)
	}

	if cfg.MQTT != "" {
		logger.Info("[Main] Connecting MQTT Broker")
		h, err := mqtt.New(cfg.MQTT, n)
		if err != nil {
			panic(err)
		}
		go h.Process()
		stoppers = append(stoppers, h.Stop)
	}

	if cfg.SQL != "" {
		logger.Info("[Main] Connecting SQL Journal")
		h, err := sqldb.New(cfg.SQL, n)
		if err != nil {
			panic(err)
		}
		go h.Process()
		stoppers = append(stoppers, h.Stop)
	}

	if cfg.Webservice != "" {
		logger.Info("[Main] Starting Webservice")
		app, err := webservice.New(cfg.Webservice, n, lock)
		if err != nil {
			panic(err)
		}
		go app.Process()
		stoppers = append(stoppers, app.Stop)
	}
	return stoppers
}

func logBuses(ctx context.Context, n *network.Network) {
	for _, s := range n.Snapshots(ctx, network.ViewBus) {
		for _, b := range s.Buses {
			logger.Infof("[Main] %s %s: %v %v", s.VoltageLevel, b.ID, b.Members, b.Terminals)
		}
	}
	logger.Infof("[Main] %d connected components", len(n.ConnectedComponents(ctx)))
}

func shutdown(stoppers []func()) {
	logger.Info("[Main] Stopping system")
	for _, stop := range stoppers {
		go stop()
	}
	time.Sleep(1 * time.Second)
}
