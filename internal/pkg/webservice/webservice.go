/*
webservice.go HTTP read access to a network. Bus views and connected
components are served as JSON, and topology events are streamed to
websocket clients as they are published.
*/

package webservice

import (
	"context"
	"encoding/json"
	"errors"
	"io/ioutil"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/ohowland/cgc_topology/internal/pkg/msg"
	"github.com/ohowland/cgc_topology/internal/pkg/network"
	logging "github.com/op/go-logging"
)

var logger = logging.MustGetLogger("webservice")

const defaultPort = "8080"

type config struct {
	Port string `json:"Port"`
}

// VoltageLevel is the listing entry of one voltage level.
type VoltageLevel struct {
	ID       string `json:"ID"`
	Name     string `json:"Name,omitempty"`
	Topology string `json:"Topology"`
}

// Component lists the bus view buses of one connected component.
type Component struct {
	Num   int      `json:"Num"`
	Buses []string `json:"Buses"`
}

// Event is one streamed message.
type Event struct {
	Topic   string      `json:"Topic"`
	Payload interface{} `json:"Payload"`
}

// App serves a network. mux guards every network access and is shared with
// whoever else mutates the network.
type App struct {
	mux      *sync.Mutex
	network  *network.Network
	config   config
	upgrader websocket.Upgrader
	server   *http.Server
}

func New(configPath string, n *network.Network, lock *sync.Mutex) (*App, error) {
	jsonConfig, err := ioutil.ReadFile(configPath)
	if err != nil {
		return nil, err
	}
	cfg := config{}
	if err := json.Unmarshal(jsonConfig, &cfg); err != nil {
		return nil, err
	}
	if cfg.Port == "" {
		cfg.Port = defaultPort
	}
	return newApp(cfg, n, lock), nil
}

func newApp(cfg config, n *network.Network, lock *sync.Mutex) *App {
	app := &App{
		mux:     lock,
		network: n,
		config:  cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	app.server = &http.Server{Addr: ":" + cfg.Port, Handler: app.Router()}
	return app
}

func (app *App) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/", app.BaseHandler)
	r.HandleFunc("/voltagelevels", app.VoltageLevelsHandler).Methods("GET")
	r.HandleFunc("/voltagelevels/{vl}/buses", app.BusesHandler).Methods("GET")
	r.HandleFunc("/components", app.ComponentsHandler).Methods("GET")
	r.HandleFunc("/stream", app.StreamHandler)
	return r
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		logger.Warningf("[Webservice] malformed JSON: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		logger.Warningf("[Webservice] %v", err)
	}
}

func (app *App) BaseHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(http.StatusOK)
}

func (app *App) VoltageLevelsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	app.mux.Lock()
	vls := app.network.VoltageLevels()
	out := make([]VoltageLevel, 0, len(vls))
	for _, vl := range vls {
		out = append(out, VoltageLevel{ID: vl.ID(), Name: vl.Name(), Topology: vl.TopologyKind().String()})
	}
	app.mux.Unlock()
	writeJSON(w, http.StatusOK, out)
}

// BusesHandler serves the snapshot of one voltage level. The view query
// parameter selects the view, the bus view by default.
func (app *App) BusesHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	vars := mux.Vars(r)
	view, err := network.ParseView(r.URL.Query().Get("view"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"Error": err.Error()})
		return
	}

	app.mux.Lock()
	s, err := app.network.Snapshot(r.Context(), vars["vl"], view)
	app.mux.Unlock()
	if errors.Is(err, network.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"Error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (app *App) ComponentsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	app.mux.Lock()
	components := app.network.ConnectedComponents(r.Context())
	out := make([]Component, 0, len(components))
	for _, c := range components {
		ids := make([]string, 0, len(c.Buses))
		for _, b := range c.Buses {
			ids = append(ids, b.ID())
		}
		out = append(out, Component{Num: c.Num, Buses: ids})
	}
	app.mux.Unlock()
	writeJSON(w, http.StatusOK, out)
}

// StreamHandler upgrades to a websocket and forwards every topology and
// variant event until the client goes away.
func (app *App) StreamHandler(w http.ResponseWriter, r *http.Request) {
	pid := uuid.New()
	chTopology, err := app.network.Subscribe(pid, msg.Topology)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	defer app.network.Unsubscribe(pid)
	chVariant, err := app.network.Subscribe(pid, msg.Variant)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	conn, err := app.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warningf("[Webservice] upgrade: %v", err)
		return
	}
	defer conn.Close()
	logger.Infof("[Webservice] Stream %v opened from %s", pid, r.RemoteAddr)

	done := make(chan struct{})
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				close(done)
				return
			}
		}
	}()

loop:
	for {
		var m msg.Msg
		select {
		case m = <-chTopology:
		case m = <-chVariant:
		case <-done:
			break loop
		}
		if err := conn.WriteJSON(Event{Topic: m.Topic().String(), Payload: m.Payload()}); err != nil {
			break loop
		}
	}
	logger.Infof("[Webservice] Stream %v closed", pid)
}

func (app *App) Process() {
	logger.Infof("[Webservice] Starting Server on Port %s", app.config.Port)
	if err := app.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Errorf("[Webservice] %v", err)
	}
	logger.Info("[Webservice] Process Shutdown")
}

func (app *App) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()
	if err := app.server.Shutdown(ctx); err != nil {
		logger.Warningf("[Webservice] %v", err)
	}
}
