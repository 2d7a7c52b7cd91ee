package sqldb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/ohowland/cgc_topology/internal/pkg/msg"
	"github.com/ohowland/cgc_topology/internal/pkg/network"
	logging "github.com/op/go-logging"
)

var logger = logging.MustGetLogger("sqldb")

// Handler appends every bus snapshot and invalidation to a MySQL journal.
type Handler struct {
	inbox  <-chan msg.Msg
	pid    uuid.UUID
	config config
	stop   chan bool
}

type config struct {
	Server   string `json:"Server"`
	Port     int    `json:"Port"`
	Username string `json:"Username"`
	Password string `json:"Password"`
	Database string `json:"Database"`
}

const (
	kindSnapshot    = "snapshot"
	kindInvalidated = "invalidated"
)

const createJournal = `CREATE TABLE IF NOT EXISTS bus_journal(
	id BIGINT AUTO_INCREMENT PRIMARY KEY,
	pid VARCHAR(36),
	kind VARCHAR(16),
	network VARCHAR(64),
	voltage_level VARCHAR(64),
	view VARCHAR(32),
	variant VARCHAR(64),
	buses JSON,
	recorded DATETIME(3))`

const insertJournal = `INSERT INTO bus_journal
	(pid, kind, network, voltage_level, view, variant, buses, recorded)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

func (h Handler) PID() uuid.UUID {
	return h.pid
}

func redirectMsg(chIn <-chan msg.Msg, chOut chan<- msg.Msg) {
	for m := range chIn {
		chOut <- m
	}
}

func New(configPath string, system msg.Publisher) (Handler, error) {
	jsonConfig, err := ioutil.ReadFile(configPath)
	if err != nil {
		return Handler{}, err
	}
	cfg := config{Server: "localhost", Port: 3306}
	if err := json.Unmarshal(jsonConfig, &cfg); err != nil {
		return Handler{}, err
	}

	pid, _ := uuid.NewUUID()

	inbox := make(chan msg.Msg, 50)

	chTopology, err := system.Subscribe(pid, msg.Topology)
	if err != nil {
		return Handler{}, err
	}
	go redirectMsg(chTopology, inbox)

	return Handler{
		inbox:  inbox,
		pid:    pid,
		config: cfg,
		stop:   make(chan bool, 1),
	}, nil
}

func (h *Handler) Stop() {
	h.stop <- true
}

// DSN is the data source name of the configured server.
func (h Handler) DSN() string {
	cfg := mysql.NewConfig()
	cfg.User = h.config.Username
	cfg.Passwd = h.config.Password
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%v:%v", h.config.Server, h.config.Port)
	cfg.DBName = h.config.Database
	cfg.ParseTime = true
	return cfg.FormatDSN()
}

func (h Handler) DB() (*sql.DB, error) {
	return sql.Open("mysql", h.DSN())
}

// row returns the insert arguments journaling m. ok is false for messages
// that are not journaled.
func row(pid uuid.UUID, m msg.Msg, at time.Time) ([]interface{}, bool, error) {
	switch payload := m.Payload().(type) {
	case network.Snapshot:
		buses, err := json.Marshal(payload.Buses)
		if err != nil {
			return nil, false, err
		}
		return []interface{}{pid.String(), kindSnapshot, payload.Network, payload.VoltageLevel,
			payload.View, payload.Variant, string(buses), at}, true, nil
	case network.Invalidated:
		return []interface{}{pid.String(), kindInvalidated, payload.Network, payload.VoltageLevel,
			nil, payload.Variant, nil, at}, true, nil
	default:
		return nil, false, nil
	}
}

func (h Handler) Process() {
	logger.Info("[SQL] Process Started")
	db, err := h.DB()
	if err != nil {
		logger.Errorf("[SQL] %v", err)
		return
	}
	defer db.Close()

	if _, err := db.Exec(createJournal); err != nil {
		logger.Errorf("[SQL] unable to create journal: %v", err)
		return
	}

loop:
	for {
		select {
		case m := <-h.inbox:
			args, ok, err := row(h.pid, m, time.Now().UTC())
			if err != nil {
				logger.Warningf("[SQL] unable to encode %T: %v", m.Payload(), err)
				continue
			}
			if !ok {
				continue
			}
			ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
			if _, err := db.ExecContext(ctx, insertJournal, args...); err != nil {
				logger.Warningf("[SQL] error %v update db", err)
			}
			cancel()

		case <-h.stop:
			break loop
		}
	}
	logger.Info("[SQL] Process Shutdown")
}
