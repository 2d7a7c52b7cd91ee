package natshandler

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"strings"

	"github.com/google/uuid"
	"github.com/ohowland/cgc_topology/internal/pkg/msg"
	"github.com/ohowland/cgc_topology/internal/pkg/network"
	logging "github.com/op/go-logging"

	nats "github.com/nats-io/nats.go"
)

var logger = logging.MustGetLogger("natshandler")

const defaultPrefix = "topology"

// Handler streams bus snapshots as JSON on one subject per voltage level and
// view.
type Handler struct {
	inbox  <-chan msg.Msg
	pid    uuid.UUID
	config config
	stop   chan bool
}

type config struct {
	Server string `json:"Server"`
	Prefix string `json:"Prefix"`
}

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
	cfg := config{}
	if err := json.Unmarshal(jsonConfig, &cfg); err != nil {
		return Handler{}, err
	}
	if cfg.Server == "" {
		cfg.Server = nats.DefaultURL
	}
	if cfg.Prefix == "" {
		cfg.Prefix = defaultPrefix
	}

	pid, _ := uuid.NewUUID()

	inbox := make(chan msg.Msg, 50)

	chTopology, err := system.Subscribe(pid, msg.Topology)
	if err != nil {
		return Handler{}, err
	}
	go redirectMsg(chTopology, inbox)

	chVariant, err := system.Subscribe(pid, msg.Variant)
	if err != nil {
		system.Unsubscribe(pid)
		return Handler{}, err
	}
	go redirectMsg(chVariant, inbox)

	return Handler{
		inbox:  inbox,
		pid:    pid,
		config: cfg,
		stop:   make(chan bool, 1),
	}, nil
}

// token makes an id safe as one NATS subject token.
func token(s string) string {
	return strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_").Replace(s)
}

// subject returns the subject and JSON body a message is published with.
// ok is false for payloads that are not streamed.
func subject(prefix string, m msg.Msg) (string, []byte, bool, error) {
	var subj string
	switch payload := m.Payload().(type) {
	case network.Snapshot:
		subj = fmt.Sprintf("%s.%s.%s", prefix, token(payload.VoltageLevel), token(payload.View))
	case network.Invalidated:
		subj = fmt.Sprintf("%s.%s.invalidated", prefix, token(payload.VoltageLevel))
	case network.VariantEvent:
		subj = fmt.Sprintf("%s.variant", prefix)
	default:
		return "", nil, false, nil
	}
	data, err := json.Marshal(m.Payload())
	if err != nil {
		return "", nil, false, err
	}
	return subj, data, true, nil
}

func (h *Handler) Stop() {
	h.stop <- true
}

func (h Handler) Process() {
	logger.Info("[NATS client] Process Started")
	nc, err := nats.Connect(h.config.Server)
	if err != nil {
		logger.Errorf("[NATS client] %v", err)
		return
	}
	defer nc.Close()

loop:
	for {
		select {
		case m := <-h.inbox:
			subj, data, ok, err := subject(h.config.Prefix, m)
			if err != nil {
				logger.Warningf("[NATS client] unable to encode %T: %v", m.Payload(), err)
				continue
			}
			if !ok {
				continue
			}
			if err = nc.Publish(subj, data); err != nil {
				logger.Warningf("[NATS client] unable to publish to nats server: %v", err)
			}

		case <-h.stop:
			break loop
		}
	}
	logger.Info("[NATS client] Process Shutdown")
}
