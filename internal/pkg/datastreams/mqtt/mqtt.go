package mqtt

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/ohowland/cgc_topology/internal/pkg/msg"
	"github.com/ohowland/cgc_topology/internal/pkg/network"
	logging "github.com/op/go-logging"
)

var logger = logging.MustGetLogger("mqtt")

const defaultPrefix = "topology"

// Handler publishes bus snapshots to an MQTT broker. Snapshots are retained
// so a late subscriber gets the current buses of every voltage level.
type Handler struct {
	inbox  <-chan msg.Msg
	pid    uuid.UUID
	config config
	stop   chan bool
}

type config struct {
	Broker string `json:"Broker"`
	Prefix string `json:"Prefix"`
	QoS    byte   `json:"QoS"`
}

type publication struct {
	topic    string
	retained bool
	payload  []byte
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
	cfg := config{Broker: "tcp://localhost:1883", Prefix: defaultPrefix}
	if err := json.Unmarshal(jsonConfig, &cfg); err != nil {
		return Handler{}, err
	}
	if cfg.QoS > 2 {
		return Handler{}, fmt.Errorf("mqtt: invalid QoS %d", cfg.QoS)
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

func level(s string) string {
	return strings.NewReplacer("/", "_", "+", "_", "#", "_").Replace(s)
}

// publish maps m to its MQTT publication. ok is false for messages that are
// not published.
func publish(prefix string, m msg.Msg) (publication, bool, error) {
	p := publication{}
	switch payload := m.Payload().(type) {
	case network.Snapshot:
		p.topic = fmt.Sprintf("%s/%s/%s/%s", prefix, level(payload.VoltageLevel), level(payload.View), level(payload.Variant))
		p.retained = true
	case network.Invalidated:
		p.topic = fmt.Sprintf("%s/%s/invalidated", prefix, level(payload.VoltageLevel))
	default:
		return p, false, nil
	}
	data, err := json.Marshal(m.Payload())
	if err != nil {
		return p, false, err
	}
	p.payload = data
	return p, true, nil
}

// Stop ends Process. It does not block when Process already returned.
func (h *Handler) Stop() {
	h.stop <- true
}

func (h Handler) Process() {
	logger.Info("[MQTT client] Process Started")
	opts := mqtt.NewClientOptions().
		AddBroker(h.config.Broker).
		SetClientID("topology-" + h.pid.String()).
		SetAutoReconnect(true)
	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		logger.Errorf("[MQTT client] %v", token.Error())
		return
	}
	defer client.Disconnect(250)

loop:
	for {
		select {
		case m := <-h.inbox:
			p, ok, err := publish(h.config.Prefix, m)
			if err != nil {
				logger.Warningf("[MQTT client] unable to encode %T: %v", m.Payload(), err)
				continue
			}
			if !ok {
				continue
			}
			token := client.Publish(p.topic, h.config.QoS, p.retained, p.payload)
			if token.WaitTimeout(1*time.Second) && token.Error() != nil {
				logger.Warningf("[MQTT client] unable to publish to broker: %v", token.Error())
			}

		case <-h.stop:
			break loop
		}
	}
	logger.Info("[MQTT client] Process Shutdown")
}
