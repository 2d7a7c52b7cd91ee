/*
poller.go Reads switch states from a Modbus TCP device. Each configured point
is one coil, discrete input or register bit, mapped to a switch id.
*/

package modbuscomm

import (
	"encoding/json"
	"io/ioutil"
	"log"
	"os"
	"time"

	"github.com/goburrow/modbus"
	logging "github.com/op/go-logging"
)

var logger = logging.MustGetLogger("modbuscomm")

// Poller continiously polls a target
type Poller struct {
	handler *modbus.TCPClientHandler
	points  []Point
	stop    chan bool
}

// PollerConfig is the configuration format for Poller
type PollerConfig struct {
	IPAddr       string  `json:"IPAddr"`
	Port         string  `json:"Port"`
	SlaveID      byte    `json:"SlaveID"`
	Timeout      int     `json:"Timeout"`
	EnableLogger bool    `json:"EnableLogger"`
	Points       []Point `json:"Points"`
}

// New reads the poller config at configPath.
func New(configPath string) (*Poller, error) {
	jsonConfig, err := ioutil.ReadFile(configPath)
	if err != nil {
		return nil, err
	}
	cfg := PollerConfig{}
	if err := json.Unmarshal(jsonConfig, &cfg); err != nil {
		return nil, err
	}
	return NewPoller(cfg)
}

// NewPoller is a factory for the Poller struct
func NewPoller(cfg PollerConfig) (*Poller, error) {
	for _, p := range cfg.Points {
		if err := p.validate(); err != nil {
			return nil, err
		}
	}

	handler := modbus.NewTCPClientHandler(cfg.IPAddr + ":" + cfg.Port)
	handler.Timeout = time.Millisecond * time.Duration(cfg.Timeout)
	handler.SlaveId = cfg.SlaveID

	if cfg.EnableLogger {
		handler.Logger = log.New(os.Stdout, "modbus: ", log.LstdFlags)
	}

	return &Poller{
		handler: handler,
		points:  cfg.Points,
		stop:    make(chan bool),
	}, nil
}

// Read polls every point once and returns the open state by switch id.
// Points that fail are left out of the result; the last failure is returned.
func (m *Poller) Read() (map[string]bool, error) {
	err := m.handler.Connect()
	if err != nil {
		return nil, err
	}
	defer m.handler.Close()

	return readPoints(modbus.NewClient(m.handler), m.points)
}

func readPoints(client modbus.Client, points []Point) (map[string]bool, error) {
	var err error
	states := make(map[string]bool)
	for _, p := range points {
		resp, readErr := readPoint(client, p)
		if readErr != nil {
			err = readErr
			continue
		}
		open, decodeErr := p.isOpen(resp)
		if decodeErr != nil {
			err = decodeErr
			continue
		}
		states[p.Switch] = open
	}
	return states, err
}

func readPoint(client modbus.Client, p Point) ([]byte, error) {
	switch p.Table {
	case coil:
		return client.ReadCoils(p.Address, 1)
	case discreteInput:
		return client.ReadDiscreteInputs(p.Address, 1)
	case input:
		return client.ReadInputRegisters(p.Address, sizeOf(p.DataType))
	default:
		return client.ReadHoldingRegisters(p.Address, sizeOf(p.DataType))
	}
}

// Process polls every interval and sends each reading on out until Stop.
func (m *Poller) Process(out chan<- map[string]bool, interval time.Duration) {
	logger.Infof("[Modbus] Polling %s every %v", m.handler.Address, interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

loop:
	for {
		select {
		case <-ticker.C:
			states, err := m.Read()
			if err != nil {
				logger.Warningf("[Modbus] Read: %v", err)
			}
			if len(states) == 0 {
				continue
			}
			select {
			case out <- states:
			case <-m.stop:
				break loop
			}
		case <-m.stop:
			break loop
		}
	}
	logger.Info("[Modbus] Process Shutdown")
}

// Stop ends Process.
func (m *Poller) Stop() {
	m.stop <- true
}
