/*
config.go Daemon configuration and network descriptions. A description lists
voltage levels with their buses, switches and internal connections, and the
connectables attached to them. It is read from YAML or JSON by extension.
*/

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/ioutil"
	"path/filepath"
	"strings"
	"time"

	"github.com/ohowland/cgc_topology/internal/pkg/network"
	logging "github.com/op/go-logging"
	yaml "gopkg.in/yaml.v2"
)

var logger = logging.MustGetLogger("config")

// ErrInvalid is returned for descriptions that cannot be built.
var ErrInvalid = errors.New("config: invalid description")

// Daemon is the configuration of cmd/topology. Handler paths left empty
// disable the handler.
type Daemon struct {
	LogLevel     string `json:"LogLevel"`
	Network      string `json:"Network"`
	PollInterval int    `json:"PollInterval"`
	MongoDB      string `json:"MongoDB"`
	NATS         string `json:"NATS"`
	MQTT         string `json:"MQTT"`
	SQL          string `json:"SQL"`
	Webservice   string `json:"Webservice"`
	Modbus       string `json:"Modbus"`
}

// LoadDaemon reads the daemon config at path.
func LoadDaemon(path string) (Daemon, error) {
	jsonConfig, err := ioutil.ReadFile(path)
	if err != nil {
		return Daemon{}, err
	}
	cfg := Daemon{LogLevel: "INFO", PollInterval: 1000}
	if err := json.Unmarshal(jsonConfig, &cfg); err != nil {
		return Daemon{}, err
	}
	if cfg.Network == "" {
		return Daemon{}, fmt.Errorf("%w: %s: no network file", ErrInvalid, path)
	}
	return cfg, nil
}

// Level parses LogLevel.
func (d Daemon) Level() (logging.Level, error) {
	return logging.LogLevel(d.LogLevel)
}

// Interval is the poll interval.
func (d Daemon) Interval() time.Duration {
	return time.Duration(d.PollInterval) * time.Millisecond
}

// Description is the static content of a network.
type Description struct {
	ID            string         `json:"ID" yaml:"id"`
	VoltageLevels []VoltageLevel `json:"VoltageLevels" yaml:"voltageLevels"`
	Connectables  []Connectable  `json:"Connectables" yaml:"connectables"`
}

// VoltageLevel describes one voltage level. Buses only apply to bus/breaker
// levels; internal connections and busbar sections to node/breaker ones.
type VoltageLevel struct {
	ID                  string               `json:"ID" yaml:"id"`
	Name                string               `json:"Name" yaml:"name"`
	Topology            string               `json:"Topology" yaml:"topology"`
	Buses               []Bus                `json:"Buses" yaml:"buses"`
	Switches            []Switch             `json:"Switches" yaml:"switches"`
	InternalConnections []InternalConnection `json:"InternalConnections" yaml:"internalConnections"`
	BusbarSections      []BusbarSection      `json:"BusbarSections" yaml:"busbarSections"`
}

type Bus struct {
	ID   string `json:"ID" yaml:"id"`
	Name string `json:"Name" yaml:"name"`
}

// Switch joins Bus1 and Bus2 in a bus/breaker level, Node1 and Node2 in a
// node/breaker one.
type Switch struct {
	ID       string `json:"ID" yaml:"id"`
	Name     string `json:"Name" yaml:"name"`
	Kind     string `json:"Kind" yaml:"kind"`
	Bus1     string `json:"Bus1" yaml:"bus1"`
	Bus2     string `json:"Bus2" yaml:"bus2"`
	Node1    int    `json:"Node1" yaml:"node1"`
	Node2    int    `json:"Node2" yaml:"node2"`
	Open     bool   `json:"Open" yaml:"open"`
	Retained bool   `json:"Retained" yaml:"retained"`
}

type InternalConnection struct {
	Node1 int `json:"Node1" yaml:"node1"`
	Node2 int `json:"Node2" yaml:"node2"`
}

type BusbarSection struct {
	ID   string `json:"ID" yaml:"id"`
	Name string `json:"Name" yaml:"name"`
	Node int    `json:"Node" yaml:"node"`
}

type Connectable struct {
	ID        string     `json:"ID" yaml:"id"`
	Name      string     `json:"Name" yaml:"name"`
	Type      string     `json:"Type" yaml:"type"`
	Terminals []Terminal `json:"Terminals" yaml:"terminals"`
}

type Terminal struct {
	VoltageLevel   string `json:"VoltageLevel" yaml:"voltageLevel"`
	Node           int    `json:"Node" yaml:"node"`
	Bus            string `json:"Bus" yaml:"bus"`
	ConnectableBus string `json:"ConnectableBus" yaml:"connectableBus"`
}

// LoadDescription reads a network description, as YAML for .yaml and .yml
// files and as JSON otherwise.
func LoadDescription(path string) (Description, error) {
	raw, err := ioutil.ReadFile(path)
	if err != nil {
		return Description{}, err
	}
	desc := Description{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.UnmarshalStrict(raw, &desc)
	default:
		err = json.Unmarshal(raw, &desc)
	}
	if err != nil {
		return Description{}, fmt.Errorf("%s: %w", path, err)
	}
	return desc, nil
}

// LoadNetwork reads and builds the network description at path.
func LoadNetwork(path string) (*network.Network, error) {
	desc, err := LoadDescription(path)
	if err != nil {
		return nil, err
	}
	return BuildNetwork(desc)
}

// BuildNetwork creates the network described by desc. Every voltage level is
// created before any connectable is attached.
func BuildNetwork(desc Description) (*network.Network, error) {
	if desc.ID == "" {
		return nil, fmt.Errorf("%w: no network id", ErrInvalid)
	}
	n := network.New(desc.ID)

	for _, vl := range desc.VoltageLevels {
		kind, err := network.ParseTopologyKind(vl.Topology)
		if err != nil {
			return nil, fmt.Errorf("voltage level '%s': %w", vl.ID, err)
		}
		switch kind {
		case network.BusBreaker:
			err = buildBusBreaker(n, vl)
		case network.NodeBreaker:
			err = buildNodeBreaker(n, vl)
		}
		if err != nil {
			return nil, fmt.Errorf("voltage level '%s': %w", vl.ID, err)
		}
	}

	for _, c := range desc.Connectables {
		typ, err := network.ParseConnectableType(c.Type)
		if err != nil {
			return nil, fmt.Errorf("connectable '%s': %w", c.ID, err)
		}
		attachments := make([]network.Attachment, 0, len(c.Terminals))
		for _, t := range c.Terminals {
			attachments = append(attachments, network.Attachment{
				VoltageLevel:   t.VoltageLevel,
				Node:           t.Node,
				Bus:            t.Bus,
				ConnectableBus: t.ConnectableBus,
			})
		}
		if _, err := n.AddConnectable(c.ID, c.Name, typ, attachments...); err != nil {
			return nil, err
		}
	}

	logger.Infof("[Config] Network '%s' built: %d voltage levels, %d connectables",
		desc.ID, len(desc.VoltageLevels), len(desc.Connectables))
	return n, nil
}

func buildBusBreaker(n *network.Network, desc VoltageLevel) error {
	if len(desc.InternalConnections) > 0 || len(desc.BusbarSections) > 0 {
		return fmt.Errorf("%w: internal connections and busbar sections need a node/breaker topology", ErrInvalid)
	}
	vl, err := n.NewBusBreakerVoltageLevel(desc.ID, desc.Name)
	if err != nil {
		return err
	}
	for _, b := range desc.Buses {
		if _, err := vl.NewBus(b.ID, b.Name); err != nil {
			return err
		}
	}
	for _, sw := range desc.Switches {
		if sw.Kind != "" && !strings.EqualFold(sw.Kind, network.Breaker.String()) {
			return fmt.Errorf("%w: switch '%s' of kind %s in a bus/breaker voltage level", ErrInvalid, sw.ID, sw.Kind)
		}
		if sw.Retained {
			return fmt.Errorf("switch '%s': %w", sw.ID, network.ErrRetainNotModifiable)
		}
		if _, err := vl.NewSwitch(sw.ID, sw.Name, sw.Bus1, sw.Bus2, sw.Open); err != nil {
			return err
		}
	}
	return nil
}

func buildNodeBreaker(n *network.Network, desc VoltageLevel) error {
	if len(desc.Buses) > 0 {
		return fmt.Errorf("%w: configured buses need a bus/breaker topology", ErrInvalid)
	}
	vl, err := n.NewNodeBreakerVoltageLevel(desc.ID, desc.Name)
	if err != nil {
		return err
	}
	for _, bbs := range desc.BusbarSections {
		if _, err := vl.NewBusbarSection(bbs.ID, bbs.Name, bbs.Node); err != nil {
			return err
		}
	}
	for _, sw := range desc.Switches {
		kind := network.Breaker
		if sw.Kind != "" {
			if kind, err = network.ParseSwitchKind(sw.Kind); err != nil {
				return fmt.Errorf("switch '%s': %w", sw.ID, err)
			}
		}
		if _, err := vl.NewSwitch(sw.ID, sw.Name, kind, sw.Node1, sw.Node2, sw.Open, sw.Retained); err != nil {
			return err
		}
	}
	for _, ic := range desc.InternalConnections {
		if err := vl.NewInternalConnection(ic.Node1, ic.Node2); err != nil {
			return err
		}
	}
	return nil
}
