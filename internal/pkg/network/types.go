package network

import (
	"context"
	"fmt"
	"strings"
)

// TopologyKind is the way a voltage level describes its connectivity.
type TopologyKind int

const (
	// BusBreaker voltage levels are made of configured buses and switches.
	BusBreaker TopologyKind = iota
	// NodeBreaker voltage levels are made of nodes, switches and internal
	// connections.
	NodeBreaker
)

func (k TopologyKind) String() string {
	switch k {
	case BusBreaker:
		return "BUS_BREAKER"
	case NodeBreaker:
		return "NODE_BREAKER"
	default:
		return fmt.Sprintf("TopologyKind(%d)", int(k))
	}
}

// ParseTopologyKind reads the names produced by String.
func ParseTopologyKind(s string) (TopologyKind, error) {
	switch strings.ToUpper(s) {
	case "BUS_BREAKER", "BUSBREAKER":
		return BusBreaker, nil
	case "NODE_BREAKER", "NODEBREAKER":
		return NodeBreaker, nil
	}
	return 0, fmt.Errorf("%w: topology kind %q", ErrInvalid, s)
}

// SwitchKind is the device type of a switch.
type SwitchKind int

const (
	Breaker SwitchKind = iota
	Disconnector
	LoadBreakSwitch
)

var switchKindNames = map[SwitchKind]string{
	Breaker:         "BREAKER",
	Disconnector:    "DISCONNECTOR",
	LoadBreakSwitch: "LOAD_BREAK_SWITCH",
}

func (k SwitchKind) String() string {
	if s, ok := switchKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("SwitchKind(%d)", int(k))
}

// ParseSwitchKind reads the names produced by String.
func ParseSwitchKind(s string) (SwitchKind, error) {
	for k, name := range switchKindNames {
		if strings.EqualFold(name, s) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: switch kind %q", ErrInvalid, s)
}

// ConnectableType classifies connectables for the bus validity rules.
type ConnectableType int

const (
	Line ConnectableType = iota
	TwoWindingsTransformer
	ThreeWindingsTransformer
	HvdcConverterStation
	DanglingLine
	Load
	Generator
	Battery
	ShuntCompensator
	StaticVarCompensator
	BusbarSection
)

var connectableTypeNames = map[ConnectableType]string{
	Line:                     "LINE",
	TwoWindingsTransformer:   "TWO_WINDINGS_TRANSFORMER",
	ThreeWindingsTransformer: "THREE_WINDINGS_TRANSFORMER",
	HvdcConverterStation:     "HVDC_CONVERTER_STATION",
	DanglingLine:             "DANGLING_LINE",
	Load:                     "LOAD",
	Generator:                "GENERATOR",
	Battery:                  "BATTERY",
	ShuntCompensator:         "SHUNT_COMPENSATOR",
	StaticVarCompensator:     "STATIC_VAR_COMPENSATOR",
	BusbarSection:            "BUSBAR_SECTION",
}

func (t ConnectableType) String() string {
	if s, ok := connectableTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("ConnectableType(%d)", int(t))
}

// ParseConnectableType reads the names produced by String.
func ParseConnectableType(s string) (ConnectableType, error) {
	for t, name := range connectableTypeNames {
		if strings.EqualFold(name, s) {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: connectable type %q", ErrInvalid, s)
}

// IsBranch reports whether t is counted as a branch.
func (t ConnectableType) IsBranch() bool {
	switch t {
	case Line, TwoWindingsTransformer, ThreeWindingsTransformer, HvdcConverterStation, DanglingLine:
		return true
	}
	return false
}

// IsFeeder reports whether t is counted as a feeder. Branches are feeders.
func (t ConnectableType) IsFeeder() bool {
	switch t {
	case Load, Generator, Battery, ShuntCompensator, StaticVarCompensator:
		return true
	}
	return t.IsBranch()
}

// TerminalCount is the number of terminals a connectable of type t has.
func (t ConnectableType) TerminalCount() int {
	switch t {
	case Line, TwoWindingsTransformer:
		return 2
	case ThreeWindingsTransformer:
		return 3
	}
	return 1
}

// View selects which bus view of a voltage level to read.
type View int

const (
	// ViewBus exposes the coarsest electrically-connected buses.
	ViewBus View = iota
	// ViewBusBreaker exposes configured buses, or calculated buses split at
	// retained switches for node/breaker levels.
	ViewBusBreaker
)

func (v View) String() string {
	if v == ViewBusBreaker {
		return "BusBreakerView"
	}
	return "BusView"
}

// ParseView accepts the view names String returns, with or without the
// "View" suffix.
func ParseView(s string) (View, error) {
	switch strings.TrimSuffix(strings.ToUpper(s), "VIEW") {
	case "BUS", "":
		return ViewBus, nil
	case "BUSBREAKER", "BUS_BREAKER":
		return ViewBusBreaker, nil
	}
	return 0, fmt.Errorf("%w: view %q", ErrInvalid, s)
}

// Bus is what both views of any voltage level expose.
type Bus interface {
	ID() string
	Name() string
	NameOrID() string
	IsFictitious() bool
	VoltageLevelID() string
	IsValid() bool
	ConnectedTerminals(ctx context.Context) []*Terminal
}

// BusView looks buses up in one view of a voltage level.
type BusView interface {
	Buses(ctx context.Context) []Bus
	Bus(ctx context.Context, id string) (Bus, error)
	FindBus(ctx context.Context, id string) (Bus, bool)
}

// VoltageLevel is implemented by BusBreakerVoltageLevel and
// NodeBreakerVoltageLevel.
type VoltageLevel interface {
	ID() string
	Name() string
	TopologyKind() TopologyKind
	View(v View) BusView
	// InvalidateCache drops the buses of the working variant.
	InvalidateCache(ctx context.Context)

	attach(t *Terminal) error
	checkAttach(a Attachment) error
	detach(t *Terminal)
	terminalBus(ctx context.Context, t *Terminal, v View) (Bus, bool)
	connectableBus(ctx context.Context, t *Terminal) (Bus, bool)
	connect(ctx context.Context, t *Terminal) bool
	disconnect(ctx context.Context, t *Terminal) bool
	invalidateAll()
	snapshot(ctx context.Context, v View) Snapshot
}

func nameOrID(name, id string) string {
	if name != "" {
		return name
	}
	return id
}
