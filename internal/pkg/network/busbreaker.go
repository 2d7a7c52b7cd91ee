/*
busbreaker.go Bus/breaker voltage levels. Vertices are configured buses and
every edge is a switch; merged buses are the groups of configured buses joined
by closed switches.
*/

package network

import (
	"context"
	"fmt"

	"github.com/ohowland/cgc_topology/internal/pkg/graph"
	"github.com/ohowland/cgc_topology/internal/pkg/topology"
	"github.com/ohowland/cgc_topology/internal/pkg/variant"
)

// BusBreakerVoltageLevel is a voltage level described by configured buses.
type BusBreakerVoltageLevel struct {
	network *Network
	id      string
	name    string

	graph     *graph.Graph[ConfiguredBus, Switch]
	buses     map[string]int
	switches  map[string]int
	terminals []*Terminal

	topologies *variant.Array[*topology.Holder[*MergedBus]]

	busView        *MergedBusView
	busBreakerView *ConfiguredBusView
}

func newBusBreakerVoltageLevel(n *Network, id, name string) *BusBreakerVoltageLevel {
	vl := &BusBreakerVoltageLevel{
		network:  n,
		id:       id,
		name:     name,
		graph:    graph.New[ConfiguredBus, Switch](),
		buses:    make(map[string]int),
		switches: make(map[string]int),
		topologies: variant.NewArray(n.variants, n.variants.ArraySize(),
			topology.NewHolder[*MergedBus](), (*topology.Holder[*MergedBus]).Fresh).WithRelease(releaseHolder[*MergedBus]),
	}
	vl.busView = &MergedBusView{vl: vl}
	vl.busBreakerView = &ConfiguredBusView{vl: vl}
	n.variants.Register(variant.NewGroup(vl.topologies))
	return vl
}

func releaseHolder[B topology.Bus](h *topology.Holder[B]) {
	if h != nil {
		h.Invalidate()
	}
}

// ID is the voltage level id.
func (vl *BusBreakerVoltageLevel) ID() string { return vl.id }

// Name is the optional voltage level name.
func (vl *BusBreakerVoltageLevel) Name() string { return vl.name }

// TopologyKind is BusBreaker.
func (vl *BusBreakerVoltageLevel) TopologyKind() TopologyKind { return BusBreaker }

// BusView exposes merged buses.
func (vl *BusBreakerVoltageLevel) BusView() *MergedBusView { return vl.busView }

// BusBreakerView exposes configured buses.
func (vl *BusBreakerVoltageLevel) BusBreakerView() *ConfiguredBusView { return vl.busBreakerView }

// View implements VoltageLevel.
func (vl *BusBreakerVoltageLevel) View(v View) BusView {
	if v == ViewBusBreaker {
		return vl.busBreakerView
	}
	return vl.busView
}

// NewBus adds a configured bus.
func (vl *BusBreakerVoltageLevel) NewBus(id, name string) (*ConfiguredBus, error) {
	if err := vl.network.reserveID(id); err != nil {
		return nil, err
	}
	v := vl.graph.AddVertex()
	b := &ConfiguredBus{network: vl.network, vlID: vl.id, id: id, name: name, vertex: v}
	vl.graph.SetVertexObject(v, b)
	vl.buses[id] = v
	vl.invalidateAll()
	return b, nil
}

// Bus returns the configured bus id.
func (vl *BusBreakerVoltageLevel) Bus(id string) (*ConfiguredBus, error) {
	v, ok := vl.buses[id]
	if !ok {
		return nil, fmt.Errorf("%w: Bus %s not found in voltage level %s", ErrNotFound, id, vl.id)
	}
	return vl.graph.VertexObject(v), nil
}

// Buses returns the configured buses in vertex order.
func (vl *BusBreakerVoltageLevel) Buses() []*ConfiguredBus {
	return vl.graph.VertexObjects()
}

// RemoveBus removes a configured bus no switch or terminal refers to.
func (vl *BusBreakerVoltageLevel) RemoveBus(id string) error {
	v, ok := vl.buses[id]
	if !ok {
		return fmt.Errorf("%w: Bus %s not found in voltage level %s", ErrNotFound, id, vl.id)
	}
	for _, t := range vl.terminals {
		for i := 0; i < t.connectableBus.Len(); i++ {
			if t.connectableBus.At(i) == id {
				return fmt.Errorf("%w: cannot remove bus %s because of connected equipment %s", ErrInUse, id, t.connectableID)
			}
		}
	}
	if _, err := vl.graph.RemoveVertex(v); err != nil {
		return fmt.Errorf("%w: cannot remove bus %s because of switches: %v", ErrInUse, id, err)
	}
	delete(vl.buses, id)
	vl.network.releaseID(id)
	vl.invalidateAll()
	return nil
}

// NewSwitch adds a switch between two configured buses.
func (vl *BusBreakerVoltageLevel) NewSwitch(id, name, bus1, bus2 string, open bool) (*Switch, error) {
	v1, ok := vl.buses[bus1]
	if !ok {
		return nil, fmt.Errorf("%w: Bus %s not found in voltage level %s", ErrNotFound, bus1, vl.id)
	}
	v2, ok := vl.buses[bus2]
	if !ok {
		return nil, fmt.Errorf("%w: Bus %s not found in voltage level %s", ErrNotFound, bus2, vl.id)
	}
	if err := vl.network.reserveID(id); err != nil {
		return nil, err
	}
	sw := newSwitch(vl.network, vl.id, id, name, Breaker, open, false, false)
	vl.switches[id] = vl.graph.AddEdge(v1, v2, sw)
	vl.network.switches[id] = sw
	vl.invalidateAll()
	return sw, nil
}

// RemoveSwitch removes the switch id.
func (vl *BusBreakerVoltageLevel) RemoveSwitch(id string) error {
	e, ok := vl.switches[id]
	if !ok {
		return fmt.Errorf("%w: Switch '%s' not found in voltage level '%s'", ErrNotFound, id, vl.id)
	}
	sw := vl.graph.RemoveEdge(e)
	sw.release()
	delete(vl.switches, id)
	delete(vl.network.switches, id)
	vl.network.releaseID(id)
	vl.invalidateAll()
	return nil
}

// Switches returns the switches in edge order.
func (vl *BusBreakerVoltageLevel) Switches() []*Switch {
	return vl.graph.EdgeObjects()
}

// SwitchBuses returns the configured buses at both ends of a switch.
func (vl *BusBreakerVoltageLevel) SwitchBuses(id string) (*ConfiguredBus, *ConfiguredBus, error) {
	e, ok := vl.switches[id]
	if !ok {
		return nil, nil, fmt.Errorf("%w: Switch '%s' not found in voltage level '%s'", ErrNotFound, id, vl.id)
	}
	return vl.graph.VertexObject(vl.graph.Vertex1(e)), vl.graph.VertexObject(vl.graph.Vertex2(e)), nil
}

// InvalidateCache drops the merged buses of the working variant.
func (vl *BusBreakerVoltageLevel) InvalidateCache(ctx context.Context) {
	h := vl.topologies.Get(ctx)
	h.Invalidate()
	vl.network.invalidated(ctx, vl.id, vl.topologies.Index(ctx))
}

func (vl *BusBreakerVoltageLevel) invalidateAll() {
	for i := 0; i < vl.topologies.Len(); i++ {
		releaseHolder(vl.topologies.At(i))
	}
	vl.network.invalidated(context.Background(), vl.id, -1)
}

func (vl *BusBreakerVoltageLevel) mergedBuses(ctx context.Context) *topology.Cache[*MergedBus] {
	h := vl.topologies.Get(ctx)
	fresh := !h.Built()
	c := h.Get(func() *topology.Cache[*MergedBus] { return vl.buildMergedBuses(ctx) })
	if fresh {
		vl.network.built(ctx, vl, ViewBus)
	}
	return c
}

func (vl *BusBreakerVoltageLevel) buildMergedBuses(ctx context.Context) *topology.Cache[*MergedBus] {
	boundary := func(e int) bool {
		sw := vl.graph.EdgeObject(e)
		return topology.MergedBus.IsBoundary(sw.IsOpen(ctx), false)
	}
	components := topology.Scan(vl.graph, topology.VertexSeeds(vl.graph), boundary)

	tally := func(members []int) topology.Tally {
		t := topology.Tally{}
		for _, v := range members {
			for _, term := range vl.graph.VertexObject(v).ConnectedTerminals(ctx) {
				switch typ := term.Connectable().Type(); {
				case typ == BusbarSection:
					panic(fmt.Errorf("%w: '%s' in voltage level %s", ErrBusbarSectionInBusBreaker, term.connectableID, vl.id))
				case typ.IsBranch():
					t.AddBranch()
				case typ.IsFeeder():
					t.AddFeeder()
				}
			}
		}
		return t
	}

	naming := topology.Naming{VoltageLevelID: vl.id, VoltageLevelName: vl.name}
	return topology.Build(topology.MergedBus, naming, components, tally, func(id, name string, members []int) *MergedBus {
		buses := make([]*ConfiguredBus, 0, len(members))
		for _, v := range members {
			buses = append(buses, vl.graph.VertexObject(v))
		}
		return newMergedBus(vl.network, vl.id, id, name, buses)
	})
}

func (vl *BusBreakerVoltageLevel) checkAttach(a Attachment) error {
	bus := a.connectableBus()
	if bus == "" {
		return fmt.Errorf("%w: voltage level %s has a bus/breaker topology, a bus connection should be specified instead of a node connection", ErrInvalid, vl.id)
	}
	if a.Bus != "" && a.ConnectableBus != "" && a.Bus != a.ConnectableBus {
		return fmt.Errorf("%w: connection bus %s is different to connectable bus %s", ErrInvalid, a.Bus, a.ConnectableBus)
	}
	if _, ok := vl.buses[bus]; !ok {
		return fmt.Errorf("%w: Bus %s not found in voltage level %s", ErrNotFound, bus, vl.id)
	}
	return nil
}

func (vl *BusBreakerVoltageLevel) attach(t *Terminal) error {
	if t.connectableBus == nil {
		return fmt.Errorf("%w: voltage level %s has a bus/breaker topology, a bus connection should be specified instead of a node connection", ErrInvalid, vl.id)
	}
	vl.terminals = append(vl.terminals, t)
	vl.invalidateAll()
	return nil
}

func (vl *BusBreakerVoltageLevel) detach(t *Terminal) {
	for i, other := range vl.terminals {
		if other == t {
			vl.terminals = append(vl.terminals[:i], vl.terminals[i+1:]...)
			break
		}
	}
	vl.invalidateAll()
}

func (vl *BusBreakerVoltageLevel) configuredBusOf(ctx context.Context, t *Terminal) *ConfiguredBus {
	v, ok := vl.buses[t.connectableBus.Get(ctx)]
	if !ok {
		return nil
	}
	return vl.graph.VertexObject(v)
}

func (vl *BusBreakerVoltageLevel) terminalBus(ctx context.Context, t *Terminal, v View) (Bus, bool) {
	if !t.connected.Get(ctx) {
		return nil, false
	}
	cb := vl.configuredBusOf(ctx, t)
	if cb == nil {
		return nil, false
	}
	if v == ViewBusBreaker {
		return cb, true
	}
	if mb, ok := vl.mergedBuses(ctx).ByMember(cb.vertex); ok {
		return mb, true
	}
	return nil, false
}

func (vl *BusBreakerVoltageLevel) connectableBus(ctx context.Context, t *Terminal) (Bus, bool) {
	cb := vl.configuredBusOf(ctx, t)
	if cb == nil {
		return nil, false
	}
	if mb, ok := topology.FindConnectableBus(vl.graph, cb.vertex, vl.mergedBuses(ctx)); ok {
		return mb, true
	}
	return nil, false
}

func (vl *BusBreakerVoltageLevel) connect(ctx context.Context, t *Terminal) bool {
	if t.connected.Set(ctx, true) {
		return false
	}
	vl.InvalidateCache(ctx)
	return true
}

func (vl *BusBreakerVoltageLevel) disconnect(ctx context.Context, t *Terminal) bool {
	if !t.connected.Set(ctx, false) {
		return false
	}
	vl.InvalidateCache(ctx)
	return true
}

func (vl *BusBreakerVoltageLevel) snapshot(ctx context.Context, v View) Snapshot {
	return newSnapshot(ctx, vl.network, vl, v, vl.View(v).Buses(ctx))
}

// ConfiguredBus is a vertex of a bus/breaker voltage level.
type ConfiguredBus struct {
	network *Network
	vlID    string
	id      string
	name    string
	vertex  int
}

func (b *ConfiguredBus) ID() string             { return b.id }
func (b *ConfiguredBus) Name() string           { return b.name }
func (b *ConfiguredBus) NameOrID() string       { return nameOrID(b.name, b.id) }
func (b *ConfiguredBus) IsFictitious() bool     { return false }
func (b *ConfiguredBus) VoltageLevelID() string { return b.vlID }

// IsValid is false once the bus is removed from its voltage level.
func (b *ConfiguredBus) IsValid() bool {
	vl, ok := b.network.voltageLevels[b.vlID].(*BusBreakerVoltageLevel)
	if !ok {
		return false
	}
	v, ok := vl.buses[b.id]
	return ok && v == b.vertex
}

// Terminals returns every terminal whose connectable bus is b in the working
// variant, connected or not.
func (b *ConfiguredBus) Terminals(ctx context.Context) []*Terminal {
	vl := b.network.voltageLevel(b.vlID).(*BusBreakerVoltageLevel)
	out := make([]*Terminal, 0)
	for _, t := range vl.terminals {
		if t.connectableBus.Get(ctx) == b.id {
			out = append(out, t)
		}
	}
	return out
}

// ConnectedTerminals returns the terminals connected to b in the working
// variant.
func (b *ConfiguredBus) ConnectedTerminals(ctx context.Context) []*Terminal {
	out := make([]*Terminal, 0)
	for _, t := range b.Terminals(ctx) {
		if t.connected.Get(ctx) {
			out = append(out, t)
		}
	}
	return out
}

// MergedBusView exposes the merged buses of a bus/breaker voltage level.
type MergedBusView struct {
	vl *BusBreakerVoltageLevel
}

// MergedBuses returns the merged buses of the working variant.
func (v *MergedBusView) MergedBuses(ctx context.Context) []*MergedBus {
	return v.vl.mergedBuses(ctx).All()
}

// Buses implements BusView.
func (v *MergedBusView) Buses(ctx context.Context) []Bus {
	all := v.MergedBuses(ctx)
	out := make([]Bus, 0, len(all))
	for _, b := range all {
		out = append(out, b)
	}
	return out
}

// Bus implements BusView.
func (v *MergedBusView) Bus(ctx context.Context, id string) (Bus, error) {
	b, ok := v.FindBus(ctx, id)
	if !ok {
		return nil, fmt.Errorf("%w: Bus %s not found in voltage level %s", ErrNotFound, id, v.vl.id)
	}
	return b, nil
}

// FindBus implements BusView.
func (v *MergedBusView) FindBus(ctx context.Context, id string) (Bus, bool) {
	if b, ok := v.vl.mergedBuses(ctx).ByID(id); ok {
		return b, true
	}
	return nil, false
}

// BusOf returns the merged bus containing the configured bus busID.
func (v *MergedBusView) BusOf(ctx context.Context, busID string) (*MergedBus, bool) {
	vertex, ok := v.vl.buses[busID]
	if !ok {
		return nil, false
	}
	return v.vl.mergedBuses(ctx).ByMember(vertex)
}

// ConfiguredBusView exposes the configured buses of a bus/breaker voltage
// level. They do not depend on the variant.
type ConfiguredBusView struct {
	vl *BusBreakerVoltageLevel
}

// Buses implements BusView.
func (v *ConfiguredBusView) Buses(ctx context.Context) []Bus {
	all := v.vl.Buses()
	out := make([]Bus, 0, len(all))
	for _, b := range all {
		out = append(out, b)
	}
	return out
}

// Bus implements BusView.
func (v *ConfiguredBusView) Bus(ctx context.Context, id string) (Bus, error) {
	b, err := v.vl.Bus(id)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// FindBus implements BusView.
func (v *ConfiguredBusView) FindBus(ctx context.Context, id string) (Bus, bool) {
	b, err := v.vl.Bus(id)
	if err != nil {
		return nil, false
	}
	return b, true
}
