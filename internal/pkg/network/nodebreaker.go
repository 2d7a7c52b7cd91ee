/*
nodebreaker.go Node/breaker voltage levels. Vertices are nodes, optionally
carrying a terminal, and edges are switches or internal connections.
Calculated buses are computed at two levels: the bus view splits at open
switches, the bus-breaker view at open or retained ones.
*/

package network

import (
	"context"
	"fmt"

	"github.com/ohowland/cgc_topology/internal/pkg/graph"
	"github.com/ohowland/cgc_topology/internal/pkg/topology"
	"github.com/ohowland/cgc_topology/internal/pkg/variant"
)

type nodeBreakerTopology struct {
	busView        *topology.Holder[*CalculatedBus]
	busBreakerView *topology.Holder[*CalculatedBus]
}

func newNodeBreakerTopology() *nodeBreakerTopology {
	return &nodeBreakerTopology{
		busView:        topology.NewHolder[*CalculatedBus](),
		busBreakerView: topology.NewHolder[*CalculatedBus](),
	}
}

func (t *nodeBreakerTopology) holder(level topology.Level) *topology.Holder[*CalculatedBus] {
	if level == topology.BusBreakerView {
		return t.busBreakerView
	}
	return t.busView
}

func copyNodeBreakerTopology(*nodeBreakerTopology) *nodeBreakerTopology {
	return newNodeBreakerTopology()
}

func releaseNodeBreakerTopology(t *nodeBreakerTopology) {
	if t != nil {
		t.busView.Invalidate()
		t.busBreakerView.Invalidate()
	}
}

// NodeBreakerVoltageLevel is a voltage level described by nodes.
type NodeBreakerVoltageLevel struct {
	network *Network
	id      string
	name    string

	graph    *graph.Graph[Terminal, Switch]
	switches map[string]int

	topologies *variant.Array[*nodeBreakerTopology]

	busView        *CalculatedBusView
	busBreakerView *CalculatedBusView
}

func newNodeBreakerVoltageLevel(n *Network, id, name string) *NodeBreakerVoltageLevel {
	vl := &NodeBreakerVoltageLevel{
		network:  n,
		id:       id,
		name:     name,
		graph:    graph.New[Terminal, Switch](),
		switches: make(map[string]int),
		topologies: variant.NewArray(n.variants, n.variants.ArraySize(),
			newNodeBreakerTopology(), copyNodeBreakerTopology).WithRelease(releaseNodeBreakerTopology),
	}
	vl.busView = &CalculatedBusView{vl: vl, level: topology.BusView}
	vl.busBreakerView = &CalculatedBusView{vl: vl, level: topology.BusBreakerView}
	n.variants.Register(variant.NewGroup(vl.topologies))
	return vl
}

// ID is the voltage level id.
func (vl *NodeBreakerVoltageLevel) ID() string { return vl.id }

// Name is the optional voltage level name.
func (vl *NodeBreakerVoltageLevel) Name() string { return vl.name }

// TopologyKind is NodeBreaker.
func (vl *NodeBreakerVoltageLevel) TopologyKind() TopologyKind { return NodeBreaker }

// BusView exposes the buses split at open switches.
func (vl *NodeBreakerVoltageLevel) BusView() *CalculatedBusView { return vl.busView }

// BusBreakerView exposes the buses split at open or retained switches.
func (vl *NodeBreakerVoltageLevel) BusBreakerView() *CalculatedBusView { return vl.busBreakerView }

// View implements VoltageLevel.
func (vl *NodeBreakerVoltageLevel) View(v View) BusView {
	if v == ViewBusBreaker {
		return vl.busBreakerView
	}
	return vl.busView
}

// NodeCount is the number of live nodes.
func (vl *NodeBreakerVoltageLevel) NodeCount() int {
	return vl.graph.VertexCount()
}

// Nodes returns the live nodes in ascending order.
func (vl *NodeBreakerVoltageLevel) Nodes() []int {
	return vl.graph.Vertices()
}

// Terminal returns the terminal sitting on node, if any.
func (vl *NodeBreakerVoltageLevel) Terminal(node int) (*Terminal, bool) {
	if !vl.graph.VertexExists(node) {
		return nil, false
	}
	t := vl.graph.VertexObject(node)
	return t, t != nil
}

// NewSwitch adds a switch between two nodes, creating them as needed.
func (vl *NodeBreakerVoltageLevel) NewSwitch(id, name string, kind SwitchKind, node1, node2 int, open, retained bool) (*Switch, error) {
	if node1 < 0 || node2 < 0 {
		return nil, fmt.Errorf("%w: switch '%s' nodes %d and %d", ErrInvalid, id, node1, node2)
	}
	if node1 == node2 {
		return nil, fmt.Errorf("%w: switch '%s' connects node %d to itself", ErrInvalid, id, node1)
	}
	if err := vl.network.reserveID(id); err != nil {
		return nil, err
	}
	vl.graph.AddVertexIfNotPresent(node1)
	vl.graph.AddVertexIfNotPresent(node2)
	sw := newSwitch(vl.network, vl.id, id, name, kind, open, retained, false)
	vl.switches[id] = vl.graph.AddEdge(node1, node2, sw)
	vl.network.switches[id] = sw
	vl.invalidateAll()
	return sw, nil
}

// RemoveSwitch removes the switch id and the nodes it leaves isolated.
func (vl *NodeBreakerVoltageLevel) RemoveSwitch(id string) error {
	e, ok := vl.switches[id]
	if !ok {
		return fmt.Errorf("%w: Switch '%s' not found in voltage level '%s'", ErrNotFound, id, vl.id)
	}
	sw := vl.graph.RemoveEdge(e)
	vl.graph.RemoveIsolatedVertices()
	sw.release()
	delete(vl.switches, id)
	delete(vl.network.switches, id)
	vl.network.releaseID(id)
	vl.invalidateAll()
	return nil
}

// Switches returns the switches in edge order.
func (vl *NodeBreakerVoltageLevel) Switches() []*Switch {
	return vl.graph.EdgeObjects()
}

// SwitchNodes returns both nodes of a switch.
func (vl *NodeBreakerVoltageLevel) SwitchNodes(id string) (int, int, error) {
	e, ok := vl.switches[id]
	if !ok {
		return 0, 0, fmt.Errorf("%w: Switch '%s' not found in voltage level '%s'", ErrNotFound, id, vl.id)
	}
	return vl.graph.Vertex1(e), vl.graph.Vertex2(e), nil
}

// NewInternalConnection permanently joins two nodes.
func (vl *NodeBreakerVoltageLevel) NewInternalConnection(node1, node2 int) error {
	if node1 < 0 || node2 < 0 {
		return fmt.Errorf("%w: internal connection nodes %d and %d", ErrInvalid, node1, node2)
	}
	if node1 == node2 {
		return fmt.Errorf("%w: internal connection from node %d to itself", ErrInvalid, node1)
	}
	vl.graph.AddVertexIfNotPresent(node1)
	vl.graph.AddVertexIfNotPresent(node2)
	vl.graph.AddEdge(node1, node2, nil)
	vl.invalidateAll()
	return nil
}

// InternalConnections returns the node pairs of every internal connection.
func (vl *NodeBreakerVoltageLevel) InternalConnections() [][2]int {
	out := make([][2]int, 0)
	for _, e := range vl.graph.Edges() {
		if vl.graph.EdgeObject(e) == nil {
			out = append(out, [2]int{vl.graph.Vertex1(e), vl.graph.Vertex2(e)})
		}
	}
	return out
}

// RemoveInternalConnections removes every internal connection between two
// nodes, in either direction.
func (vl *NodeBreakerVoltageLevel) RemoveInternalConnections(node1, node2 int) error {
	found := make([]int, 0)
	for _, e := range vl.graph.Edges() {
		if vl.graph.EdgeObject(e) != nil {
			continue
		}
		v1, v2 := vl.graph.Vertex1(e), vl.graph.Vertex2(e)
		if (v1 == node1 && v2 == node2) || (v1 == node2 && v2 == node1) {
			found = append(found, e)
		}
	}
	if len(found) == 0 {
		return fmt.Errorf("%w: Internal connection not found between %d and %d", ErrNotFound, node1, node2)
	}
	for i := len(found) - 1; i >= 0; i-- {
		vl.graph.RemoveEdge(found[i])
	}
	vl.graph.RemoveIsolatedVertices()
	vl.invalidateAll()
	return nil
}

// NewBusbarSection adds a busbar section on node.
func (vl *NodeBreakerVoltageLevel) NewBusbarSection(id, name string, node int) (*Connectable, error) {
	return vl.network.AddConnectable(id, name, BusbarSection, Attachment{VoltageLevel: vl.id, Node: node})
}

// InvalidateCache drops both views of the working variant.
func (vl *NodeBreakerVoltageLevel) InvalidateCache(ctx context.Context) {
	releaseNodeBreakerTopology(vl.topologies.Get(ctx))
	vl.network.invalidated(ctx, vl.id, vl.topologies.Index(ctx))
}

func (vl *NodeBreakerVoltageLevel) invalidateAll() {
	for i := 0; i < vl.topologies.Len(); i++ {
		releaseNodeBreakerTopology(vl.topologies.At(i))
	}
	vl.network.invalidated(context.Background(), vl.id, -1)
}

func (vl *NodeBreakerVoltageLevel) calculatedBuses(ctx context.Context, level topology.Level) *topology.Cache[*CalculatedBus] {
	h := vl.topologies.Get(ctx).holder(level)
	fresh := !h.Built()
	c := h.Get(func() *topology.Cache[*CalculatedBus] { return vl.buildCalculatedBuses(ctx, level) })
	if fresh {
		view := ViewBus
		if level == topology.BusBreakerView {
			view = ViewBusBreaker
		}
		vl.network.built(ctx, vl, view)
	}
	return c
}

func (vl *NodeBreakerVoltageLevel) buildCalculatedBuses(ctx context.Context, level topology.Level) *topology.Cache[*CalculatedBus] {
	boundary := func(e int) bool {
		sw := vl.graph.EdgeObject(e)
		if sw == nil {
			return false
		}
		return level.IsBoundary(sw.IsOpen(ctx), sw.IsRetained(ctx))
	}
	components := topology.Scan(vl.graph, topology.EdgeSeeds(vl.graph), boundary)

	tally := func(members []int) topology.Tally {
		t := topology.Tally{}
		for _, v := range members {
			term := vl.graph.VertexObject(v)
			if term == nil {
				continue
			}
			switch typ := term.Connectable().Type(); {
			case typ == BusbarSection:
				t.AddBusbarSection()
			case typ.IsBranch():
				t.AddBranch()
			case typ.IsFeeder():
				t.AddFeeder()
			}
		}
		return t
	}

	naming := topology.Naming{VoltageLevelID: vl.id, VoltageLevelName: vl.name}
	return topology.Build(level, naming, components, tally, func(id, name string, members []int) *CalculatedBus {
		terminals := make([]*Terminal, 0)
		for _, v := range members {
			if term := vl.graph.VertexObject(v); term != nil {
				terminals = append(terminals, term)
			}
		}
		nodes := make([]int, len(members))
		copy(nodes, members)
		return newCalculatedBus(vl.network, vl.id, id, name, nodes, terminals)
	})
}

func (vl *NodeBreakerVoltageLevel) checkAttach(a Attachment) error {
	if a.Bus != "" || a.ConnectableBus != "" {
		return fmt.Errorf("%w: voltage level %s has a node/breaker topology, a node connection should be specified instead of a bus connection", ErrInvalid, vl.id)
	}
	if a.Node < 0 {
		return fmt.Errorf("%w: node %d", ErrInvalid, a.Node)
	}
	if t, ok := vl.Terminal(a.Node); ok {
		return fmt.Errorf("%w: An equipment (%s) is already connected to the node %d of voltage level %s", ErrNodeOccupied, t.connectableID, a.Node, vl.id)
	}
	return nil
}

func (vl *NodeBreakerVoltageLevel) attach(t *Terminal) error {
	if t.node < 0 {
		return fmt.Errorf("%w: voltage level %s has a node/breaker topology, a node connection should be specified instead of a bus connection", ErrInvalid, vl.id)
	}
	vl.graph.AddVertexIfNotPresent(t.node)
	if other := vl.graph.VertexObject(t.node); other != nil {
		return fmt.Errorf("%w: An equipment (%s) is already connected to the node %d of voltage level %s", ErrNodeOccupied, other.connectableID, t.node, vl.id)
	}
	vl.graph.SetVertexObject(t.node, t)
	vl.invalidateAll()
	return nil
}

func (vl *NodeBreakerVoltageLevel) detach(t *Terminal) {
	vl.graph.SetVertexObject(t.node, nil)
	vl.graph.RemoveIsolatedVertices()
	vl.invalidateAll()
}

func (vl *NodeBreakerVoltageLevel) level(v View) topology.Level {
	if v == ViewBusBreaker {
		return topology.BusBreakerView
	}
	return topology.BusView
}

func (vl *NodeBreakerVoltageLevel) terminalBus(ctx context.Context, t *Terminal, v View) (Bus, bool) {
	if b, ok := vl.calculatedBuses(ctx, vl.level(v)).ByMember(t.node); ok {
		return b, true
	}
	return nil, false
}

func (vl *NodeBreakerVoltageLevel) connectableBus(ctx context.Context, t *Terminal) (Bus, bool) {
	if b, ok := topology.FindConnectableBus(vl.graph, t.node, vl.calculatedBuses(ctx, topology.BusView)); ok {
		return b, true
	}
	return nil, false
}

func (vl *NodeBreakerVoltageLevel) isBusbarSection(v int) bool {
	t := vl.graph.VertexObject(v)
	return t != nil && t.Connectable().Type() == BusbarSection
}

// pathsToBusbarSections lists the paths from node to a busbar section that
// cross no open disconnector, shortest first.
func (vl *NodeBreakerVoltageLevel) pathsToBusbarSections(ctx context.Context, node int) [][]int {
	isOpenDisconnector := func(e int) bool {
		sw := vl.graph.EdgeObject(e)
		return sw != nil && sw.Kind() == Disconnector && sw.IsOpen(ctx)
	}
	return vl.graph.FindAllPaths(node, vl.isBusbarSection, isOpenDisconnector)
}

func (vl *NodeBreakerVoltageLevel) connect(ctx context.Context, t *Terminal) bool {
	paths := vl.pathsToBusbarSections(ctx, t.node)
	if len(paths) == 0 {
		return false
	}
	connected := false
	for _, e := range paths[0] {
		sw := vl.graph.EdgeObject(e)
		if sw != nil && sw.Kind() == Breaker && sw.SetOpen(ctx, false) {
			connected = true
		}
	}
	return connected
}

func (vl *NodeBreakerVoltageLevel) disconnect(ctx context.Context, t *Terminal) bool {
	paths := vl.pathsToBusbarSections(ctx, t.node)
	if len(paths) == 0 {
		return false
	}
	for _, path := range paths {
		opened := false
		for _, e := range path {
			sw := vl.graph.EdgeObject(e)
			if sw != nil && sw.Kind() == Breaker {
				sw.SetOpen(ctx, true)
				opened = true
				break
			}
		}
		if !opened {
			return false
		}
	}
	return true
}

func (vl *NodeBreakerVoltageLevel) snapshot(ctx context.Context, v View) Snapshot {
	return newSnapshot(ctx, vl.network, vl, v, vl.View(v).Buses(ctx))
}

// CalculatedBusView exposes the calculated buses of one level of a
// node/breaker voltage level.
type CalculatedBusView struct {
	vl    *NodeBreakerVoltageLevel
	level topology.Level
}

// Level is the topology level the view is computed at.
func (v *CalculatedBusView) Level() topology.Level {
	return v.level
}

// CalculatedBuses returns the buses of the working variant.
func (v *CalculatedBusView) CalculatedBuses(ctx context.Context) []*CalculatedBus {
	return v.vl.calculatedBuses(ctx, v.level).All()
}

// Buses implements BusView.
func (v *CalculatedBusView) Buses(ctx context.Context) []Bus {
	all := v.CalculatedBuses(ctx)
	out := make([]Bus, 0, len(all))
	for _, b := range all {
		out = append(out, b)
	}
	return out
}

// Bus implements BusView.
func (v *CalculatedBusView) Bus(ctx context.Context, id string) (Bus, error) {
	b, ok := v.FindBus(ctx, id)
	if !ok {
		return nil, fmt.Errorf("%w: Bus %s not found in voltage level %s", ErrNotFound, id, v.vl.id)
	}
	return b, nil
}

// FindBus implements BusView.
func (v *CalculatedBusView) FindBus(ctx context.Context, id string) (Bus, bool) {
	if b, ok := v.vl.calculatedBuses(ctx, v.level).ByID(id); ok {
		return b, true
	}
	return nil, false
}

// BusOf returns the bus containing node.
func (v *CalculatedBusView) BusOf(ctx context.Context, node int) (*CalculatedBus, bool) {
	return v.vl.calculatedBuses(ctx, v.level).ByMember(node)
}

// ConnectableBus returns the bus of node, the nearest bus ignoring switch
// states, or any bus of the view.
func (v *CalculatedBusView) ConnectableBus(ctx context.Context, node int) (*CalculatedBus, bool) {
	if !v.vl.graph.VertexExists(node) {
		return nil, false
	}
	return topology.FindConnectableBus(v.vl.graph, node, v.vl.calculatedBuses(ctx, v.level))
}

// Bus1 returns the bus on the first side of switchID.
func (v *CalculatedBusView) Bus1(ctx context.Context, switchID string) (*CalculatedBus, bool, error) {
	n1, _, err := v.vl.SwitchNodes(switchID)
	if err != nil {
		return nil, false, err
	}
	b, ok := v.BusOf(ctx, n1)
	return b, ok, nil
}

// Bus2 returns the bus on the second side of switchID.
func (v *CalculatedBusView) Bus2(ctx context.Context, switchID string) (*CalculatedBus, bool, error) {
	_, n2, err := v.vl.SwitchNodes(switchID)
	if err != nil {
		return nil, false, err
	}
	b, ok := v.BusOf(ctx, n2)
	return b, ok, nil
}

// RetainedSwitches returns the switches retained in the working variant.
func (v *CalculatedBusView) RetainedSwitches(ctx context.Context) []*Switch {
	out := make([]*Switch, 0)
	for _, sw := range v.vl.Switches() {
		if sw.IsRetained(ctx) {
			out = append(out, sw)
		}
	}
	return out
}
