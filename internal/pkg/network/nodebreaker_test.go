package network

import (
	"context"
	"errors"
	"testing"

	"github.com/ohowland/cgc_topology/internal/pkg/topology"
	"github.com/ohowland/cgc_topology/internal/pkg/variant"
	"gotest.tools/v3/assert"
	"gotest.tools/v3/assert/cmp"
)

// newNodeBreakerNetwork builds
//
//	BBS1(0) -D1- 1 -BR1- (2)LD
func newNodeBreakerNetwork() (*Network, *NodeBreakerVoltageLevel) {
	n := New("grid")
	vl, err := n.NewNodeBreakerVoltageLevel("N", "Sub")
	if err != nil {
		panic(err)
	}
	if _, err := vl.NewBusbarSection("BBS1", "", 0); err != nil {
		panic(err)
	}
	if _, err := vl.NewSwitch("D1", "", Disconnector, 0, 1, false, false); err != nil {
		panic(err)
	}
	if _, err := vl.NewSwitch("BR1", "", Breaker, 1, 2, false, false); err != nil {
		panic(err)
	}
	if _, err := n.AddConnectable("LD", "", Load, Attachment{VoltageLevel: "N", Node: 2}); err != nil {
		panic(err)
	}
	return n, vl
}

func calculatedIDs(buses []*CalculatedBus) []string {
	out := make([]string, 0, len(buses))
	for _, b := range buses {
		out = append(out, b.ID())
	}
	return out
}

func terminalOf(n *Network, id string) *Terminal {
	c, err := n.Connectable(id)
	if err != nil {
		panic(err)
	}
	t, err := c.Terminal(1)
	if err != nil {
		panic(err)
	}
	return t
}

// BEGIN --- Node/Breaker Tests

func TestCalculatedBuses(t *testing.T) {
	n, vl := newNodeBreakerNetwork()
	ctx := context.Background()

	buses := vl.BusView().CalculatedBuses(ctx)
	assert.DeepEqual(t, calculatedIDs(buses), []string{"N_0"})
	assert.Equal(t, buses[0].Name(), "Sub_0")
	assert.DeepEqual(t, buses[0].Members(), []int{0, 1, 2})
	assert.Assert(t, cmp.Len(buses[0].ConnectedTerminals(ctx), 2))

	assert.DeepEqual(t, calculatedIDs(vl.BusBreakerView().CalculatedBuses(ctx)), []string{"N_0"})

	ld := terminalOf(n, "LD")
	assert.Assert(t, ld.IsConnected(ctx))
	node, ok := ld.Node()
	assert.Assert(t, ok)
	assert.Equal(t, node, 2)
	_, ok = ld.ConnectableBusID(ctx)
	assert.Assert(t, !ok)
}

func TestRetainedSplitsBusBreakerView(t *testing.T) {
	n, vl := newNodeBreakerNetwork()
	ctx := context.Background()

	sw, err := n.Switch("BR1")
	assert.NilError(t, err)
	before := vl.BusBreakerView().CalculatedBuses(ctx)

	changed, err := sw.SetRetained(ctx, true)
	assert.NilError(t, err)
	assert.Assert(t, changed)
	assert.Assert(t, !before[0].IsValid())

	assert.DeepEqual(t, calculatedIDs(vl.BusBreakerView().CalculatedBuses(ctx)), []string{"N_0", "N_2"})
	assert.DeepEqual(t, calculatedIDs(vl.BusView().CalculatedBuses(ctx)), []string{"N_0"})

	b1, ok, err := vl.BusBreakerView().Bus1(ctx, "BR1")
	assert.NilError(t, err)
	assert.Assert(t, ok)
	assert.Equal(t, b1.ID(), "N_0")
	b2, ok, err := vl.BusBreakerView().Bus2(ctx, "BR1")
	assert.NilError(t, err)
	assert.Assert(t, ok)
	assert.Equal(t, b2.ID(), "N_2")

	_, _, err = vl.BusBreakerView().Bus1(ctx, "NOPE")
	assert.Assert(t, errors.Is(err, ErrNotFound))

	retained := vl.BusBreakerView().RetainedSwitches(ctx)
	assert.Assert(t, cmp.Len(retained, 1))
	assert.Equal(t, retained[0].ID(), "BR1")

	bus, ok := terminalOf(n, "LD").BusBreakerViewBus(ctx)
	assert.Assert(t, ok)
	assert.Equal(t, bus.ID(), "N_2")
}

func TestOverwriteInvalidatesCalculatedBuses(t *testing.T) {
	n, vl := newNodeBreakerNetwork()
	ctx := context.Background()
	variants := n.Variants()

	assert.NilError(t, variants.CloneVariantTo(variant.InitialVariantID, "v1"))
	assert.NilError(t, variants.SetWorkingVariant(ctx, "v1"))
	sw, err := n.Switch("BR1")
	assert.NilError(t, err)
	_, err = sw.SetRetained(ctx, true)
	assert.NilError(t, err)
	oldBusBreaker := vl.BusBreakerView().CalculatedBuses(ctx)
	oldBus := vl.BusView().CalculatedBuses(ctx)
	assert.DeepEqual(t, calculatedIDs(oldBusBreaker), []string{"N_0", "N_2"})

	assert.NilError(t, variants.CloneVariant(variant.InitialVariantID, []string{"v1"}, true))
	for _, b := range append(oldBusBreaker, oldBus...) {
		assert.Assert(t, !b.IsValid())
	}
	err = recoverError(func() { oldBusBreaker[1].Members() })
	assert.Assert(t, errors.Is(err, topology.ErrBusInvalidated))

	assert.Assert(t, !sw.IsRetained(ctx))
	assert.DeepEqual(t, calculatedIDs(vl.BusBreakerView().CalculatedBuses(ctx)), []string{"N_0"})
}

func TestOpenBreakerLeavesNoValidBus(t *testing.T) {
	n, vl := newNodeBreakerNetwork()
	ctx := context.Background()

	sw, err := n.Switch("BR1")
	assert.NilError(t, err)
	assert.Assert(t, sw.SetOpen(ctx, true))

	assert.Assert(t, cmp.Len(vl.BusView().CalculatedBuses(ctx), 0))
	assert.Assert(t, cmp.Len(vl.BusBreakerView().CalculatedBuses(ctx), 2))

	ld := terminalOf(n, "LD")
	assert.Assert(t, !ld.IsConnected(ctx))
	_, ok := ld.ConnectableBus(ctx)
	assert.Assert(t, !ok)
}

func TestNodeBreakerConnect(t *testing.T) {
	n, vl := newNodeBreakerNetwork()
	ctx := context.Background()
	ld := terminalOf(n, "LD")
	br1, _ := n.FindSwitch("BR1")
	d1, _ := n.FindSwitch("D1")

	assert.Assert(t, !ld.Connect(ctx))

	assert.Assert(t, ld.Disconnect(ctx))
	assert.Assert(t, br1.IsOpen(ctx))
	assert.Assert(t, !ld.IsConnected(ctx))

	assert.Assert(t, ld.Connect(ctx))
	assert.Assert(t, !br1.IsOpen(ctx))
	assert.Assert(t, ld.IsConnected(ctx))
	assert.DeepEqual(t, calculatedIDs(vl.BusView().CalculatedBuses(ctx)), []string{"N_0"})

	// an open disconnector cancels the only path
	assert.Assert(t, ld.Disconnect(ctx))
	d1.SetOpen(ctx, true)
	assert.Assert(t, !ld.Connect(ctx))
	assert.Assert(t, br1.IsOpen(ctx))
}

func TestNodeBreakerDisconnectNeedsBreaker(t *testing.T) {
	n, vl := newNodeBreakerNetwork()
	ctx := context.Background()

	assert.NilError(t, vl.NewInternalConnection(0, 5))
	_, err := n.AddConnectable("LD2", "", Load, Attachment{VoltageLevel: "N", Node: 5})
	assert.NilError(t, err)

	ld2 := terminalOf(n, "LD2")
	assert.Assert(t, ld2.IsConnected(ctx))
	assert.Assert(t, !ld2.Disconnect(ctx))
	assert.Assert(t, ld2.IsConnected(ctx))
	assert.DeepEqual(t, vl.InternalConnections(), [][2]int{{0, 5}})
}

func TestNodeOccupied(t *testing.T) {
	n, _ := newNodeBreakerNetwork()

	_, err := n.AddConnectable("L9", "", Load, Attachment{VoltageLevel: "N", Node: 0})
	assert.Assert(t, errors.Is(err, ErrNodeOccupied))
	assert.ErrorContains(t, err, "An equipment (BBS1) is already connected to the node 0 of voltage level N")
	_, ok := n.FindConnectable("L9")
	assert.Assert(t, !ok)

	_, err = n.AddConnectable("L9", "", Load, Attachment{VoltageLevel: "N", Bus: "B1"})
	assert.Assert(t, errors.Is(err, ErrInvalid))
}

func TestInternalConnections(t *testing.T) {
	_, vl := newNodeBreakerNetwork()

	err := vl.RemoveInternalConnections(3, 4)
	assert.Assert(t, errors.Is(err, ErrNotFound))
	assert.ErrorContains(t, err, "Internal connection not found between 3 and 4")

	assert.NilError(t, vl.NewInternalConnection(2, 3))
	assert.NilError(t, vl.NewInternalConnection(3, 2))
	assert.Equal(t, vl.NodeCount(), 4)

	assert.NilError(t, vl.RemoveInternalConnections(2, 3))
	assert.Assert(t, cmp.Len(vl.InternalConnections(), 0))
	assert.Equal(t, vl.NodeCount(), 3)
}

func TestRemoveSwitchCleansNodes(t *testing.T) {
	_, vl := newNodeBreakerNetwork()

	_, err := vl.NewSwitch("X", "", Breaker, 7, 8, false, false)
	assert.NilError(t, err)
	assert.Equal(t, vl.NodeCount(), 5)
	n1, n2, err := vl.SwitchNodes("X")
	assert.NilError(t, err)
	assert.Equal(t, n1, 7)
	assert.Equal(t, n2, 8)

	assert.NilError(t, vl.RemoveSwitch("X"))
	assert.DeepEqual(t, vl.Nodes(), []int{0, 1, 2})

	err = vl.RemoveSwitch("X")
	assert.ErrorContains(t, err, "Switch 'X' not found in voltage level 'N'")
}

func TestNodeBreakerRemoveConnectable(t *testing.T) {
	n, vl := newNodeBreakerNetwork()
	ctx := context.Background()

	assert.NilError(t, n.RemoveConnectable("LD"))
	_, ok := vl.Terminal(2)
	assert.Assert(t, !ok)
	assert.Assert(t, cmp.Len(vl.BusView().CalculatedBuses(ctx), 0))

	// the node can be reused
	_, err := n.AddConnectable("LD", "", Generator, Attachment{VoltageLevel: "N", Node: 2})
	assert.NilError(t, err)
	assert.Assert(t, cmp.Len(vl.BusView().CalculatedBuses(ctx), 1))
}

func TestCalculatedBusViewLookups(t *testing.T) {
	_, vl := newNodeBreakerNetwork()
	ctx := context.Background()

	b, err := vl.View(ViewBus).Bus(ctx, "N_0")
	assert.NilError(t, err)
	assert.Equal(t, b.NameOrID(), "Sub_0")

	_, err = vl.View(ViewBus).Bus(ctx, "N_1")
	assert.ErrorContains(t, err, "Bus N_1 not found in voltage level N")

	bus, ok := vl.BusView().BusOf(ctx, 1)
	assert.Assert(t, ok)
	assert.Assert(t, bus == b)

	connectable, ok := vl.BusView().ConnectableBus(ctx, 2)
	assert.Assert(t, ok)
	assert.Assert(t, connectable == b)
	_, ok = vl.BusView().ConnectableBus(ctx, 42)
	assert.Assert(t, !ok)
}
