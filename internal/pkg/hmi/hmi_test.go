package hmi

import (
	"context"
	"sync"
	"testing"

	"github.com/ohowland/cgc_topology/internal/pkg/network"
	"gotest.tools/v3/assert"
)

func newNetwork() *network.Network {
	n := network.New("grid")
	vl, err := n.NewBusBreakerVoltageLevel("VL", "")
	if err != nil {
		panic(err)
	}
	for _, id := range []string{"B1", "B2"} {
		if _, err := vl.NewBus(id, ""); err != nil {
			panic(err)
		}
	}
	if _, err := vl.NewSwitch("S12", "", "B1", "B2", false); err != nil {
		panic(err)
	}
	if _, err := n.AddConnectable("L1", "", network.Load, network.Attachment{VoltageLevel: "VL", Bus: "B1"}); err != nil {
		panic(err)
	}
	if _, err := n.AddConnectable("L2", "", network.Load, network.Attachment{VoltageLevel: "VL", Bus: "B2"}); err != nil {
		panic(err)
	}
	return n
}

func TestBusRows(t *testing.T) {
	rows := busRows([]network.Snapshot{{
		VoltageLevel: "VL",
		Buses:        []network.BusSnapshot{{ID: "VL_0", Members: []string{"B1", "B2"}, Terminals: []string{"L1", "L2"}}},
	}})
	assert.DeepEqual(t, rows, [][]string{busHeader, {"VL", "VL_0", "B1 B2", "L1 L2"}})
}

func TestSwitchRows(t *testing.T) {
	n := newNetwork()
	rows := switchRows(context.Background(), n.Switches())
	assert.DeepEqual(t, rows, [][]string{switchHeader, {"S12", "VL", network.Breaker.String(), "closed"}})
}

func TestToggle(t *testing.T) {
	ctx := context.Background()
	n := newNetwork()
	h := New(n, &sync.Mutex{})
	assert.Equal(t, h.buses.GetRowCount(), 1)
	assert.Equal(t, h.switches.GetCell(1, 0).Text, "S12")

	h.toggle(ctx, 1)
	sw, err := n.Switch("S12")
	assert.NilError(t, err)
	assert.Assert(t, sw.IsOpen(ctx))
	assert.Equal(t, h.switches.GetCell(1, 3).Text, "open")

	h.toggle(ctx, 0)
	h.toggle(ctx, 5)
	assert.Assert(t, sw.IsOpen(ctx))
}
