package network

import (
	"context"
	"testing"

	"gotest.tools/v3/assert"
	"gotest.tools/v3/assert/cmp"
)

func componentIDs(c Component) []string {
	out := make([]string, 0, len(c.Buses))
	for _, b := range c.Buses {
		out = append(out, b.ID())
	}
	return out
}

// addIsland adds VL3 with two configured buses linked only by LN3.
func addIsland(n *Network) {
	vl3, err := n.NewBusBreakerVoltageLevel("VL3", "")
	if err != nil {
		panic(err)
	}
	for _, id := range []string{"Y", "Z"} {
		if _, err := vl3.NewBus(id, ""); err != nil {
			panic(err)
		}
	}
	if _, err := n.AddConnectable("LN3", "", Line,
		Attachment{VoltageLevel: "VL3", Bus: "Y"}, Attachment{VoltageLevel: "VL3", Bus: "Z"}); err != nil {
		panic(err)
	}
}

func TestConnectedComponents(t *testing.T) {
	n, _ := newBusBreakerNetwork()
	addIsland(n)
	ctx := context.Background()

	components := n.ConnectedComponents(ctx)
	assert.Assert(t, cmp.Len(components, 2))
	assert.Equal(t, components[0].Num, 0)
	assert.DeepEqual(t, componentIDs(components[0]), []string{"VL_0", "VL_1", "VL2_0"})
	assert.Equal(t, components[1].Num, 1)
	assert.DeepEqual(t, componentIDs(components[1]), []string{"VL3_0", "VL3_1"})

	c, ok := n.ComponentOf(ctx, "VL3_1")
	assert.Assert(t, ok)
	assert.Equal(t, c.Num, 1)

	_, ok = n.ComponentOf(ctx, "VL_9")
	assert.Assert(t, !ok)
}

func TestComponentsTieOnBusOrder(t *testing.T) {
	n, _ := newBusBreakerNetwork()
	addIsland(n)
	ctx := context.Background()

	n.ConnectedComponents(ctx)
	assert.Assert(t, terminalOf(n, "LN2").Disconnect(ctx))

	components := n.ConnectedComponents(ctx)
	assert.Assert(t, cmp.Len(components, 2))
	assert.DeepEqual(t, componentIDs(components[0]), []string{"VL_0", "VL2_0"})
	assert.DeepEqual(t, componentIDs(components[1]), []string{"VL3_0", "VL3_1"})
}

func TestComponentsFollowVariant(t *testing.T) {
	n, _ := newBusBreakerNetwork()
	ctx := context.Background()

	assert.NilError(t, n.Variants().CloneVariantTo("InitialVariant", "v1"))
	assert.NilError(t, n.Variants().SetWorkingVariant(ctx, "v1"))
	sw, err := n.Switch("S23")
	assert.NilError(t, err)
	sw.SetOpen(ctx, false)

	components := n.ConnectedComponents(ctx)
	assert.Assert(t, cmp.Len(components, 1))
	assert.DeepEqual(t, componentIDs(components[0]), []string{"VL_0", "VL2_0"})

	assert.NilError(t, n.Variants().SetWorkingVariant(ctx, "InitialVariant"))
	assert.DeepEqual(t, componentIDs(n.ConnectedComponents(ctx)[0]), []string{"VL_0", "VL_1", "VL2_0"})
}
