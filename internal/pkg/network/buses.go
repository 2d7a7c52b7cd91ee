package network

import (
	"context"
	"fmt"

	"github.com/ohowland/cgc_topology/internal/pkg/topology"
)

// aggregate is shared by merged and calculated buses: an identity fixed at
// build time and a flag flipped when the owning cache is invalidated.
type aggregate struct {
	network     *Network
	vlID        string
	id          string
	name        string
	invalidated bool
}

func (a *aggregate) check() {
	if a.invalidated {
		panic(fmt.Errorf("%w: %s", topology.ErrBusInvalidated, a.id))
	}
}

func (a *aggregate) ID() string {
	a.check()
	return a.id
}

func (a *aggregate) Name() string {
	a.check()
	return a.name
}

func (a *aggregate) NameOrID() string {
	a.check()
	return nameOrID(a.name, a.id)
}

func (a *aggregate) IsFictitious() bool {
	a.check()
	return false
}

func (a *aggregate) VoltageLevelID() string {
	a.check()
	return a.vlID
}

// IsValid is false once the cache holding the bus was invalidated.
func (a *aggregate) IsValid() bool {
	return !a.invalidated
}

// Invalidate implements topology.Bus.
func (a *aggregate) Invalidate() {
	a.invalidated = true
}

// MergedBus is a set of configured buses joined by closed switches.
type MergedBus struct {
	aggregate
	buses []*ConfiguredBus
}

func newMergedBus(n *Network, vlID, id, name string, buses []*ConfiguredBus) *MergedBus {
	return &MergedBus{
		aggregate: aggregate{network: n, vlID: vlID, id: id, name: name},
		buses:     buses,
	}
}

// Members returns the configured buses in discovery order.
func (b *MergedBus) Members() []*ConfiguredBus {
	b.check()
	out := make([]*ConfiguredBus, len(b.buses))
	copy(out, b.buses)
	return out
}

// ConnectedTerminals returns the connected terminals of every member.
func (b *MergedBus) ConnectedTerminals(ctx context.Context) []*Terminal {
	b.check()
	out := make([]*Terminal, 0)
	for _, cb := range b.buses {
		out = append(out, cb.ConnectedTerminals(ctx)...)
	}
	return out
}

func (b *MergedBus) String() string {
	return fmt.Sprintf("MergedBus[%s]", b.id)
}

// CalculatedBus is a set of nodes of a node/breaker voltage level.
type CalculatedBus struct {
	aggregate
	nodes     []int
	terminals []*Terminal
}

func newCalculatedBus(n *Network, vlID, id, name string, nodes []int, terminals []*Terminal) *CalculatedBus {
	return &CalculatedBus{
		aggregate: aggregate{network: n, vlID: vlID, id: id, name: name},
		nodes:     nodes,
		terminals: terminals,
	}
}

// Members returns the nodes in discovery order.
func (b *CalculatedBus) Members() []int {
	b.check()
	out := make([]int, len(b.nodes))
	copy(out, b.nodes)
	return out
}

// ConnectedTerminals returns the terminals sitting on the nodes of the bus.
func (b *CalculatedBus) ConnectedTerminals(ctx context.Context) []*Terminal {
	b.check()
	out := make([]*Terminal, len(b.terminals))
	copy(out, b.terminals)
	return out
}

func (b *CalculatedBus) String() string {
	return fmt.Sprintf("CalculatedBus[%s]", b.id)
}
