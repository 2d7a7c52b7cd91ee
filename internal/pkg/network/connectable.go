package network

import (
	"context"
	"fmt"

	"github.com/ohowland/cgc_topology/internal/pkg/variant"
)

// Attachment tells AddConnectable where a terminal goes.
type Attachment struct {
	VoltageLevel string
	// Node is the node of a node/breaker voltage level.
	Node int
	// Bus is the configured bus a bus/breaker terminal is connected to.
	// Empty means disconnected.
	Bus string
	// ConnectableBus is the configured bus a bus/breaker terminal can be
	// connected to. It defaults to Bus.
	ConnectableBus string
}

func (a Attachment) connectableBus() string {
	if a.ConnectableBus != "" {
		return a.ConnectableBus
	}
	return a.Bus
}

// Connectable is any equipment attached to voltage levels by terminals.
type Connectable struct {
	network   *Network
	id        string
	name      string
	typ       ConnectableType
	terminals []*Terminal
}

// ID is the connectable id.
func (c *Connectable) ID() string { return c.id }

// Name is the optional connectable name.
func (c *Connectable) Name() string { return c.name }

// NameOrID is the name, or the id when unnamed.
func (c *Connectable) NameOrID() string { return nameOrID(c.name, c.id) }

// Type is the connectable classification.
func (c *Connectable) Type() ConnectableType { return c.typ }

// Terminals returns the terminals, side 1 first.
func (c *Connectable) Terminals() []*Terminal {
	out := make([]*Terminal, len(c.terminals))
	copy(out, c.terminals)
	return out
}

// Terminal returns the terminal of side (1-based).
func (c *Connectable) Terminal(side int) (*Terminal, error) {
	if side < 1 || side > len(c.terminals) {
		return nil, fmt.Errorf("%w: side %d of '%s'", ErrNotFound, side, c.id)
	}
	return c.terminals[side-1], nil
}

// Terminal binds one side of a connectable to a voltage level. Bus/breaker
// terminals keep their bus and connection state per variant; node/breaker
// terminals sit on a node and are connected when that node is in a bus.
type Terminal struct {
	network       *Network
	connectableID string
	side          int
	vlID          string
	node          int

	connectableBus *variant.Array[string]
	connected      *variant.Array[bool]
	slots          *variant.Group
}

// ConnectableID is the id of the owning connectable.
func (t *Terminal) ConnectableID() string { return t.connectableID }

// Connectable resolves the owning connectable.
func (t *Terminal) Connectable() *Connectable {
	return t.network.connectables[t.connectableID]
}

// Side is the 1-based terminal side.
func (t *Terminal) Side() int { return t.side }

// VoltageLevelID is the voltage level the terminal is attached to.
func (t *Terminal) VoltageLevelID() string { return t.vlID }

// Node is the node of a node/breaker terminal.
func (t *Terminal) Node() (int, bool) {
	return t.node, t.node >= 0
}

// ConnectableBusID is the configured bus of a bus/breaker terminal in the
// working variant.
func (t *Terminal) ConnectableBusID(ctx context.Context) (string, bool) {
	if t.connectableBus == nil {
		return "", false
	}
	return t.connectableBus.Get(ctx), true
}

// IsConnected reports whether the terminal is connected in the working
// variant.
func (t *Terminal) IsConnected(ctx context.Context) bool {
	if t.connected != nil {
		return t.connected.Get(ctx)
	}
	_, ok := t.BusViewBus(ctx)
	return ok
}

// BusViewBus returns the bus-view bus the terminal is on.
func (t *Terminal) BusViewBus(ctx context.Context) (Bus, bool) {
	return t.network.voltageLevel(t.vlID).terminalBus(ctx, t, ViewBus)
}

// BusBreakerViewBus returns the bus-breaker-view bus the terminal is on.
func (t *Terminal) BusBreakerViewBus(ctx context.Context) (Bus, bool) {
	return t.network.voltageLevel(t.vlID).terminalBus(ctx, t, ViewBusBreaker)
}

// ConnectableBus returns the bus-view bus the terminal would be on if
// connected, or any bus of the voltage level when none can be found.
func (t *Terminal) ConnectableBus(ctx context.Context) (Bus, bool) {
	return t.network.voltageLevel(t.vlID).connectableBus(ctx, t)
}

// Connect connects the terminal in the working variant and reports whether
// anything changed.
func (t *Terminal) Connect(ctx context.Context) bool {
	return t.network.voltageLevel(t.vlID).connect(ctx, t)
}

// Disconnect disconnects the terminal in the working variant. For
// node/breaker terminals it reports false when some path to a busbar section
// has no breaker to open.
func (t *Terminal) Disconnect(ctx context.Context) bool {
	return t.network.voltageLevel(t.vlID).disconnect(ctx, t)
}

func (t *Terminal) release() {
	if t.slots != nil {
		t.network.variants.Unregister(t.slots)
	}
}

// AddConnectable creates a connectable and attaches one terminal per
// attachment. Every attachment is checked before anything is attached.
func (n *Network) AddConnectable(id, name string, typ ConnectableType, attachments ...Attachment) (*Connectable, error) {
	if len(attachments) != typ.TerminalCount() {
		return nil, fmt.Errorf("%w: %s '%s' needs %d terminals, got %d", ErrInvalid, typ, id, typ.TerminalCount(), len(attachments))
	}

	nodes := make(map[string]map[int]bool)
	for _, a := range attachments {
		vl, ok := n.voltageLevels[a.VoltageLevel]
		if !ok {
			return nil, fmt.Errorf("%w: voltage level '%s'", ErrNotFound, a.VoltageLevel)
		}
		if typ == BusbarSection && vl.TopologyKind() != NodeBreaker {
			return nil, fmt.Errorf("%w: busbar section '%s' in bus/breaker voltage level '%s'", ErrInvalid, id, vl.ID())
		}
		if err := vl.checkAttach(a); err != nil {
			return nil, fmt.Errorf("%s '%s': %w", typ, id, err)
		}
		if vl.TopologyKind() == NodeBreaker {
			if nodes[vl.ID()] == nil {
				nodes[vl.ID()] = make(map[int]bool)
			}
			if nodes[vl.ID()][a.Node] {
				return nil, fmt.Errorf("%w: node %d of voltage level %s used twice by '%s'", ErrNodeOccupied, a.Node, vl.ID(), id)
			}
			nodes[vl.ID()][a.Node] = true
		}
	}
	if err := n.reserveID(id); err != nil {
		return nil, err
	}

	c := &Connectable{network: n, id: id, name: name, typ: typ}
	n.connectables[id] = c
	n.cnOrder = append(n.cnOrder, id)

	for i, a := range attachments {
		t := n.newTerminal(c, i+1, a)
		if err := n.voltageLevel(a.VoltageLevel).attach(t); err != nil {
			panic(err)
		}
		c.terminals = append(c.terminals, t)
	}
	return c, nil
}

func (n *Network) newTerminal(c *Connectable, side int, a Attachment) *Terminal {
	t := &Terminal{network: n, connectableID: c.id, side: side, vlID: a.VoltageLevel, node: -1}
	if n.voltageLevel(a.VoltageLevel).TopologyKind() == NodeBreaker {
		t.node = a.Node
		return t
	}
	size := n.variants.ArraySize()
	t.connectableBus = variant.NewArray(n.variants, size, a.connectableBus(), nil)
	t.connected = variant.NewArray(n.variants, size, a.Bus != "", nil)
	t.slots = variant.NewGroup(t.connectableBus, t.connected)
	n.variants.Register(t.slots)
	return t
}

// RemoveConnectable detaches every terminal of id and forgets it.
func (n *Network) RemoveConnectable(id string) error {
	c, ok := n.connectables[id]
	if !ok {
		return fmt.Errorf("%w: connectable '%s'", ErrNotFound, id)
	}
	for _, t := range c.terminals {
		n.voltageLevel(t.vlID).detach(t)
		t.release()
	}
	delete(n.connectables, id)
	for i, cid := range n.cnOrder {
		if cid == id {
			n.cnOrder = append(n.cnOrder[:i], n.cnOrder[i+1:]...)
			break
		}
	}
	n.releaseID(id)
	return nil
}
