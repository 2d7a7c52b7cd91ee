package network

import (
	"context"

	"github.com/ohowland/cgc_topology/internal/pkg/variant"
)

// Switch is an edge of a voltage level graph. Its open and retained flags are
// kept per variant.
type Switch struct {
	network    *Network
	vlID       string
	id         string
	name       string
	kind       SwitchKind
	fictitious bool

	open     *variant.Array[bool]
	retained *variant.Array[bool]
	slots    *variant.Group
}

func newSwitch(n *Network, vlID, id, name string, kind SwitchKind, open, retained, fictitious bool) *Switch {
	size := n.variants.ArraySize()
	sw := &Switch{
		network:    n,
		vlID:       vlID,
		id:         id,
		name:       name,
		kind:       kind,
		fictitious: fictitious,
		open:       variant.NewArray(n.variants, size, open, nil),
		retained:   variant.NewArray(n.variants, size, retained, nil),
	}
	sw.slots = variant.NewGroup(sw.open, sw.retained)
	n.variants.Register(sw.slots)
	return sw
}

func (sw *Switch) release() {
	sw.network.variants.Unregister(sw.slots)
}

// ID is the switch id.
func (sw *Switch) ID() string { return sw.id }

// Name is the optional switch name.
func (sw *Switch) Name() string { return sw.name }

// NameOrID is the name, or the id when unnamed.
func (sw *Switch) NameOrID() string { return nameOrID(sw.name, sw.id) }

// Kind is the switch device type.
func (sw *Switch) Kind() SwitchKind { return sw.kind }

// IsFictitious reports whether the switch models no real device.
func (sw *Switch) IsFictitious() bool { return sw.fictitious }

// VoltageLevelID is the voltage level holding the switch.
func (sw *Switch) VoltageLevelID() string { return sw.vlID }

// IsOpen reads the open flag of the working variant.
func (sw *Switch) IsOpen(ctx context.Context) bool {
	return sw.open.Get(ctx)
}

// SetOpen writes the open flag of the working variant. The buses of the
// variant are dropped when the flag changes. It reports whether it changed.
func (sw *Switch) SetOpen(ctx context.Context, open bool) bool {
	if sw.open.Set(ctx, open) == open {
		return false
	}
	sw.network.voltageLevel(sw.vlID).InvalidateCache(ctx)
	return true
}

// IsRetained reads the retained flag of the working variant.
func (sw *Switch) IsRetained(ctx context.Context) bool {
	return sw.retained.Get(ctx)
}

// SetRetained writes the retained flag of the working variant. Only
// node/breaker voltage levels accept it.
func (sw *Switch) SetRetained(ctx context.Context, retained bool) (bool, error) {
	if sw.network.voltageLevel(sw.vlID).TopologyKind() != NodeBreaker {
		return false, ErrRetainNotModifiable
	}
	if sw.retained.Set(ctx, retained) == retained {
		return false, nil
	}
	sw.network.voltageLevel(sw.vlID).InvalidateCache(ctx)
	return true, nil
}
