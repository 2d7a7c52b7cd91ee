package network

import (
	"context"
	"fmt"
	"strconv"
)

// BusSnapshot is the read-only copy of one bus.
type BusSnapshot struct {
	ID        string   `json:"ID" bson:"id"`
	Name      string   `json:"Name,omitempty" bson:"name,omitempty"`
	Members   []string `json:"Members" bson:"members"`
	Terminals []string `json:"Terminals" bson:"terminals"`
}

// Snapshot lists the buses of one view of a voltage level in one variant.
// It is published on msg.Topology after every cache build.
type Snapshot struct {
	Network      string        `json:"Network" bson:"network"`
	VoltageLevel string        `json:"VoltageLevel" bson:"voltageLevel"`
	View         string        `json:"View" bson:"view"`
	Variant      string        `json:"Variant" bson:"variant"`
	Buses        []BusSnapshot `json:"Buses" bson:"buses"`
}

// Invalidated is published on msg.Topology when buses are dropped. An empty
// Variant means every variant.
type Invalidated struct {
	Network      string `json:"Network" bson:"network"`
	VoltageLevel string `json:"VoltageLevel" bson:"voltageLevel"`
	Variant      string `json:"Variant,omitempty" bson:"variant,omitempty"`
}

// VariantEvent is published on msg.Variant when a variant is created from
// Source or removed.
type VariantEvent struct {
	Network string `json:"Network" bson:"network"`
	Source  string `json:"Source,omitempty" bson:"source,omitempty"`
	Variant string `json:"Variant" bson:"variant"`
	Removed bool   `json:"Removed" bson:"removed"`
}

func newSnapshot(ctx context.Context, n *Network, vl VoltageLevel, v View, buses []Bus) Snapshot {
	s := Snapshot{
		Network:      n.id,
		VoltageLevel: vl.ID(),
		View:         v.String(),
		Buses:        make([]BusSnapshot, 0, len(buses)),
	}
	s.Variant, _ = n.variants.WorkingVariantID(ctx)
	for _, b := range buses {
		s.Buses = append(s.Buses, BusSnapshot{
			ID:        b.ID(),
			Name:      b.Name(),
			Members:   memberIDs(b),
			Terminals: terminalIDs(b.ConnectedTerminals(ctx)),
		})
	}
	return s
}

func memberIDs(b Bus) []string {
	switch bus := b.(type) {
	case *MergedBus:
		members := bus.Members()
		out := make([]string, 0, len(members))
		for _, cb := range members {
			out = append(out, cb.ID())
		}
		return out
	case *CalculatedBus:
		members := bus.Members()
		out := make([]string, 0, len(members))
		for _, node := range members {
			out = append(out, strconv.Itoa(node))
		}
		return out
	default:
		return []string{b.ID()}
	}
}

func terminalIDs(terminals []*Terminal) []string {
	out := make([]string, 0, len(terminals))
	for _, t := range terminals {
		out = append(out, t.String())
	}
	return out
}

// String is the connectable id, suffixed with the side for multi-terminal
// connectables.
func (t *Terminal) String() string {
	if c := t.Connectable(); c != nil && len(c.terminals) > 1 {
		return fmt.Sprintf("%s:%d", t.connectableID, t.side)
	}
	return t.connectableID
}
