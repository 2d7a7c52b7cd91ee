/*
network.go Root of the object model. A Network owns its voltage levels,
switches and connectables, the variant manager every per-variant array is
registered with, and the publisher topology events go out on.
*/

package network

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/ohowland/cgc_topology/internal/pkg/msg"
	"github.com/ohowland/cgc_topology/internal/pkg/variant"
	logging "github.com/op/go-logging"
)

var logger = logging.MustGetLogger("network")

var (
	ErrNotFound            = errors.New("network: not found")
	ErrIDExists            = errors.New("network: object with the same id already exists")
	ErrInvalid             = errors.New("network: invalid")
	ErrNodeOccupied        = errors.New("network: node already used")
	ErrInUse               = errors.New("network: object in use")
	ErrRetainNotModifiable = errors.New("network: retain status is not modifiable in a non node/breaker voltage level")
	// ErrBusbarSectionInBusBreaker is raised when a scan meets a busbar
	// section in a bus/breaker voltage level.
	ErrBusbarSectionInBusBreaker = errors.New("network: busbar section in a bus/breaker voltage level")
)

// Network is a set of voltage levels and the equipment connecting them.
type Network struct {
	pid       uuid.UUID
	id        string
	variants  *variant.Manager
	publisher *msg.PubSub

	ids           map[string]struct{}
	voltageLevels map[string]VoltageLevel
	vlOrder       []string
	switches      map[string]*Switch
	connectables  map[string]*Connectable
	cnOrder       []string

	components *variant.Array[*componentCache]
}

// New returns an empty network with only the initial variant.
func New(id string) *Network {
	pid := uuid.New()
	n := &Network{
		pid:           pid,
		id:            id,
		variants:      variant.NewManager(),
		publisher:     msg.NewPublisher(pid),
		ids:           make(map[string]struct{}),
		voltageLevels: make(map[string]VoltageLevel),
		vlOrder:       make([]string, 0),
		switches:      make(map[string]*Switch),
		connectables:  make(map[string]*Connectable),
		cnOrder:       make([]string, 0),
	}
	n.components = n.newArrayOfComponents()
	n.variants.Register(variant.NewGroup(n.components))
	n.variants.AddObserver(variantPublisher{n})
	return n
}

// PID is the network identity on the message bus.
func (n *Network) PID() uuid.UUID {
	return n.pid
}

// ID is the network id.
func (n *Network) ID() string {
	return n.id
}

// Variants is the variant manager of the network.
func (n *Network) Variants() *variant.Manager {
	return n.variants
}

// Subscribe implements msg.Publisher.
func (n *Network) Subscribe(pid uuid.UUID, topic msg.Topic) (<-chan msg.Msg, error) {
	return n.publisher.Subscribe(pid, topic)
}

// Unsubscribe implements msg.Publisher.
func (n *Network) Unsubscribe(pid uuid.UUID) {
	n.publisher.Unsubscribe(pid)
}

func (n *Network) reserveID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty id", ErrInvalid)
	}
	if _, ok := n.ids[id]; ok {
		return fmt.Errorf("%w: '%s'", ErrIDExists, id)
	}
	n.ids[id] = struct{}{}
	return nil
}

func (n *Network) releaseID(id string) {
	delete(n.ids, id)
}

// NewBusBreakerVoltageLevel adds an empty bus/breaker voltage level.
func (n *Network) NewBusBreakerVoltageLevel(id, name string) (*BusBreakerVoltageLevel, error) {
	if err := n.reserveID(id); err != nil {
		return nil, err
	}
	vl := newBusBreakerVoltageLevel(n, id, name)
	n.addVoltageLevel(vl)
	return vl, nil
}

// NewNodeBreakerVoltageLevel adds an empty node/breaker voltage level.
func (n *Network) NewNodeBreakerVoltageLevel(id, name string) (*NodeBreakerVoltageLevel, error) {
	if err := n.reserveID(id); err != nil {
		return nil, err
	}
	vl := newNodeBreakerVoltageLevel(n, id, name)
	n.addVoltageLevel(vl)
	return vl, nil
}

func (n *Network) addVoltageLevel(vl VoltageLevel) {
	n.voltageLevels[vl.ID()] = vl
	n.vlOrder = append(n.vlOrder, vl.ID())
	logger.Debugf("[Network] Voltage level '%s' created (%s)", vl.ID(), vl.TopologyKind())
}

// VoltageLevel returns the voltage level id.
func (n *Network) VoltageLevel(id string) (VoltageLevel, error) {
	vl, ok := n.voltageLevels[id]
	if !ok {
		return nil, fmt.Errorf("%w: voltage level '%s'", ErrNotFound, id)
	}
	return vl, nil
}

// FindVoltageLevel returns the voltage level id, if any.
func (n *Network) FindVoltageLevel(id string) (VoltageLevel, bool) {
	vl, ok := n.voltageLevels[id]
	return vl, ok
}

// VoltageLevels returns the voltage levels in creation order.
func (n *Network) VoltageLevels() []VoltageLevel {
	out := make([]VoltageLevel, 0, len(n.vlOrder))
	for _, id := range n.vlOrder {
		out = append(out, n.voltageLevels[id])
	}
	return out
}

func (n *Network) voltageLevel(id string) VoltageLevel {
	vl, ok := n.voltageLevels[id]
	if !ok {
		panic(fmt.Errorf("%w: voltage level '%s'", ErrNotFound, id))
	}
	return vl
}

// Switch returns the switch id.
func (n *Network) Switch(id string) (*Switch, error) {
	sw, ok := n.switches[id]
	if !ok {
		return nil, fmt.Errorf("%w: switch '%s'", ErrNotFound, id)
	}
	return sw, nil
}

// FindSwitch returns the switch id, if any.
func (n *Network) FindSwitch(id string) (*Switch, bool) {
	sw, ok := n.switches[id]
	return sw, ok
}

// Switches returns every switch of the network ordered by id.
func (n *Network) Switches() []*Switch {
	out := make([]*Switch, 0, len(n.switches))
	for _, sw := range n.switches {
		out = append(out, sw)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// Connectable returns the connectable id.
func (n *Network) Connectable(id string) (*Connectable, error) {
	c, ok := n.connectables[id]
	if !ok {
		return nil, fmt.Errorf("%w: connectable '%s'", ErrNotFound, id)
	}
	return c, nil
}

// FindConnectable returns the connectable id, if any.
func (n *Network) FindConnectable(id string) (*Connectable, bool) {
	c, ok := n.connectables[id]
	return c, ok
}

// Connectables returns the connectables in creation order.
func (n *Network) Connectables() []*Connectable {
	out := make([]*Connectable, 0, len(n.cnOrder))
	for _, id := range n.cnOrder {
		out = append(out, n.connectables[id])
	}
	return out
}

// ApplySwitchStates sets the open flag of every listed switch in the working
// variant and returns the ids of the switches that changed. Unknown ids are
// reported after every known switch was applied.
func (n *Network) ApplySwitchStates(ctx context.Context, open map[string]bool) ([]string, error) {
	changed := make([]string, 0)
	var errs []error
	for id, state := range open {
		sw, ok := n.switches[id]
		if !ok {
			errs = append(errs, fmt.Errorf("%w: switch '%s'", ErrNotFound, id))
			continue
		}
		if sw.SetOpen(ctx, state) {
			changed = append(changed, id)
		}
	}
	return changed, errors.Join(errs...)
}

// Snapshots returns the buses of every voltage level in the working variant.
func (n *Network) Snapshots(ctx context.Context, v View) []Snapshot {
	out := make([]Snapshot, 0, len(n.vlOrder))
	for _, vl := range n.VoltageLevels() {
		out = append(out, vl.snapshot(ctx, v))
	}
	return out
}

// Snapshot returns the buses of one voltage level in the working variant.
func (n *Network) Snapshot(ctx context.Context, vlID string, v View) (Snapshot, error) {
	vl, err := n.VoltageLevel(vlID)
	if err != nil {
		return Snapshot{}, err
	}
	return vl.snapshot(ctx, v), nil
}

// invalidated is called by voltage levels whenever the buses of a variant
// are dropped. index < 0 means every variant.
func (n *Network) invalidated(ctx context.Context, vlID string, index int) {
	if index < 0 {
		for i := 0; i < n.components.Len(); i++ {
			if cc := n.components.At(i); cc != nil {
				cc.invalidate()
			}
		}
	} else if cc := n.components.At(index); cc != nil {
		cc.invalidate()
	}

	if !n.publisher.HasSubscribers(msg.Topology) {
		return
	}
	event := Invalidated{Network: n.id, VoltageLevel: vlID}
	if index >= 0 {
		event.Variant, _ = n.variants.WorkingVariantID(ctx)
	}
	n.publisher.Publish(msg.Topology, event)
}

func (n *Network) built(ctx context.Context, vl VoltageLevel, v View) {
	logger.Debugf("[Network] Bus cache of '%s' rebuilt (%s)", vl.ID(), v)
	if !n.publisher.HasSubscribers(msg.Topology) {
		return
	}
	n.publisher.Publish(msg.Topology, vl.snapshot(ctx, v))
}

type variantPublisher struct {
	n *Network
}

func (p variantPublisher) VariantCreated(sourceID, targetID string) {
	p.n.publisher.Publish(msg.Variant, VariantEvent{Network: p.n.id, Source: sourceID, Variant: targetID})
}

// VariantOverwritten reports the dropped buses of targetID for every voltage
// level before announcing the copy.
func (p variantPublisher) VariantOverwritten(sourceID, targetID string) {
	for _, vl := range p.n.VoltageLevels() {
		p.n.publisher.Publish(msg.Topology, Invalidated{Network: p.n.id, VoltageLevel: vl.ID(), Variant: targetID})
	}
	p.n.publisher.Publish(msg.Variant, VariantEvent{Network: p.n.id, Source: sourceID, Variant: targetID})
}

func (p variantPublisher) VariantRemoved(id string) {
	p.n.publisher.Publish(msg.Variant, VariantEvent{Network: p.n.id, Variant: id, Removed: true})
}
