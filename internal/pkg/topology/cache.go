package topology

import (
	"errors"
	"fmt"

	"github.com/ohowland/cgc_topology/internal/pkg/graph"
)

var (
	// ErrBusInvalidated is raised by any access to a bus whose cache was
	// invalidated.
	ErrBusInvalidated = errors.New("topology: bus has been invalidated")
	// ErrEmptyComponent is raised when a bus would be built from no member.
	ErrEmptyComponent = errors.New("topology: the set of buses is empty")
)

// Bus is an aggregate bus owned by a Cache.
type Bus interface {
	ID() string
	Invalidate()
}

// Naming carries the identity of the voltage level buses are named after.
type Naming struct {
	VoltageLevelID   string
	VoltageLevelName string
}

// Build turns the components of one scan into a frozen Cache. newBus is
// called once per valid component; components failing the level's validity
// rule leave their members unmapped.
func Build[B Bus](level Level, naming Naming, components [][]int, tally func(members []int) Tally,
	newBus func(id, name string, members []int) B) *Cache[B] {
	c := newCache[B](level)
	count := 0
	for _, members := range components {
		if len(members) == 0 {
			panic(ErrEmptyComponent)
		}
		t := tally(members)
		t.Members = len(members)
		if !level.IsValid(t) {
			continue
		}

		suffix := level.suffix(count, members)
		count++
		id := naming.VoltageLevelID + "_" + suffix
		name := ""
		if naming.VoltageLevelName != "" {
			name = naming.VoltageLevelName + "_" + suffix
		}

		b := newBus(id, name, members)
		c.byID[id] = b
		c.ordered = append(c.ordered, b)
		for _, m := range members {
			c.byMember[m] = b
		}
	}
	return c
}

// Cache is the frozen result of one scan.
type Cache[B Bus] struct {
	level       Level
	byID        map[string]B
	byMember    map[int]B
	ordered     []B
	invalidated bool
}

func newCache[B Bus](level Level) *Cache[B] {
	return &Cache[B]{
		level:    level,
		byID:     make(map[string]B),
		byMember: make(map[int]B),
		ordered:  make([]B, 0),
	}
}

// Level is the topology level the cache was built at.
func (c *Cache[B]) Level() Level {
	return c.level
}

// ByID returns the bus named id.
func (c *Cache[B]) ByID(id string) (B, bool) {
	b, ok := c.byID[id]
	return b, ok
}

// ByMember returns the bus containing vertex v.
func (c *Cache[B]) ByMember(v int) (B, bool) {
	b, ok := c.byMember[v]
	return b, ok
}

// All returns the buses in build order.
func (c *Cache[B]) All() []B {
	out := make([]B, len(c.ordered))
	copy(out, c.ordered)
	return out
}

// Len is the number of buses.
func (c *Cache[B]) Len() int {
	return len(c.ordered)
}

// IsInvalidated reports whether Invalidate was called.
func (c *Cache[B]) IsInvalidated() bool {
	return c.invalidated
}

// Invalidate marks every bus of the cache invalid and empties it.
func (c *Cache[B]) Invalidate() {
	if c.invalidated {
		return
	}
	for _, b := range c.ordered {
		b.Invalidate()
	}
	c.byID = make(map[string]B)
	c.byMember = make(map[int]B)
	c.ordered = nil
	c.invalidated = true
}

// FindConnectableBus returns the bus v belongs to. When v is in no bus, the
// graph is searched from v ignoring switch state and the first bus met is
// returned; failing that, any bus of the cache.
func FindConnectableBus[V, E any, B Bus](g *graph.Graph[V, E], v int, c *Cache[B]) (B, bool) {
	if b, ok := c.ByMember(v); ok {
		return b, true
	}

	var found B
	ok := false
	encountered := make([]bool, g.MaxVertex())
	g.Traverse(v, func(v1, e, v2 int) graph.TraverseResult {
		if ok {
			return graph.TerminatePath
		}
		if b, has := c.ByMember(v2); has {
			found, ok = b, true
			return graph.TerminatePath
		}
		return graph.Continue
	}, encountered)
	if ok {
		return found, true
	}

	if c.Len() > 0 {
		return c.ordered[0], true
	}
	var none B
	return none, false
}

// Holder owns the Cache of one variant. The cache is built on first access
// and dropped on invalidation.
type Holder[B Bus] struct {
	cache *Cache[B]
}

// NewHolder returns an empty holder.
func NewHolder[B Bus]() *Holder[B] {
	return &Holder[B]{}
}

// Get returns the current cache, building it with build if absent.
func (h *Holder[B]) Get(build func() *Cache[B]) *Cache[B] {
	if h.cache == nil {
		h.cache = build()
	}
	return h.cache
}

// Built reports whether a cache is held.
func (h *Holder[B]) Built() bool {
	return h.cache != nil
}

// Invalidate invalidates and drops the cache.
func (h *Holder[B]) Invalidate() bool {
	if h.cache == nil {
		return false
	}
	h.cache.Invalidate()
	h.cache = nil
	return true
}

// Fresh returns a new empty holder. Variant copies use it so a clone never
// shares the buses of its source.
func (h *Holder[B]) Fresh() *Holder[B] {
	return NewHolder[B]()
}

func (h *Holder[B]) String() string {
	if h.cache == nil {
		return "Holder[empty]"
	}
	return fmt.Sprintf("Holder[%s, %d buses]", h.cache.level, h.cache.Len())
}
