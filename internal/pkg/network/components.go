package network

import (
	"context"
	"sort"

	"github.com/ohowland/cgc_topology/internal/pkg/variant"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// Component is a set of bus-view buses linked by multi-terminal
// connectables. Num 0 is the largest component.
type Component struct {
	Num   int
	Buses []Bus
}

type componentCache struct {
	built      bool
	components []Component
	byBus      map[string]int
}

func newComponentCache() *componentCache {
	return &componentCache{}
}

func (cc *componentCache) invalidate() {
	cc.built = false
	cc.components = nil
	cc.byBus = nil
}

func (n *Network) newArrayOfComponents() *variant.Array[*componentCache] {
	return variant.NewArray(n.variants, n.variants.ArraySize(), newComponentCache(),
		func(*componentCache) *componentCache { return newComponentCache() }).
		WithRelease(func(cc *componentCache) {
			if cc != nil {
				cc.invalidate()
			}
		})
}

// ConnectedComponents returns the connected components of the working
// variant, largest first.
func (n *Network) ConnectedComponents(ctx context.Context) []Component {
	cc := n.componentCache(ctx)
	out := make([]Component, len(cc.components))
	copy(out, cc.components)
	return out
}

// ComponentOf returns the component holding the bus-view bus busID.
func (n *Network) ComponentOf(ctx context.Context, busID string) (Component, bool) {
	cc := n.componentCache(ctx)
	i, ok := cc.byBus[busID]
	if !ok {
		return Component{}, false
	}
	return cc.components[i], true
}

func (n *Network) componentCache(ctx context.Context) *componentCache {
	cc := n.components.Get(ctx)
	if cc == nil {
		cc = newComponentCache()
		n.components.Set(ctx, cc)
	}
	if !cc.built {
		n.buildComponents(ctx, cc)
	}
	return cc
}

func (n *Network) buildComponents(ctx context.Context, cc *componentCache) {
	buses := make([]Bus, 0)
	order := make(map[string]int64)
	for _, vl := range n.VoltageLevels() {
		for _, b := range vl.View(ViewBus).Buses(ctx) {
			order[b.ID()] = int64(len(buses))
			buses = append(buses, b)
		}
	}

	g := simple.NewUndirectedGraph()
	for i := range buses {
		g.AddNode(simple.Node(int64(i)))
	}
	for _, c := range n.Connectables() {
		if len(c.terminals) < 2 {
			continue
		}
		ends := make([]int64, 0, len(c.terminals))
		for _, t := range c.terminals {
			if b, ok := t.BusViewBus(ctx); ok {
				ends = append(ends, order[b.ID()])
			}
		}
		for i := 0; i < len(ends); i++ {
			for j := i + 1; j < len(ends); j++ {
				if ends[i] != ends[j] {
					g.SetEdge(simple.Edge{F: simple.Node(ends[i]), T: simple.Node(ends[j])})
				}
			}
		}
	}

	groups := make([][]int64, 0)
	for _, nodes := range topo.ConnectedComponents(g) {
		ids := make([]int64, 0, len(nodes))
		for _, node := range nodes {
			ids = append(ids, node.ID())
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		groups = append(groups, ids)
	}
	sort.Slice(groups, func(i, j int) bool {
		if len(groups[i]) != len(groups[j]) {
			return len(groups[i]) > len(groups[j])
		}
		return groups[i][0] < groups[j][0]
	})

	cc.components = make([]Component, 0, len(groups))
	cc.byBus = make(map[string]int)
	for num, ids := range groups {
		component := Component{Num: num, Buses: make([]Bus, 0, len(ids))}
		for _, id := range ids {
			b := buses[id]
			component.Buses = append(component.Buses, b)
			cc.byBus[b.ID()] = num
		}
		cc.components = append(cc.components, component)
	}
	cc.built = true
	logger.Debugf("[Network] %d connected components computed over %d buses", len(cc.components), len(buses))
}
