package topology

import (
	"github.com/ohowland/cgc_topology/internal/pkg/graph"
)

// VertexSeeds seeds a scan from every vertex.
func VertexSeeds[V, E any](g *graph.Graph[V, E]) []int {
	return g.Vertices()
}

// EdgeSeeds seeds a scan from both endpoints of every edge. Isolated
// vertices never start a component.
func EdgeSeeds[V, E any](g *graph.Graph[V, E]) []int {
	edges := g.Edges()
	seeds := make([]int, 0, 2*len(edges))
	for _, e := range edges {
		seeds = append(seeds, g.Vertex1(e), g.Vertex2(e))
	}
	return seeds
}

// Scan partitions the graph reachable from seeds into connected components.
// Traversal crosses every edge for which boundary is false. Components come
// in seed order, members in discovery order.
func Scan[V, E any](g *graph.Graph[V, E], seeds []int, boundary func(e int) bool) [][]int {
	encountered := make([]bool, g.MaxVertex())
	components := make([][]int, 0)

	for _, seed := range seeds {
		if encountered[seed] {
			continue
		}
		component := []int{seed}
		g.Traverse(seed, func(v1, e, v2 int) graph.TraverseResult {
			if boundary(e) {
				return graph.TerminatePath
			}
			component = append(component, v2)
			return graph.Continue
		}, encountered)
		components = append(components, component)
	}
	return components
}
