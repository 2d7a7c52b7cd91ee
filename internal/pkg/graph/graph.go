/*
graph.go Sparse undirected graph with stable, reusable vertex and edge indices.
Vertices and edges carry optional payloads. A removed index is tombstoned and
handed back by the next add.
*/

package graph

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	// ErrVertexNotFound is raised when an index does not name a live vertex.
	ErrVertexNotFound = errors.New("graph: vertex not found")
	// ErrEdgeNotFound is raised when an index does not name a live edge.
	ErrEdgeNotFound = errors.New("graph: edge not found")
	// ErrVertexConnected is returned when removing a vertex that still has edges.
	ErrVertexConnected = errors.New("graph: an edge is connected to vertex")
)

type vertex[V any] struct {
	obj *V
}

type edge[E any] struct {
	v1  int
	v2  int
	obj *E
}

// Graph is an undirected multigraph. Structural edits are not synchronized;
// callers serialize them. Reads from several goroutines are safe.
type Graph[V, E any] struct {
	vertices        []*vertex[V]
	edges           []*edge[E]
	removedVertices []int
	removedEdges    []int

	mux       sync.Mutex
	adjacency [][]int
}

// New returns an empty graph.
func New[V, E any]() *Graph[V, E] {
	return &Graph[V, E]{}
}

// AddVertex creates a vertex without payload and returns its index.
func (g *Graph[V, E]) AddVertex() int {
	var v int
	if len(g.removedVertices) == 0 {
		v = len(g.vertices)
		g.vertices = append(g.vertices, &vertex[V]{})
	} else {
		v = g.removedVertices[0]
		g.removedVertices = g.removedVertices[1:]
		g.vertices[v] = &vertex[V]{}
	}
	g.invalidateAdjacency()
	return v
}

// AddVertexIfNotPresent makes v a live vertex. Indices skipped on the way
// become free placeholders.
func (g *Graph[V, E]) AddVertexIfNotPresent(v int) {
	if v < 0 {
		panic(fmt.Errorf("%w: %d", ErrVertexNotFound, v))
	}
	if v < len(g.vertices) {
		if g.vertices[v] == nil {
			g.vertices[v] = &vertex[V]{}
			g.removedVertices = removeIndex(g.removedVertices, v)
			g.invalidateAdjacency()
		}
		return
	}
	for i := len(g.vertices); i < v; i++ {
		g.vertices = append(g.vertices, nil)
		g.removedVertices = insertIndex(g.removedVertices, i)
	}
	g.vertices = append(g.vertices, &vertex[V]{})
	g.invalidateAdjacency()
}

// VertexExists reports whether v is a live vertex.
func (g *Graph[V, E]) VertexExists(v int) bool {
	return v >= 0 && v < len(g.vertices) && g.vertices[v] != nil
}

// EdgeExists reports whether e is a live edge.
func (g *Graph[V, E]) EdgeExists(e int) bool {
	return e >= 0 && e < len(g.edges) && g.edges[e] != nil
}

// AddEdge connects v1 and v2. A nil obj makes a permanent internal link.
func (g *Graph[V, E]) AddEdge(v1, v2 int, obj *E) int {
	g.checkVertex(v1)
	g.checkVertex(v2)

	ed := &edge[E]{v1: v1, v2: v2, obj: obj}
	var e int
	if len(g.removedEdges) == 0 {
		e = len(g.edges)
		g.edges = append(g.edges, ed)
	} else {
		e = g.removedEdges[0]
		g.removedEdges = g.removedEdges[1:]
		g.edges[e] = ed
	}
	g.invalidateAdjacency()
	return e
}

// RemoveVertex removes v and returns its payload.
func (g *Graph[V, E]) RemoveVertex(v int) (*V, error) {
	g.checkVertex(v)
	for _, ed := range g.edges {
		if ed != nil && (ed.v1 == v || ed.v2 == v) {
			return nil, fmt.Errorf("%w %d", ErrVertexConnected, v)
		}
	}

	obj := g.vertices[v].obj
	if v == len(g.vertices)-1 {
		g.vertices = g.vertices[:v]
		g.trimVertices()
	} else {
		g.vertices[v] = nil
		g.removedVertices = insertIndex(g.removedVertices, v)
	}
	g.invalidateAdjacency()
	return obj, nil
}

// RemoveAllVertices empties the vertex set. It fails while edges remain.
func (g *Graph[V, E]) RemoveAllVertices() error {
	if g.EdgeCount() > 0 {
		return errors.New("graph: cannot remove all vertices because there is still some edges in the graph")
	}
	g.vertices = nil
	g.removedVertices = nil
	g.invalidateAdjacency()
	return nil
}

// RemoveEdge removes e and returns its payload.
func (g *Graph[V, E]) RemoveEdge(e int) *E {
	g.checkEdge(e)

	obj := g.edges[e].obj
	if e == len(g.edges)-1 {
		g.edges = g.edges[:e]
		g.trimEdges()
	} else {
		g.edges[e] = nil
		g.removedEdges = insertIndex(g.removedEdges, e)
	}
	g.invalidateAdjacency()
	return obj
}

// RemoveAllEdges drops every edge.
func (g *Graph[V, E]) RemoveAllEdges() {
	g.edges = nil
	g.removedEdges = nil
	g.invalidateAdjacency()
}

// RemoveIsolatedVertices drops every payload-less vertex that has no edge.
func (g *Graph[V, E]) RemoveIsolatedVertices() {
	adjacency := g.adjacencyList()
	isolated := make([]int, 0)
	for v, vx := range g.vertices {
		if vx != nil && vx.obj == nil && len(adjacency[v]) == 0 {
			isolated = append(isolated, v)
		}
	}
	for i := len(isolated) - 1; i >= 0; i-- {
		if g.VertexExists(isolated[i]) {
			if _, err := g.RemoveVertex(isolated[i]); err != nil {
				panic(err)
			}
		}
	}
}

// VertexObject returns the payload of v, nil when absent.
func (g *Graph[V, E]) VertexObject(v int) *V {
	g.checkVertex(v)
	return g.vertices[v].obj
}

// SetVertexObject replaces the payload of v.
func (g *Graph[V, E]) SetVertexObject(v int, obj *V) {
	g.checkVertex(v)
	g.vertices[v].obj = obj
}

// EdgeObject returns the payload of e, nil for an internal link.
func (g *Graph[V, E]) EdgeObject(e int) *E {
	g.checkEdge(e)
	return g.edges[e].obj
}

// EdgeObjectsBetween returns the payloads of every edge joining v1 and v2.
func (g *Graph[V, E]) EdgeObjectsBetween(v1, v2 int) []*E {
	g.checkVertex(v1)
	g.checkVertex(v2)

	objs := make([]*E, 0)
	for _, e := range g.adjacencyList()[v1] {
		ed := g.edges[e]
		if (ed.v1 == v1 && ed.v2 == v2) || (ed.v1 == v2 && ed.v2 == v1) {
			objs = append(objs, ed.obj)
		}
	}
	return objs
}

// Vertex1 is the first endpoint of e.
func (g *Graph[V, E]) Vertex1(e int) int {
	g.checkEdge(e)
	return g.edges[e].v1
}

// Vertex2 is the second endpoint of e.
func (g *Graph[V, E]) Vertex2(e int) int {
	g.checkEdge(e)
	return g.edges[e].v2
}

// VertexCount is the number of live vertices.
func (g *Graph[V, E]) VertexCount() int {
	return len(g.vertices) - len(g.removedVertices)
}

// EdgeCount is the number of live edges.
func (g *Graph[V, E]) EdgeCount() int {
	return len(g.edges) - len(g.removedEdges)
}

// MaxVertex is the upper bound of the vertex index space. Auxiliary arrays
// indexed by vertex are sized with it.
func (g *Graph[V, E]) MaxVertex() int {
	return len(g.vertices)
}

// Vertices returns the live vertex indices in ascending order.
func (g *Graph[V, E]) Vertices() []int {
	vs := make([]int, 0, g.VertexCount())
	for v, vx := range g.vertices {
		if vx != nil {
			vs = append(vs, v)
		}
	}
	return vs
}

// Edges returns the live edge indices in ascending order.
func (g *Graph[V, E]) Edges() []int {
	es := make([]int, 0, g.EdgeCount())
	for e, ed := range g.edges {
		if ed != nil {
			es = append(es, e)
		}
	}
	return es
}

// VertexObjects returns the non-nil vertex payloads in index order.
func (g *Graph[V, E]) VertexObjects() []*V {
	objs := make([]*V, 0)
	for _, vx := range g.vertices {
		if vx != nil && vx.obj != nil {
			objs = append(objs, vx.obj)
		}
	}
	return objs
}

// EdgeObjects returns the non-nil edge payloads in index order.
func (g *Graph[V, E]) EdgeObjects() []*E {
	objs := make([]*E, 0)
	for _, ed := range g.edges {
		if ed != nil && ed.obj != nil {
			objs = append(objs, ed.obj)
		}
	}
	return objs
}

func (g *Graph[V, E]) checkVertex(v int) {
	if !g.VertexExists(v) {
		panic(fmt.Errorf("%w: %d", ErrVertexNotFound, v))
	}
}

func (g *Graph[V, E]) checkEdge(e int) {
	if !g.EdgeExists(e) {
		panic(fmt.Errorf("%w: %d", ErrEdgeNotFound, e))
	}
}

func (g *Graph[V, E]) trimVertices() {
	for len(g.vertices) > 0 && g.vertices[len(g.vertices)-1] == nil {
		last := len(g.vertices) - 1
		g.vertices = g.vertices[:last]
		g.removedVertices = removeIndex(g.removedVertices, last)
	}
}

func (g *Graph[V, E]) trimEdges() {
	for len(g.edges) > 0 && g.edges[len(g.edges)-1] == nil {
		last := len(g.edges) - 1
		g.edges = g.edges[:last]
		g.removedEdges = removeIndex(g.removedEdges, last)
	}
}

func (g *Graph[V, E]) invalidateAdjacency() {
	g.mux.Lock()
	defer g.mux.Unlock()
	g.adjacency = nil
}

// adjacencyList is rebuilt on first read after a structural change.
func (g *Graph[V, E]) adjacencyList() [][]int {
	g.mux.Lock()
	defer g.mux.Unlock()
	if g.adjacency != nil {
		return g.adjacency
	}

	adjacency := make([][]int, len(g.vertices))
	for e, ed := range g.edges {
		if ed == nil {
			continue
		}
		adjacency[ed.v1] = append(adjacency[ed.v1], e)
		if ed.v2 != ed.v1 {
			adjacency[ed.v2] = append(adjacency[ed.v2], e)
		}
	}
	g.adjacency = adjacency
	return adjacency
}

// insertIndex keeps the free list sorted so the smallest index is reused first.
func insertIndex(set []int, i int) []int {
	pos := sort.SearchInts(set, i)
	if pos < len(set) && set[pos] == i {
		return set
	}
	set = append(set, 0)
	copy(set[pos+1:], set[pos:])
	set[pos] = i
	return set
}

func removeIndex(set []int, i int) []int {
	pos := sort.SearchInts(set, i)
	if pos < len(set) && set[pos] == i {
		return append(set[:pos], set[pos+1:]...)
	}
	return set
}
