package graph

import (
	"fmt"
	"sort"
)

// TraverseResult tells Traverse what to do with the edge just visited.
type TraverseResult int

const (
	// Continue crosses the edge, marks the far vertex and recurses from it.
	Continue TraverseResult = iota
	// TerminatePath skips this edge only. Sibling edges are still visited.
	TerminatePath
	// Terminate aborts the whole traversal.
	Terminate
)

func (r TraverseResult) String() string {
	switch r {
	case Continue:
		return "CONTINUE"
	case TerminatePath:
		return "TERMINATE_PATH"
	case Terminate:
		return "TERMINATE"
	default:
		return fmt.Sprintf("TraverseResult(%d)", int(r))
	}
}

// Traverser is called with the known vertex, the edge and the unvisited vertex.
type Traverser func(v1, e, v2 int) TraverseResult

// Traverse explores the neighborhood of v guided by t. encountered is owned
// by the caller, must hold at least MaxVertex entries and may be shared by
// several calls so a full scan rediscovers nothing. It returns false when t
// answered Terminate.
func (g *Graph[V, E]) Traverse(v int, t Traverser, encountered []bool) bool {
	g.checkVertex(v)
	if len(encountered) < len(g.vertices) {
		panic(fmt.Sprintf("graph: encountered set too short (%d < %d)", len(encountered), len(g.vertices)))
	}
	return g.traverse(v, t, g.adjacencyList(), encountered)
}

func (g *Graph[V, E]) traverse(v int, t Traverser, adjacency [][]int, encountered []bool) bool {
	encountered[v] = true

	for _, e := range adjacency[v] {
		ed := g.edges[e]

		var from, to int
		switch {
		case !encountered[ed.v1]:
			from, to = ed.v2, ed.v1
		case !encountered[ed.v2]:
			from, to = ed.v1, ed.v2
		default:
			continue
		}

		switch t(from, e, to) {
		case Continue:
			if !g.traverse(to, t, adjacency, encountered) {
				return false
			}
		case Terminate:
			return false
		}
	}
	return true
}

// FindAllPaths returns every simple path, as a list of edges, leading from v
// to a vertex for which complete holds. Edges for which cancel holds are
// never crossed. Shorter paths come first.
func (g *Graph[V, E]) FindAllPaths(v int, complete func(v int) bool, cancel func(e int) bool) [][]int {
	g.checkVertex(v)

	paths := make([][]int, 0)
	if complete != nil && complete(v) {
		return paths
	}

	encountered := make([]bool, len(g.vertices))
	g.findAllPaths(v, complete, cancel, g.adjacencyList(), make([]int, 0), encountered, &paths)

	sort.SliceStable(paths, func(i, j int) bool {
		return len(paths[i]) < len(paths[j])
	})
	return paths
}

func (g *Graph[V, E]) findAllPaths(v int, complete func(int) bool, cancel func(int) bool,
	adjacency [][]int, path []int, encountered []bool, paths *[][]int) {

	encountered[v] = true
	for _, e := range adjacency[v] {
		if cancel != nil && cancel(e) {
			continue
		}
		ed := g.edges[e]

		var next int
		switch {
		case !encountered[ed.v1]:
			next = ed.v1
		case !encountered[ed.v2]:
			next = ed.v2
		default:
			continue
		}

		branch := make([]int, len(path), len(path)+1)
		copy(branch, path)
		branch = append(branch, e)

		if complete != nil && complete(next) {
			*paths = append(*paths, branch)
			continue
		}

		visited := make([]bool, len(encountered))
		copy(visited, encountered)
		g.findAllPaths(next, complete, cancel, adjacency, branch, visited, paths)
	}
}
