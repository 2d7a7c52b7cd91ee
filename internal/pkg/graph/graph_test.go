package graph

import (
	"errors"
	"testing"

	"gotest.tools/v3/assert"
	"gotest.tools/v3/assert/cmp"
)

type testVertex struct {
	name string
}

type testEdge struct {
	name string
	open bool
}

func newTestGraph() *Graph[testVertex, testEdge] {
	g := New[testVertex, testEdge]()
	for i := 0; i < 3; i++ {
		g.AddVertex()
	}
	g.AddEdge(0, 1, &testEdge{name: "closed"})
	g.AddEdge(1, 2, &testEdge{name: "open", open: true})
	return g
}

func recoverError(f func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
				return
			}
			panic(r)
		}
	}()
	f()
	return nil
}

func TestAddVertexReusesSmallestIndex(t *testing.T) {
	g := New[testVertex, testEdge]()
	for i := 0; i < 4; i++ {
		assert.Equal(t, g.AddVertex(), i)
	}

	_, err := g.RemoveVertex(2)
	assert.NilError(t, err)
	_, err = g.RemoveVertex(1)
	assert.NilError(t, err)
	assert.Equal(t, g.VertexCount(), 2)
	assert.Equal(t, g.MaxVertex(), 4)
	assert.DeepEqual(t, g.Vertices(), []int{0, 3})

	assert.Equal(t, g.AddVertex(), 1)
	assert.Equal(t, g.AddVertex(), 2)
	assert.Equal(t, g.AddVertex(), 4)
}

func TestRemoveLastVertexTrimsTombstones(t *testing.T) {
	g := New[testVertex, testEdge]()
	for i := 0; i < 4; i++ {
		g.AddVertex()
	}
	_, err := g.RemoveVertex(1)
	assert.NilError(t, err)
	_, err = g.RemoveVertex(2)
	assert.NilError(t, err)
	_, err = g.RemoveVertex(3)
	assert.NilError(t, err)

	assert.Equal(t, g.MaxVertex(), 1)
	assert.Equal(t, g.VertexCount(), 1)
	assert.Equal(t, g.AddVertex(), 1)
}

func TestAddVertexIfNotPresent(t *testing.T) {
	g := New[testVertex, testEdge]()
	g.AddVertexIfNotPresent(3)

	assert.Equal(t, g.MaxVertex(), 4)
	assert.Equal(t, g.VertexCount(), 1)
	assert.Assert(t, g.VertexExists(3))
	assert.Assert(t, !g.VertexExists(0))

	g.AddVertexIfNotPresent(1)
	assert.DeepEqual(t, g.Vertices(), []int{1, 3})
	assert.Equal(t, g.AddVertex(), 0)
	assert.Equal(t, g.AddVertex(), 2)
}

func TestRemoveVertexWithEdge(t *testing.T) {
	g := newTestGraph()
	_, err := g.RemoveVertex(1)
	assert.Assert(t, errors.Is(err, ErrVertexConnected))
	assert.ErrorContains(t, err, "vertex 1")
	assert.Equal(t, g.VertexCount(), 3)
}

func TestEdgeIndexReuse(t *testing.T) {
	g := newTestGraph()
	g.AddEdge(0, 2, nil)

	obj := g.RemoveEdge(0)
	assert.Equal(t, obj.name, "closed")
	assert.Equal(t, g.EdgeCount(), 2)
	assert.DeepEqual(t, g.Edges(), []int{1, 2})

	e := g.AddEdge(2, 0, &testEdge{name: "reused"})
	assert.Equal(t, e, 0)
	assert.Equal(t, g.Vertex1(e), 2)
	assert.Equal(t, g.Vertex2(e), 0)
	assert.Equal(t, g.EdgeObject(e).name, "reused")
	assert.Assert(t, g.EdgeObject(2) == nil)
}

func TestRemovedIndexPanics(t *testing.T) {
	g := newTestGraph()
	g.RemoveEdge(0)

	err := recoverError(func() { g.EdgeObject(0) })
	assert.Assert(t, errors.Is(err, ErrEdgeNotFound))

	err = recoverError(func() { g.VertexObject(7) })
	assert.Assert(t, errors.Is(err, ErrVertexNotFound))

	assert.Assert(t, cmp.Panics(func() { g.AddEdge(0, 9, nil) }))
}

func TestVertexObjects(t *testing.T) {
	g := newTestGraph()
	assert.Assert(t, g.VertexObject(1) == nil)

	g.SetVertexObject(1, &testVertex{name: "n1"})
	assert.Equal(t, g.VertexObject(1).name, "n1")
	assert.Assert(t, cmp.Len(g.VertexObjects(), 1))
	assert.Assert(t, cmp.Len(g.EdgeObjects(), 2))
}

func TestEdgeObjectsBetween(t *testing.T) {
	g := newTestGraph()
	g.AddEdge(1, 0, &testEdge{name: "parallel"})
	g.AddEdge(0, 1, nil)

	objs := g.EdgeObjectsBetween(0, 1)
	assert.Assert(t, cmp.Len(objs, 3))
	assert.Equal(t, objs[0].name, "closed")
	assert.Equal(t, objs[1].name, "parallel")
	assert.Assert(t, objs[2] == nil)
	assert.Assert(t, cmp.Len(g.EdgeObjectsBetween(0, 2), 0))
}

func TestRemoveIsolatedVertices(t *testing.T) {
	g := newTestGraph()
	iso1 := g.AddVertex()
	iso2 := g.AddVertex()
	g.SetVertexObject(iso1, &testVertex{name: "kept"})

	g.RemoveIsolatedVertices()

	assert.Assert(t, g.VertexExists(iso1))
	assert.Assert(t, !g.VertexExists(iso2))
	assert.Equal(t, g.VertexCount(), 4)
}

func TestRemoveAll(t *testing.T) {
	g := newTestGraph()
	assert.ErrorContains(t, g.RemoveAllVertices(), "still some edges")

	g.RemoveAllEdges()
	assert.Equal(t, g.EdgeCount(), 0)
	assert.NilError(t, g.RemoveAllVertices())
	assert.Equal(t, g.VertexCount(), 0)
	assert.Equal(t, g.AddVertex(), 0)
}
