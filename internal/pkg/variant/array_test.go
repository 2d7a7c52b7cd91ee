package variant

import (
	"context"
	"testing"

	"gotest.tools/v3/assert"
)

type counter struct {
	n int
}

func TestArrayCopyFunction(t *testing.T) {
	m := NewManager()
	seed := &counter{n: 1}
	a := NewArray(m, m.ArraySize(), seed, func(c *counter) *counter { return &counter{n: c.n} })
	m.Register(NewGroup(a))

	assert.Assert(t, a.At(0) != seed)
	assert.NilError(t, m.CloneVariantTo(InitialVariantID, "s1"))

	assert.Equal(t, a.At(1).n, 1)
	assert.Assert(t, a.At(1) != a.At(0))
}

func TestArrayRelease(t *testing.T) {
	m := NewManager()
	released := make([]int, 0)
	a := NewArray(m, m.ArraySize(), 0, nil).WithRelease(func(v int) {
		released = append(released, v)
	})
	m.Register(NewGroup(a))

	ctx := context.Background()
	assert.NilError(t, m.CloneVariant(InitialVariantID, []string{"s1", "s2"}, false))
	assert.NilError(t, m.SetWorkingVariant(ctx, "s1"))
	a.Set(ctx, 11)
	assert.NilError(t, m.SetWorkingVariant(ctx, "s2"))
	old := a.Set(ctx, 22)
	assert.Equal(t, old, 0)

	assert.NilError(t, m.RemoveVariant("s1"))
	assert.DeepEqual(t, released, []int{11})

	assert.NilError(t, m.RemoveVariant("s2"))
	assert.DeepEqual(t, released, []int{11, 22, 0, 0})
	assert.Equal(t, a.Len(), 1)
}

func TestArrayAllocateReleasesOverwritten(t *testing.T) {
	m := NewManager()
	released := make([]int, 0)
	a := NewArray(m, m.ArraySize(), 0, nil).WithRelease(func(v int) {
		released = append(released, v)
	})
	m.Register(NewGroup(a))

	ctx := context.Background()
	assert.NilError(t, m.CloneVariantTo(InitialVariantID, "s1"))
	assert.NilError(t, m.SetWorkingVariant(ctx, "s1"))
	a.Set(ctx, 7)
	assert.NilError(t, m.SetWorkingVariant(ctx, InitialVariantID))
	a.Set(ctx, 3)

	assert.NilError(t, m.CloneVariant(InitialVariantID, []string{"s1"}, true))
	assert.DeepEqual(t, released, []int{7})
	assert.Equal(t, a.At(1), 3)

	assert.NilError(t, m.CloneVariant(InitialVariantID, []string{InitialVariantID}, true))
	assert.DeepEqual(t, released, []int{7})
	assert.Equal(t, a.At(0), 3)
}

func TestGroupKeepsArraysAligned(t *testing.T) {
	m := NewManager()
	open := NewArray(m, m.ArraySize(), false, nil)
	names := NewArray(m, m.ArraySize(), "x", nil)
	m.Register(NewGroup(open, names))

	assert.NilError(t, m.CloneVariant(InitialVariantID, []string{"a", "b", "c"}, false))
	assert.Equal(t, open.Len(), 4)
	assert.Equal(t, names.Len(), 4)

	assert.NilError(t, m.RemoveVariant("c"))
	assert.Equal(t, open.Len(), 3)
	assert.Equal(t, names.Len(), 3)
	assert.Equal(t, names.At(2), "x")
}
