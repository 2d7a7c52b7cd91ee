package variant

import (
	"context"
	"fmt"
)

// Array stores one value of T per variant slot. Values are read and written
// through the working variant of the calling context. Access is not
// synchronized.
type Array[T any] struct {
	indexer   Indexer
	values    []T
	copyFn    func(T) T
	releaseFn func(T)
}

// NewArray returns an array of size slots, each holding a copy of value.
// copyFn is used whenever a slot is copied into another one; nil means plain
// assignment.
func NewArray[T any](indexer Indexer, size int, value T, copyFn func(T) T) *Array[T] {
	a := &Array[T]{indexer: indexer, copyFn: copyFn, values: make([]T, size)}
	for i := range a.values {
		a.values[i] = a.copy(value)
	}
	return a
}

// WithRelease sets a function called on every value dropped by Delete,
// Reduce or Allocate. It may be given the zero value of T.
func (a *Array[T]) WithRelease(fn func(T)) *Array[T] {
	a.releaseFn = fn
	return a
}

func (a *Array[T]) release(v T) {
	if a.releaseFn != nil {
		a.releaseFn(v)
	}
}

func (a *Array[T]) copy(v T) T {
	if a.copyFn == nil {
		return v
	}
	return a.copyFn(v)
}

func (a *Array[T]) index(ctx context.Context) int {
	i, err := a.indexer.VariantIndex(ctx)
	if err != nil {
		panic(err)
	}
	if i < 0 || i >= len(a.values) {
		panic(fmt.Errorf("variant: index %d out of range of a %d slot array", i, len(a.values)))
	}
	return i
}

// Get returns the value of the working variant. It panics when the caller
// has no working variant.
func (a *Array[T]) Get(ctx context.Context) T {
	return a.values[a.index(ctx)]
}

// Set replaces the value of the working variant and returns the old one.
func (a *Array[T]) Set(ctx context.Context, v T) T {
	i := a.index(ctx)
	old := a.values[i]
	a.values[i] = v
	return old
}

// Index returns the working slot of the caller. It panics like Get.
func (a *Array[T]) Index(ctx context.Context) int {
	return a.index(ctx)
}

// At returns the value of slot i.
func (a *Array[T]) At(i int) T {
	return a.values[i]
}

// SetAt replaces the value of slot i.
func (a *Array[T]) SetAt(i int, v T) {
	a.values[i] = v
}

// Len is the number of slots.
func (a *Array[T]) Len() int {
	return len(a.values)
}

// Extend appends number copies of sourceIndex.
func (a *Array[T]) Extend(number, sourceIndex int) {
	for i := 0; i < number; i++ {
		a.values = append(a.values, a.copy(a.values[sourceIndex]))
	}
}

// Allocate overwrites indexes with copies of sourceIndex. The overwritten
// values are released.
func (a *Array[T]) Allocate(indexes []int, sourceIndex int) {
	for _, i := range indexes {
		if i == sourceIndex {
			continue
		}
		a.release(a.values[i])
		a.values[i] = a.copy(a.values[sourceIndex])
	}
}

// Delete resets slot index to the zero value of T.
func (a *Array[T]) Delete(index int) {
	var zero T
	a.release(a.values[index])
	a.values[index] = zero
}

// Reduce drops the number trailing slots.
func (a *Array[T]) Reduce(number int) {
	var zero T
	for i := len(a.values) - number; i < len(a.values); i++ {
		a.release(a.values[i])
		a.values[i] = zero
	}
	a.values = a.values[:len(a.values)-number]
}

// All returns every slot value, including unused ones.
func (a *Array[T]) All() []T {
	out := make([]T, len(a.values))
	copy(out, a.values)
	return out
}
