package variant

// Slots is the lifecycle side of an Array.
type Slots interface {
	Extend(number, sourceIndex int)
	Allocate(indexes []int, sourceIndex int)
	Delete(index int)
	Reduce(number int)
}

// Group registers several arrays of one object as a single participant.
type Group struct {
	arrays []Slots
}

// NewGroup returns a group driving arrays.
func NewGroup(arrays ...Slots) *Group {
	return &Group{arrays: arrays}
}

// ExtendVariantArraySize implements MultiVariantObject.
func (g *Group) ExtendVariantArraySize(initSize, number, sourceIndex int) {
	for _, a := range g.arrays {
		a.Extend(number, sourceIndex)
	}
}

// ReduceVariantArraySize implements MultiVariantObject.
func (g *Group) ReduceVariantArraySize(number int) {
	for _, a := range g.arrays {
		a.Reduce(number)
	}
}

// DeleteVariantArrayElement implements MultiVariantObject.
func (g *Group) DeleteVariantArrayElement(index int) {
	for _, a := range g.arrays {
		a.Delete(index)
	}
}

// AllocateVariantArrayElement implements MultiVariantObject.
func (g *Group) AllocateVariantArrayElement(indexes []int, sourceIndex int) {
	for _, a := range g.arrays {
		a.Allocate(indexes, sourceIndex)
	}
}
