/*
level.go The three topology levels a bus can be computed at. Each level fixes
which switches split buses and which components are kept as buses.
*/

package topology

import (
	"fmt"
	"strconv"
)

// Level selects the switch predicate, validity rule and naming rule of a scan.
type Level int

const (
	// MergedBus merges the configured buses of a bus/breaker voltage level.
	MergedBus Level = iota
	// BusView computes the fine buses of a node/breaker voltage level.
	BusView
	// BusBreakerView computes the coarse buses of a node/breaker voltage
	// level, split by retained switches too.
	BusBreakerView
)

func (l Level) String() string {
	switch l {
	case MergedBus:
		return "MergedBus"
	case BusView:
		return "BusView"
	case BusBreakerView:
		return "BusBreakerView"
	default:
		return fmt.Sprintf("Level(%d)", int(l))
	}
}

// IsBoundary reports whether a switch in this state separates components.
func (l Level) IsBoundary(open, retained bool) bool {
	switch l {
	case MergedBus, BusView:
		return open
	case BusBreakerView:
		return open || retained
	default:
		panic(fmt.Sprintf("topology: unknown level %d", int(l)))
	}
}

// IsValid reports whether a component with tally t becomes a bus.
func (l Level) IsValid(t Tally) bool {
	switch l {
	case MergedBus:
		return t.Branches >= 1
	case BusView:
		return (t.BusbarSections >= 1 && t.Feeders >= 1) || (t.Branches >= 1 && t.Feeders >= 2)
	case BusBreakerView:
		return t.Members >= 1
	default:
		panic(fmt.Sprintf("topology: unknown level %d", int(l)))
	}
}

// suffix numbers the n-th valid bus of a scan. Node/breaker buses are named
// after their smallest node so names survive rebuilds of an unchanged graph.
func (l Level) suffix(n int, members []int) string {
	if l == MergedBus {
		return strconv.Itoa(n)
	}
	smallest := members[0]
	for _, m := range members[1:] {
		if m < smallest {
			smallest = m
		}
	}
	return strconv.Itoa(smallest)
}

// Tally counts the leaf elements of a component.
type Tally struct {
	Branches       int
	Feeders        int
	BusbarSections int
	Members        int
}

// AddBranch counts a branch end. A branch is a feeder too.
func (t *Tally) AddBranch() {
	t.Branches++
	t.Feeders++
}

// AddFeeder counts an injection.
func (t *Tally) AddFeeder() {
	t.Feeders++
}

// AddBusbarSection counts a busbar section.
func (t *Tally) AddBusbarSection() {
	t.BusbarSections++
}
