/*
manager.go Registry of variant slots. Every scenario-dependent attribute of the
network lives in a per-object array indexed by slot; the Manager keeps the
arrays of all registered objects the same length and drives their lifecycle.
*/

package variant

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	logging "github.com/op/go-logging"
)

// InitialVariantID names the slot that always exists.
const InitialVariantID = "InitialVariant"

// InitialVariantIndex is the slot of InitialVariantID.
const InitialVariantIndex = 0

var logger = logging.MustGetLogger("variant")

var (
	ErrVariantNotFound      = errors.New("variant: not found")
	ErrVariantExists        = errors.New("variant: already exists")
	ErrEmptyTargetList      = errors.New("variant: empty target variant id list")
	ErrRemoveInitialVariant = errors.New("variant: removing initial variant is forbidden")
	ErrVariantIndexNotSet   = errors.New("variant: variant index not set for this caller")
	ErrNoCaller             = errors.New("variant: no caller identity in context")
)

// MultiVariantObject is implemented by every object holding per-variant state.
// Callbacks run under the registry lock and must not call back into the
// Manager.
type MultiVariantObject interface {
	// ExtendVariantArraySize appends number slots copied from sourceIndex.
	ExtendVariantArraySize(initSize, number, sourceIndex int)
	// ReduceVariantArraySize drops the number trailing slots.
	ReduceVariantArraySize(number int)
	// DeleteVariantArrayElement releases the resources of one slot.
	DeleteVariantArrayElement(index int)
	// AllocateVariantArrayElement overwrites indexes with copies of sourceIndex.
	AllocateVariantArrayElement(indexes []int, sourceIndex int)
}

// Observer is told about variant creation and removal. A target that
// already existed is reported through VariantOverwritten instead of
// VariantCreated.
type Observer interface {
	VariantCreated(sourceID, targetID string)
	VariantOverwritten(sourceID, targetID string)
	VariantRemoved(id string)
}

// Indexer resolves the working variant index of a caller.
type Indexer interface {
	VariantIndex(ctx context.Context) (int, error)
}

// Manager owns the variant slots.
type Manager struct {
	mux       sync.Mutex
	pid       uuid.UUID
	ids       map[string]int
	unused    []int
	arraySize int
	objects   []MultiVariantObject
	observers []Observer

	ctxMux  sync.RWMutex
	working workingContext
}

// NewManager returns a Manager holding only the initial variant, selected as
// the working variant in single-caller mode.
func NewManager() *Manager {
	return &Manager{
		pid:       uuid.New(),
		ids:       map[string]int{InitialVariantID: InitialVariantIndex},
		unused:    make([]int, 0),
		arraySize: 1,
		objects:   make([]MultiVariantObject, 0),
		working:   newSharedContext(InitialVariantIndex),
	}
}

// PID is the manager identity.
func (m *Manager) PID() uuid.UUID {
	return m.pid
}

// Register adds obj to the lifecycle callbacks. Its arrays must already be
// ArraySize long.
func (m *Manager) Register(obj MultiVariantObject) {
	m.mux.Lock()
	defer m.mux.Unlock()
	m.objects = append(m.objects, obj)
}

// Unregister removes obj from the lifecycle callbacks.
func (m *Manager) Unregister(obj MultiVariantObject) {
	m.mux.Lock()
	defer m.mux.Unlock()
	for i, o := range m.objects {
		if o == obj {
			m.objects = append(m.objects[:i], m.objects[i+1:]...)
			return
		}
	}
}

// AddObserver subscribes o to variant lifecycle events.
func (m *Manager) AddObserver(o Observer) {
	m.mux.Lock()
	defer m.mux.Unlock()
	m.observers = append(m.observers, o)
}

// ArraySize is the length of every per-variant array.
func (m *Manager) ArraySize() int {
	m.mux.Lock()
	defer m.mux.Unlock()
	return m.arraySize
}

// VariantIDs returns the variant ids ordered by slot.
func (m *Manager) VariantIDs() []string {
	m.mux.Lock()
	defer m.mux.Unlock()
	ids := make([]string, 0, len(m.ids))
	for id := range m.ids {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return m.ids[ids[i]] < m.ids[ids[j]] })
	return ids
}

// VariantIndices returns the live slots in ascending order.
func (m *Manager) VariantIndices() []int {
	m.mux.Lock()
	defer m.mux.Unlock()
	indices := make([]int, 0, len(m.ids))
	for _, i := range m.ids {
		indices = append(indices, i)
	}
	sort.Ints(indices)
	return indices
}

// Exists reports whether id names a variant.
func (m *Manager) Exists(id string) bool {
	m.mux.Lock()
	defer m.mux.Unlock()
	_, ok := m.ids[id]
	return ok
}

func (m *Manager) indexOf(id string) (int, error) {
	i, ok := m.ids[id]
	if !ok {
		return -1, fmt.Errorf("%w: variant '%s'", ErrVariantNotFound, id)
	}
	return i, nil
}

func (m *Manager) idOf(index int) string {
	for id, i := range m.ids {
		if i == index {
			return id
		}
	}
	return ""
}

// VariantIndex returns the working slot of the caller carried by ctx.
func (m *Manager) VariantIndex(ctx context.Context) (int, error) {
	m.ctxMux.RLock()
	defer m.ctxMux.RUnlock()
	return m.working.index(ctx)
}

// WorkingVariantID returns the id of the caller's working variant.
func (m *Manager) WorkingVariantID(ctx context.Context) (string, error) {
	i, err := m.VariantIndex(ctx)
	if err != nil {
		return "", err
	}
	m.mux.Lock()
	defer m.mux.Unlock()
	return m.idOf(i), nil
}

// SetWorkingVariant selects id as the caller's working variant.
func (m *Manager) SetWorkingVariant(ctx context.Context, id string) error {
	m.mux.Lock()
	i, err := m.indexOf(id)
	m.mux.Unlock()
	if err != nil {
		return err
	}

	m.ctxMux.RLock()
	defer m.ctxMux.RUnlock()
	if _, multi := m.working.(*callerContext); multi {
		if _, ok := CallerFrom(ctx); !ok {
			return ErrNoCaller
		}
	}
	m.working.setIndex(ctx, i)
	return nil
}

// AllowMultiCallerAccess switches between one working variant shared by all
// callers and one working variant per caller identity. The working variant
// of the caller carried by ctx survives the switch.
func (m *Manager) AllowMultiCallerAccess(ctx context.Context, allow bool) {
	m.ctxMux.Lock()
	defer m.ctxMux.Unlock()

	_, multi := m.working.(*callerContext)
	if allow == multi {
		return
	}

	var next workingContext
	if allow {
		next = newCallerContext()
	} else {
		next = newSharedContext(InitialVariantIndex)
	}
	if i, err := m.working.index(ctx); err == nil {
		if _, ok := CallerFrom(ctx); ok || !allow {
			next.setIndex(ctx, i)
		}
	}
	m.working = next
}

// IsMultiCallerAccessAllowed reports the current mode.
func (m *Manager) IsMultiCallerAccessAllowed() bool {
	m.ctxMux.RLock()
	defer m.ctxMux.RUnlock()
	_, multi := m.working.(*callerContext)
	return multi
}

// ForEachVariant runs fn once with each variant selected as the caller's
// working variant, then restores the previous selection.
func (m *Manager) ForEachVariant(ctx context.Context, fn func(ctx context.Context) error) error {
	m.ctxMux.RLock()
	previous, prevErr := m.working.index(ctx)
	m.ctxMux.RUnlock()

	defer func() {
		if prevErr == nil {
			m.ctxMux.RLock()
			m.working.setIndex(ctx, previous)
			m.ctxMux.RUnlock()
		}
	}()

	for _, id := range m.VariantIDs() {
		if err := m.SetWorkingVariant(ctx, id); err != nil {
			return err
		}
		if err := fn(ctx); err != nil {
			return err
		}
	}
	return nil
}

// CloneVariantTo copies sourceID into a single new variant targetID.
func (m *Manager) CloneVariantTo(sourceID, targetID string) error {
	return m.CloneVariant(sourceID, []string{targetID}, false)
}

// CloneVariant copies sourceID into every target. Targets are validated
// before any slot is allocated.
func (m *Manager) CloneVariant(sourceID string, targetIDs []string, mayOverwrite bool) error {
	if len(targetIDs) == 0 {
		return ErrEmptyTargetList
	}

	m.mux.Lock()
	sourceIndex, err := m.indexOf(sourceID)
	if err != nil {
		m.mux.Unlock()
		return err
	}

	seen := make(map[string]bool, len(targetIDs))
	for _, id := range targetIDs {
		_, exists := m.ids[id]
		if seen[id] || (exists && !mayOverwrite) {
			m.mux.Unlock()
			return fmt.Errorf("%w: target variant '%s'", ErrVariantExists, id)
		}
		seen[id] = true
	}

	logger.Infof("Creating variants [%s]", strings.Join(targetIDs, ", "))

	recycled := make([]int, 0)
	overwritten := make([]int, 0)
	existed := make(map[string]bool)
	initSize := m.arraySize
	extendCount := 0
	for _, id := range targetIDs {
		if i, exists := m.ids[id]; exists {
			overwritten = append(overwritten, i)
			existed[id] = true
			continue
		}
		if len(m.unused) == 0 {
			m.ids[id] = m.arraySize
			m.arraySize++
			extendCount++
		} else {
			i := m.unused[0]
			m.unused = m.unused[1:]
			m.ids[id] = i
			recycled = append(recycled, i)
		}
	}

	if len(recycled) > 0 {
		logger.Debugf("Recycling variant array indexes %v", recycled)
		for _, obj := range m.objects {
			obj.AllocateVariantArrayElement(recycled, sourceIndex)
		}
	}
	if extendCount > 0 {
		logger.Debugf("Extending variant array size to %d (+%d)", m.arraySize, extendCount)
		for _, obj := range m.objects {
			obj.ExtendVariantArraySize(initSize, extendCount, sourceIndex)
		}
	}
	if len(overwritten) > 0 {
		logger.Debugf("Overwriting variant array indexes %v", overwritten)
		for _, obj := range m.objects {
			obj.AllocateVariantArrayElement(overwritten, sourceIndex)
		}
	}
	observers := append([]Observer(nil), m.observers...)
	m.mux.Unlock()

	for _, o := range observers {
		for _, id := range targetIDs {
			if existed[id] {
				o.VariantOverwritten(sourceID, id)
			} else {
				o.VariantCreated(sourceID, id)
			}
		}
	}
	return nil
}

// RemoveVariant releases the slot of id. A trailing run of free slots is
// reclaimed from every array.
func (m *Manager) RemoveVariant(id string) error {
	if id == InitialVariantID {
		return ErrRemoveInitialVariant
	}

	m.mux.Lock()
	index, err := m.indexOf(id)
	if err != nil {
		m.mux.Unlock()
		return err
	}
	logger.Infof("Removing variant '%s'", id)
	delete(m.ids, id)

	logger.Debugf("Deleting variant array element at index %d", index)
	for _, obj := range m.objects {
		obj.DeleteVariantArrayElement(index)
	}

	if index == m.arraySize-1 {
		number := 1
		for j := index - 1; j >= 0 && containsIndex(m.unused, j); j-- {
			m.unused = removeUnused(m.unused, j)
			number++
		}
		m.arraySize -= number
		logger.Debugf("Reducing variant array size to %d", m.arraySize)
		for _, obj := range m.objects {
			obj.ReduceVariantArraySize(number)
		}
	} else {
		m.unused = insertUnused(m.unused, index)
	}
	observers := append([]Observer(nil), m.observers...)
	m.mux.Unlock()

	m.ctxMux.RLock()
	m.working.resetIfIndexIs(index)
	m.ctxMux.RUnlock()

	for _, o := range observers {
		o.VariantRemoved(id)
	}
	return nil
}

func containsIndex(set []int, i int) bool {
	pos := sort.SearchInts(set, i)
	return pos < len(set) && set[pos] == i
}

func insertUnused(set []int, i int) []int {
	pos := sort.SearchInts(set, i)
	set = append(set, 0)
	copy(set[pos+1:], set[pos:])
	set[pos] = i
	return set
}

func removeUnused(set []int, i int) []int {
	pos := sort.SearchInts(set, i)
	if pos < len(set) && set[pos] == i {
		return append(set[:pos], set[pos+1:]...)
	}
	return set
}
