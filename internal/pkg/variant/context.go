package variant

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

type callerKey struct{}

// WithCaller tags ctx with a fresh caller identity. In multi-caller mode each
// identity owns its own working variant.
func WithCaller(ctx context.Context) context.Context {
	return context.WithValue(ctx, callerKey{}, uuid.New())
}

// WithCallerID tags ctx with a known caller identity.
func WithCallerID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, callerKey{}, id)
}

// CallerFrom returns the caller identity carried by ctx.
func CallerFrom(ctx context.Context) (uuid.UUID, bool) {
	if ctx == nil {
		return uuid.Nil, false
	}
	id, ok := ctx.Value(callerKey{}).(uuid.UUID)
	return id, ok
}

// workingContext stores the working variant index.
type workingContext interface {
	index(ctx context.Context) (int, error)
	setIndex(ctx context.Context, i int)
	resetIfIndexIs(i int)
}

// sharedContext holds a single working index for every caller. It is not
// safe for concurrent use.
type sharedContext struct {
	current int
}

func newSharedContext(i int) *sharedContext {
	return &sharedContext{current: i}
}

func (c *sharedContext) index(context.Context) (int, error) {
	if c.current < 0 {
		return -1, ErrVariantIndexNotSet
	}
	return c.current, nil
}

func (c *sharedContext) setIndex(_ context.Context, i int) {
	c.current = i
}

func (c *sharedContext) resetIfIndexIs(i int) {
	if c.current == i {
		c.current = -1
	}
}

// callerContext maps each caller identity to its own working index.
type callerContext struct {
	mux     sync.Mutex
	indexes map[uuid.UUID]int
}

func newCallerContext() *callerContext {
	return &callerContext{indexes: make(map[uuid.UUID]int)}
}

func (c *callerContext) index(ctx context.Context) (int, error) {
	id, ok := CallerFrom(ctx)
	if !ok {
		return -1, ErrVariantIndexNotSet
	}
	c.mux.Lock()
	defer c.mux.Unlock()
	i, ok := c.indexes[id]
	if !ok {
		return -1, ErrVariantIndexNotSet
	}
	return i, nil
}

func (c *callerContext) setIndex(ctx context.Context, i int) {
	id, ok := CallerFrom(ctx)
	if !ok {
		panic(ErrNoCaller)
	}
	c.mux.Lock()
	defer c.mux.Unlock()
	c.indexes[id] = i
}

// resetIfIndexIs drops every caller still working on the removed slot.
func (c *callerContext) resetIfIndexIs(i int) {
	c.mux.Lock()
	defer c.mux.Unlock()
	for id, idx := range c.indexes {
		if idx == i {
			delete(c.indexes, id)
		}
	}
}
