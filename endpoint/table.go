package endpoint

import (
	"math"
	"sync"
)

// Handle is the opaque integer a guest uses to refer to an endpoint.
type Handle int32

// Table is an append-only registry of endpoints indexed by handle. Each
// guest instantiation owns its own Table.
type Table struct {
	sink      Sink
	endpoints []*Endpoint
	mu        sync.RWMutex
}

// NewTable returns an empty table whose endpoints forward to sink.
func NewTable(sink Sink) *Table {
	return &Table{sink: sink}
}

// Register appends a new endpoint called name and returns its handle.
// Names are not deduplicated and handles are never reused.
func (t *Table) Register(name string) Handle {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.endpoints) == math.MaxInt32 {
		// Handles are i32 on the wire; the table cannot grow further.
		panic("endpoint: handle space exhausted")
	}
	t.endpoints = append(t.endpoints, New(name, t.sink))
	return Handle(len(t.endpoints) - 1) //nolint:gosec // G115: bounded by MaxInt32 above
}

// Lookup resolves h. It reports false for negative or unissued handles.
func (t *Table) Lookup(h Handle) (*Endpoint, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if h < 0 || int(h) >= len(t.endpoints) {
		return nil, false
	}
	return t.endpoints[h], true
}

// Len returns the number of registered endpoints.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.endpoints)
}

// Endpoints returns a snapshot of the table in handle order.
func (t *Table) Endpoints() []*Endpoint {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*Endpoint, len(t.endpoints))
	copy(out, t.endpoints)
	return out
}
