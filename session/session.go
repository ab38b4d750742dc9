// Package session holds the per-instantiation state host functions operate on.
//
// A Session is created when a guest module is instantiated and discarded
// when it closes. Nothing in it outlives the instantiation.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/reglet-dev/logabi/endpoint"
)

// ErrNotFound is returned when no session is bound to a call.
var ErrNotFound = errors.New("no session for guest")

// Session is the host-side state of one guest instantiation.
type Session struct {
	Endpoints *endpoint.Table
	ID        string
}

// New returns a session with an empty endpoint table forwarding to sink.
func New(sink endpoint.Sink) *Session {
	return &Session{
		ID:        uuid.NewString(),
		Endpoints: endpoint.NewTable(sink),
	}
}

type contextKey struct{}

// WithSession returns a copy of ctx carrying s.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext returns the session carried by ctx, if any.
func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(contextKey{}).(*Session)
	return s, ok && s != nil
}

// Store maps guest module names to their sessions.
type Store struct {
	sessions sync.Map // map[string]*Session
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

// Put binds s to the guest module called name, replacing any previous binding.
func (st *Store) Put(name string, s *Session) {
	st.sessions.Store(name, s)
}

// PutIfAbsent binds s to name unless name is already bound. It reports
// whether s was stored.
func (st *Store) PutIfAbsent(name string, s *Session) bool {
	_, loaded := st.sessions.LoadOrStore(name, s)
	return !loaded
}

// Get returns the session bound to name.
func (st *Store) Get(name string) (*Session, bool) {
	v, ok := st.sessions.Load(name)
	if !ok {
		return nil, false
	}
	return v.(*Session), true
}

// Delete drops the binding for name.
func (st *Store) Delete(name string) {
	st.sessions.Delete(name)
}

// Len returns the number of live sessions.
func (st *Store) Len() int {
	n := 0
	st.sessions.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Resolve returns the session for a call made by the guest module called
// name. A session carried by ctx takes precedence over the store.
func (st *Store) Resolve(ctx context.Context, name string) (*Session, error) {
	if s, ok := FromContext(ctx); ok {
		return s, nil
	}
	if st != nil {
		if s, ok := st.Get(name); ok {
			return s, nil
		}
	}
	return nil, ErrNotFound
}
