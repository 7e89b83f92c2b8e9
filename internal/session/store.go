// Package session keeps live workflow sessions in memory.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/metalagman/consultant/internal/orchestrator"
	"github.com/rs/zerolog/log"
)

// ErrNotFound is returned for unknown or evicted sessions.
var ErrNotFound = errors.New("session not found")

type entry struct {
	// turn serializes updates; mu guards s for snapshot reads during a turn.
	turn sync.Mutex
	mu   sync.RWMutex
	s    orchestrator.Session
}

func (e *entry) snapshot() orchestrator.Session {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.s.Clone()
}

// Store is a bounded LRU of sessions keyed by id.
type Store struct {
	cache *lru.Cache[string, *entry]
}

// NewStore returns a store holding at most size sessions. The least recently
// used session is evicted when full.
func NewStore(size int) (*Store, error) {
	cache, err := lru.NewWithEvict[string, *entry](size, func(id string, _ *entry) {
		log.Debug().Str("session", id).Msg("session evicted")
	})
	if err != nil {
		return nil, fmt.Errorf("create session cache: %w", err)
	}
	return &Store{cache: cache}, nil
}

// Create starts a new session with a random id.
func (st *Store) Create() orchestrator.Session {
	s := orchestrator.NewSession(uuid.NewString())
	st.cache.Add(s.ID, &entry{s: s})
	return s.Clone()
}

// Get returns a snapshot of the session.
func (st *Store) Get(id string) (orchestrator.Session, error) {
	e, ok := st.cache.Get(id)
	if !ok {
		return orchestrator.Session{}, ErrNotFound
	}
	return e.snapshot(), nil
}

// Delete removes the session and reports whether it existed.
func (st *Store) Delete(id string) bool {
	return st.cache.Remove(id)
}

// Len returns the number of live sessions.
func (st *Store) Len() int {
	return st.cache.Len()
}

// Update runs fn on the session while holding its turn lock, so turns on one
// session never interleave. The session fn returns is stored even when fn
// fails, since the orchestrator returns the preserved input in that case.
func (st *Store) Update(ctx context.Context, id string, fn func(context.Context, orchestrator.Session) (orchestrator.Session, error)) (orchestrator.Session, error) {
	e, ok := st.cache.Get(id)
	if !ok {
		return orchestrator.Session{}, ErrNotFound
	}

	e.turn.Lock()
	defer e.turn.Unlock()
	if err := ctx.Err(); err != nil {
		return e.snapshot(), err
	}

	next, err := fn(ctx, e.snapshot())
	if next.ID == id {
		e.mu.Lock()
		e.s = next
		e.mu.Unlock()
	}
	return next.Clone(), err
}
