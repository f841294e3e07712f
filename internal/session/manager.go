// Package session tracks live composer sessions, one per open order screen.
package session

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/meja-pos/composer-gateway/internal/composer"
)

type entry struct {
	composer *composer.Composer
	lastSeen time.Time
}

// Manager owns the set of live composers, keyed by session ID. Sessions are
// created by Open, discarded by Close, and swept by Run once idle past the
// TTL (screens abandoned without an explicit close).
type Manager struct {
	querier  composer.OrderQuerier
	mutator  composer.OrderMutator
	resolver composer.ItemResolver
	ttl      time.Duration

	mu       sync.RWMutex
	sessions map[uuid.UUID]*entry
}

// NewManager creates a Manager building composers on the given collaborators.
func NewManager(querier composer.OrderQuerier, mutator composer.OrderMutator, resolver composer.ItemResolver, ttl time.Duration) *Manager {
	return &Manager{
		querier:  querier,
		mutator:  mutator,
		resolver: resolver,
		ttl:      ttl,
		sessions: make(map[uuid.UUID]*entry),
	}
}

// Open creates a composer for the given order identifier (empty = new order)
// and runs its initial load. A failed load does not leave a session behind;
// the caller retries by opening again.
func (m *Manager) Open(ctx context.Context, orderID string) (uuid.UUID, *composer.Composer, error) {
	c := composer.New(orderID, m.querier, m.mutator, m.resolver)
	if err := c.Load(ctx); err != nil {
		return uuid.Nil, nil, err
	}

	id := uuid.New()
	m.mu.Lock()
	m.sessions[id] = &entry{composer: c, lastSeen: time.Now()}
	m.mu.Unlock()
	return id, c, nil
}

// Get returns the composer for a live session and marks it seen.
func (m *Manager) Get(id uuid.UUID) (*composer.Composer, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	e.lastSeen = time.Now()
	return e.composer, true
}

// Close discards a session. Pending lines are lost; there is no network
// effect and no draft persistence.
func (m *Manager) Close(id uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return false
	}
	delete(m.sessions, id)
	return true
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Run sweeps idle sessions until ctx is cancelled.
// This should be called as a goroutine: go manager.Run(ctx)
func (m *Manager) Run(ctx context.Context) {
	interval := m.ttl / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			m.sweep(now)
		}
	}
}

func (m *Manager) sweep(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, e := range m.sessions {
		if now.Sub(e.lastSeen) > m.ttl {
			delete(m.sessions, id)
			log.Printf("session %s expired after %s idle", id, m.ttl)
		}
	}
}
