package menu

import (
	"context"
	"fmt"
	"sync"
)

// Fetcher retrieves the full catalog from the upstream API.
// Satisfied by *upstream.Client.
type Fetcher interface {
	FetchMenu(ctx context.Context) ([]MenuItem, []Category, error)
}

// Catalog is the read-only view of the menu injected into the composer and
// the menu browse handlers.
type Catalog interface {
	ListMenuItems() []MenuItem
	ListCategories() []Category
	FindItem(id string) (*MenuItem, bool)
	FindItemByName(name string) (*MenuItem, bool)
}

// Store holds an in-memory snapshot of the catalog, replaced wholesale on
// Refresh. Reads are served from the snapshot; there is no per-item caching.
type Store struct {
	fetcher Fetcher

	mu         sync.RWMutex
	items      []MenuItem
	categories []Category
	byID       map[string]int
	byName     map[string]int
}

// NewStore creates an empty Store. Call Refresh before serving reads.
func NewStore(fetcher Fetcher) *Store {
	return &Store{
		fetcher: fetcher,
		byID:    make(map[string]int),
		byName:  make(map[string]int),
	}
}

// Refresh replaces the snapshot with a fresh fetch. On error the previous
// snapshot is kept.
func (s *Store) Refresh(ctx context.Context) error {
	items, categories, err := s.fetcher.FetchMenu(ctx)
	if err != nil {
		return fmt.Errorf("refresh menu: %w", err)
	}

	byID := make(map[string]int, len(items))
	byName := make(map[string]int, len(items))
	for i, item := range items {
		byID[item.ID.String()] = i
		byName[item.Name] = i
	}

	s.mu.Lock()
	s.items = items
	s.categories = categories
	s.byID = byID
	s.byName = byName
	s.mu.Unlock()
	return nil
}

func (s *Store) ListMenuItems() []MenuItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]MenuItem, len(s.items))
	copy(out, s.items)
	return out
}

func (s *Store) ListCategories() []Category {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Category, len(s.categories))
	copy(out, s.categories)
	return out
}

func (s *Store) FindItem(id string) (*MenuItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	item := s.items[i]
	return &item, true
}

func (s *Store) FindItemByName(name string) (*MenuItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.byName[name]
	if !ok {
		return nil, false
	}
	item := s.items[i]
	return &item, true
}
