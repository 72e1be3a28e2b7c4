package cache

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/raushankrgupta/fitchy/models"
)

const (
	DefaultTTL      = time.Hour
	DefaultCapacity = 500
	evictBatch      = 50
)

// Store caches shopping results by key.
type Store interface {
	Get(ctx context.Context, key string) ([]models.Candidate, bool)
	Set(ctx context.Context, key string, cands []models.Candidate)
}

// Key builds the cache key for a shopping query in a country.
func Key(country, query string) string {
	return "shop:" + strings.ToLower(country) + ":" + query
}

type entry struct {
	cands   []models.Candidate
	created time.Time
}

// Memory is a process-local TTL cache with a size cap.
type Memory struct {
	mu       sync.Mutex
	items    map[string]entry
	ttl      time.Duration
	capacity int
	now      func() time.Time
}

func NewMemory(ttl time.Duration, capacity int) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Memory{items: make(map[string]entry), ttl: ttl, capacity: capacity, now: time.Now}
}

func (m *Memory) Get(_ context.Context, key string) ([]models.Candidate, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.items[key]
	if !ok {
		return nil, false
	}
	if m.now().Sub(e.created) >= m.ttl {
		delete(m.items, key)
		return nil, false
	}
	return models.CloneCandidates(e.cands), true
}

func (m *Memory) Set(_ context.Context, key string, cands []models.Candidate) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.items[key]; !exists && len(m.items) >= m.capacity {
		m.evict()
	}
	m.items[key] = entry{cands: models.CloneCandidates(cands), created: m.now()}
}

func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// evict drops expired entries and, if still full, the oldest batch. Caller holds mu.
func (m *Memory) evict() {
	now := m.now()
	for k, e := range m.items {
		if now.Sub(e.created) >= m.ttl {
			delete(m.items, k)
		}
	}
	if len(m.items) < m.capacity {
		return
	}

	keys := make([]string, 0, len(m.items))
	for k := range m.items {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return m.items[keys[i]].created.Before(m.items[keys[j]].created)
	})
	n := evictBatch
	if n > len(keys) {
		n = len(keys)
	}
	for _, k := range keys[:n] {
		delete(m.items, k)
	}
}

// Tiered reads through its stores in order and back-fills faster tiers on a hit.
type Tiered struct {
	tiers []Store
}

func NewTiered(tiers ...Store) *Tiered {
	return &Tiered{tiers: tiers}
}

func (t *Tiered) Get(ctx context.Context, key string) ([]models.Candidate, bool) {
	for i, s := range t.tiers {
		cands, ok := s.Get(ctx, key)
		if !ok {
			continue
		}
		for _, faster := range t.tiers[:i] {
			faster.Set(ctx, key, cands)
		}
		return cands, true
	}
	return nil, false
}

func (t *Tiered) Set(ctx context.Context, key string, cands []models.Candidate) {
	for _, s := range t.tiers {
		s.Set(ctx, key, cands)
	}
}
