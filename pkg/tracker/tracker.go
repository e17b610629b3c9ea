// Package tracker counts outcomes of enrichment requests per provider.
package tracker

import (
	"sort"
	"sync"
	"sync/atomic"
)

// Tracker records per-provider request outcomes.
type Tracker struct {
	mu        sync.RWMutex
	providers map[string]*counters
}

type counters struct {
	success atomic.Int64
	failure atomic.Int64
	stale   atomic.Int64
}

// ProviderStats is a point-in-time copy of one provider's counters.
type ProviderStats struct {
	Provider string `json:"provider"`
	Success  int64  `json:"success"`
	Failure  int64  `json:"failure"`
	Stale    int64  `json:"stale"` // results that arrived after their ride ended
}

// New creates an empty Tracker.
func New() *Tracker {
	return &Tracker{providers: make(map[string]*counters)}
}

func (t *Tracker) get(provider string) *counters {
	t.mu.RLock()
	c, ok := t.providers[provider]
	t.mu.RUnlock()
	if ok {
		return c
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if c, ok = t.providers[provider]; ok {
		return c
	}
	c = &counters{}
	t.providers[provider] = c
	return c
}

// TrackSuccess counts a request that returned usable data.
func (t *Tracker) TrackSuccess(provider string) {
	t.get(provider).success.Add(1)
}

// TrackFailure counts a request that failed (network, status, decode).
func (t *Tracker) TrackFailure(provider string) {
	t.get(provider).failure.Add(1)
}

// TrackStale counts a successful result discarded because its ride was superseded.
func (t *Tracker) TrackStale(provider string) {
	t.get(provider).stale.Add(1)
}

// Snapshot returns all providers sorted by name.
func (t *Tracker) Snapshot() []ProviderStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]ProviderStats, 0, len(t.providers))
	for name, c := range t.providers {
		out = append(out, ProviderStats{
			Provider: name,
			Success:  c.success.Load(),
			Failure:  c.failure.Load(),
			Stale:    c.stale.Load(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Provider < out[j].Provider })
	return out
}
