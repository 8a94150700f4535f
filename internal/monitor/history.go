// Package monitor records indicator snapshots of a dataset over time and
// flags indicators that moved sharply since the last snapshot.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/KaramelBytes/dashloom-cli/internal/errors"
)

// DefaultCapacity bounds a History created with a non-positive capacity.
const DefaultCapacity = 100

// Snapshot is a timestamped record of a dataset's size, quality score and
// indicator values. A nil indicator value means the indicator failed.
type Snapshot struct {
	ID         string              `json:"id"`
	Timestamp  time.Time           `json:"timestamp"`
	Label      string              `json:"label"`
	Rows       int                 `json:"rows"`
	Columns    int                 `json:"columns"`
	Quality    int                 `json:"quality"`
	Indicators map[string]*float64 `json:"indicators"`
}

func (s Snapshot) clone() Snapshot {
	out := s
	out.Indicators = make(map[string]*float64, len(s.Indicators))
	for k, v := range s.Indicators {
		if v != nil {
			f := *v
			v = &f
		}
		out.Indicators[k] = v
	}
	return out
}

// History is an append-only, bounded, time-ordered list of snapshots. When
// full, the oldest snapshot is dropped.
type History struct {
	mu       sync.RWMutex
	items    []Snapshot
	capacity int
	appended int
}

// NewHistory returns an empty history.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &History{capacity: capacity}
}

// LoadHistory seeds a history with the most recent snapshots held by store.
func LoadHistory(ctx context.Context, store Store, capacity int) (*History, error) {
	h := NewHistory(capacity)
	snaps, err := store.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load history")
	}
	for _, s := range snaps {
		h.Append(s)
	}
	return h, nil
}

// Capacity returns the maximum number of snapshots kept.
func (h *History) Capacity() int { return h.capacity }

// Append adds s as the newest snapshot.
func (h *History) Append(s Snapshot) {
	h.record(s)
}

// record appends s and returns the stored copy. An empty label becomes
// "Snapshot N", N counting every snapshot ever appended, under the same
// lock as the append so concurrent callers never share a number.
func (h *History) record(s Snapshot) Snapshot {
	s = s.clone()
	h.mu.Lock()
	defer h.mu.Unlock()
	h.appended++
	if s.Label == "" {
		s.Label = fmt.Sprintf("Snapshot %d", h.appended)
	}
	h.items = append(h.items, s)
	if over := len(h.items) - h.capacity; over > 0 {
		h.items = append([]Snapshot(nil), h.items[over:]...)
	}
	return s.clone()
}

// List returns a point-in-time copy, oldest first.
func (h *History) List() []Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Snapshot, len(h.items))
	for i, s := range h.items {
		out[i] = s.clone()
	}
	return out
}

// Last returns up to n of the newest snapshots, oldest first.
func (h *History) Last(n int) []Snapshot {
	all := h.List()
	if n >= 0 && len(all) > n {
		all = all[len(all)-n:]
	}
	return all
}

// Latest returns the newest snapshot.
func (h *History) Latest() (Snapshot, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.items) == 0 {
		return Snapshot{}, false
	}
	return h.items[len(h.items)-1].clone(), true
}

// Len returns the number of snapshots held.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.items)
}

// Clear drops every snapshot.
func (h *History) Clear() {
	h.mu.Lock()
	h.items = nil
	h.appended = 0
	h.mu.Unlock()
}
