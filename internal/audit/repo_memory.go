package audit

import (
	"context"
	"slices"
	"sync"
)

// MemoryRepo keeps events in append order. Used by tests and local runs without Postgres.
type MemoryRepo struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) Append(_ context.Context, e Event) error {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
	return nil
}

// Events returns a copy of everything appended so far.
func (r *MemoryRepo) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.events)
}

// EventsFor returns the events of one tenant and type, oldest first. An empty type matches all.
func (r *MemoryRepo) EventsFor(tenantID string, typ EventType) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.TenantID == tenantID && (typ == "" || e.Type == typ) {
			out = append(out, e)
		}
	}
	return out
}
