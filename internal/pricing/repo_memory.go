package pricing

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepo is an in-memory calculation store for tests and early development.
type MemoryRepo struct {
	mu    sync.Mutex
	calcs map[string]Calculation
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{calcs: map[string]Calculation{}}
}

func calcKey(tenantID, productID, marketplaceID string) string {
	return tenantID + "|" + productID + "|" + marketplaceID
}

func (r *MemoryRepo) Upsert(ctx context.Context, c Calculation) (Calculation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := c.UpdatedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}
	k := calcKey(c.TenantID, c.ProductID, c.MarketplaceID)
	if prev, ok := r.calcs[k]; ok {
		c.ID, c.CreatedAt = prev.ID, prev.CreatedAt
	} else {
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	r.calcs[k] = c
	return c, nil
}

func (r *MemoryRepo) Get(ctx context.Context, tenantID, productID, marketplaceID string) (Calculation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.calcs[calcKey(tenantID, productID, marketplaceID)]
	if !ok {
		return Calculation{}, ErrNotFound
	}
	return c, nil
}

func (r *MemoryRepo) List(ctx context.Context, tenantID string, f ListFilter) ([]Calculation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Calculation, 0)
	for _, c := range r.calcs {
		if c.TenantID != tenantID {
			continue
		}
		if f.MarketplaceID != "" && c.MarketplaceID != f.MarketplaceID {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}
