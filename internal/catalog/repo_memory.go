package catalog

import (
	"context"
	"sync"
	"time"

	"marketplace-pricing/internal/fees"
)

// MemoryRepo is a simple in-memory repository useful for tests and early development.
// It enforces tenant isolation on every read.
type MemoryRepo struct {
	mu sync.Mutex

	products     map[string]Product
	marketplaces map[string]Marketplace
	structures   map[string]fees.Structure
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		products:     map[string]Product{},
		marketplaces: map[string]Marketplace{},
		structures:   map[string]fees.Structure{},
	}
}

func key(tenantID, id string) string { return tenantID + "|" + id }

func (r *MemoryRepo) GetProduct(ctx context.Context, tenantID, productID string) (Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[key(tenantID, productID)]
	if !ok {
		return Product{}, ErrNotFound
	}
	return p, nil
}

func (r *MemoryRepo) UpsertProduct(ctx context.Context, p Product) (Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	k := key(p.TenantID, p.ID)
	if prev, ok := r.products[k]; ok {
		p.CreatedAt = prev.CreatedAt
	} else {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	r.products[k] = p
	return p, nil
}

func (r *MemoryRepo) GetMarketplace(ctx context.Context, tenantID, marketplaceID string) (Marketplace, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.marketplaces[key(tenantID, marketplaceID)]
	if !ok {
		return Marketplace{}, ErrNotFound
	}
	return m, nil
}

func (r *MemoryRepo) FeeStructure(ctx context.Context, tenantID, marketplaceID string) (fees.Structure, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key(tenantID, marketplaceID)
	if _, ok := r.marketplaces[k]; !ok {
		return fees.Structure{}, ErrNotFound
	}
	return r.structures[k], nil
}

func (r *MemoryRepo) ReplaceMarketplace(ctx context.Context, m Marketplace, s fees.Structure) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	k := key(m.TenantID, m.ID)
	if prev, ok := r.marketplaces[k]; ok {
		m.CreatedAt = prev.CreatedAt
	} else {
		m.CreatedAt = now
	}
	m.UpdatedAt = now
	r.marketplaces[k] = m

	s.TenantID, s.MarketplaceID = m.TenantID, m.ID
	s.Commissions = append([]fees.Commission(nil), s.Commissions...)
	s.FixedFees = append([]fees.FixedFeeRule(nil), s.FixedFees...)
	if s.Shipping != nil {
		sh := *s.Shipping
		s.Shipping = &sh
	}
	r.structures[k] = s
	return nil
}
