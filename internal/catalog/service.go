package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"marketplace-pricing/internal/fees"
	"marketplace-pricing/pkg/logger"
)

var ErrInvalidArgument = errors.New("catalog: invalid argument")

// CacheInvalidator drops cached fee structures after a change.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, tenantID, marketplaceID string) error
}

// Auditor records fee structure changes.
type Auditor interface {
	LogFeeStructureChanged(ctx context.Context, tenantID, marketplaceID, metadata string) error
}

// Service manages tenant products and marketplace fee structures.
//
// Fee structures are validated here, at configuration time, so pricing never sees
// overlapping fixed-fee ranges written through this service.
type Service struct {
	repo  Repository
	cache CacheInvalidator
	audit Auditor
}

func NewService(repo Repository, cache CacheInvalidator, audit Auditor) *Service {
	return &Service{repo: repo, cache: cache, audit: audit}
}

func (s *Service) GetProduct(ctx context.Context, tenantID, productID string) (Product, error) {
	if tenantID == "" || productID == "" {
		return Product{}, ErrInvalidArgument
	}
	return s.repo.GetProduct(ctx, tenantID, productID)
}

func (s *Service) UpsertProduct(ctx context.Context, p Product) (Product, error) {
	if err := validateProduct(p); err != nil {
		return Product{}, err
	}
	return s.repo.UpsertProduct(ctx, p)
}

func validateProduct(p Product) error {
	if p.TenantID == "" || p.ID == "" {
		return fmt.Errorf("%w: tenant_id and id required", ErrInvalidArgument)
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: name required", ErrInvalidArgument)
	}
	if p.CostUnit.IsNegative() || p.PackagingCost.IsNegative() {
		return fmt.Errorf("%w: costs must be >= 0", ErrInvalidArgument)
	}
	if !fees.ValidPercent(p.TaxRate) {
		return fmt.Errorf("%w: tax_rate must be within 0-100", ErrInvalidArgument)
	}
	if p.CategoryID != nil && *p.CategoryID == "" {
		return fmt.Errorf("%w: category_id must be null or non-empty", ErrInvalidArgument)
	}
	return nil
}

// FeeStructure reads straight from the repository; pricing reads through fees.Cache.
func (s *Service) FeeStructure(ctx context.Context, tenantID, marketplaceID string) (Marketplace, fees.Structure, error) {
	if tenantID == "" || marketplaceID == "" {
		return Marketplace{}, fees.Structure{}, ErrInvalidArgument
	}
	m, err := s.repo.GetMarketplace(ctx, tenantID, marketplaceID)
	if err != nil {
		return Marketplace{}, fees.Structure{}, err
	}
	st, err := s.repo.FeeStructure(ctx, tenantID, marketplaceID)
	if err != nil {
		return Marketplace{}, fees.Structure{}, err
	}
	return m, st, nil
}

// ReplaceFeeStructure validates and stores a marketplace with its complete fee structure.
// Overlapping fixed-fee ranges are rejected with fees.ErrOverlappingRanges.
func (s *Service) ReplaceFeeStructure(ctx context.Context, m Marketplace, st fees.Structure) error {
	if m.TenantID == "" || m.ID == "" {
		return fmt.Errorf("%w: tenant_id and marketplace id required", ErrInvalidArgument)
	}
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("%w: marketplace name required", ErrInvalidArgument)
	}
	st.TenantID, st.MarketplaceID = m.TenantID, m.ID
	for i := range st.Commissions {
		st.Commissions[i].MarketplaceID = m.ID
	}
	for i := range st.FixedFees {
		st.FixedFees[i].MarketplaceID = m.ID
	}
	if st.Shipping != nil {
		st.Shipping.MarketplaceID = m.ID
	}
	if err := st.Validate(); err != nil {
		return err
	}

	if err := s.repo.ReplaceMarketplace(ctx, m, st); err != nil {
		return err
	}

	log := logger.From(ctx)
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, m.TenantID, m.ID); err != nil {
			// Stale entries expire with the cache TTL.
			log.Warn("fee cache invalidation failed", "marketplace_id", m.ID, "err", err)
		}
	}
	if s.audit != nil {
		meta, _ := json.Marshal(map[string]int{
			"commissions": len(st.Commissions),
			"fixed_fees":  len(st.FixedFees),
		})
		if err := s.audit.LogFeeStructureChanged(ctx, m.TenantID, m.ID, string(meta)); err != nil {
			log.Warn("audit append failed", "marketplace_id", m.ID, "err", err)
		}
	}
	log.Info("fee structure replaced", "marketplace_id", m.ID, "fixed_fees", len(st.FixedFees))
	return nil
}
