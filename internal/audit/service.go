package audit

import (
	"context"
	"errors"
	"time"

	"marketplace-pricing/internal/auth"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only.
type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service records who changed pricing inputs and outputs.
//
// Callers treat audit logging as best-effort.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.TenantID == "" {
		return ErrInvalidEvent
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}

	now := s.clock().UTC()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}

	// Actor fields come from the request identity when the caller left them empty.
	if e.ActorUserID == "" {
		e.ActorUserID, _ = auth.UserID(ctx)
	}
	if e.ActorRole == "" {
		e.ActorRole, _ = auth.Role(ctx)
	}
	if e.IPAddress == "" {
		e.IPAddress = ClientIPFromContext(ctx)
	}
	return s.repo.Append(ctx, e)
}

// LogCalculationSaved records an upserted pricing calculation.
func (s *Service) LogCalculationSaved(ctx context.Context, tenantID, productID, marketplaceID, calculationID, metadata string) error {
	return s.Append(ctx, Event{
		TenantID:      tenantID,
		Type:          EventTypeCalculationSaved,
		ProductID:     productID,
		MarketplaceID: marketplaceID,
		CalculationID: calculationID,
		Message:       "calculation saved",
		Metadata:      metadata,
	})
}

// LogBulkRun records a bulk pricing run with its outcome counts in metadata.
func (s *Service) LogBulkRun(ctx context.Context, tenantID, message, metadata string) error {
	return s.Append(ctx, Event{
		TenantID: tenantID,
		Type:     EventTypeBulkRun,
		Message:  message,
		Metadata: metadata,
	})
}

// LogFeeStructureChanged records a replaced marketplace fee structure.
func (s *Service) LogFeeStructureChanged(ctx context.Context, tenantID, marketplaceID, metadata string) error {
	return s.Append(ctx, Event{
		TenantID:      tenantID,
		Type:          EventTypeFeeStructureChanged,
		MarketplaceID: marketplaceID,
		Message:       "fee structure replaced",
		Metadata:      metadata,
	})
}
