package audit

import "time"

// Event is an immutable, append-only audit log record.
//
// Invariants:
// - Events are never updated or deleted.
// - tenant_id is required for tenancy isolation.
// - actor and ip capture are best-effort; pricing flows never fail on audit errors.
type Event struct {
	ID       string `json:"id" db:"id"`
	TenantID string `json:"tenant_id" db:"tenant_id"`

	Type EventType `json:"type" db:"type"`

	ActorUserID string `json:"actor_user_id,omitempty" db:"actor_user_id"`
	ActorRole   string `json:"actor_role,omitempty" db:"actor_role"`
	IPAddress   string `json:"ip_address,omitempty" db:"ip_address"`

	// Target identifiers, depending on the event type.
	ProductID     string `json:"product_id,omitempty" db:"product_id"`
	MarketplaceID string `json:"marketplace_id,omitempty" db:"marketplace_id"`
	CalculationID string `json:"calculation_id,omitempty" db:"calculation_id"`

	Message string `json:"message,omitempty" db:"message"`

	// Metadata is optional JSON for full details.
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeCalculationSaved    EventType = "calculation_saved"
	EventTypeBulkRun             EventType = "bulk_run"
	EventTypeFeeStructureChanged EventType = "fee_structure_changed"
)
