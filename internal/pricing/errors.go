package pricing

import (
	"context"
	"errors"

	"marketplace-pricing/internal/catalog"
	"marketplace-pricing/internal/fees"
)

var (
	ErrNotFound = errors.New("pricing: calculation not found")
	ErrBulkBusy = errors.New("pricing: too many bulk runs in progress for tenant")
)

// Error codes reported to API clients and in per-item bulk failures.
const (
	CodeInvalidInput      = "invalid_input"
	CodeConfiguration     = "configuration"
	CodeMarginUnreachable = "margin_unreachable"
	CodeNotFound          = "not_found"
	CodeBusy              = "busy"
	CodeCanceled          = "canceled"
	CodeInternal          = "internal"
)

// ErrorCode classifies err into the pricing error taxonomy.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInput), errors.Is(err, fees.ErrNegativePrice), errors.Is(err, catalog.ErrInvalidArgument):
		return CodeInvalidInput
	case errors.Is(err, fees.ErrConfiguration):
		return CodeConfiguration
	case errors.Is(err, ErrMarginUnreachable):
		return CodeMarginUnreachable
	case errors.Is(err, ErrNotFound), errors.Is(err, catalog.ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrBulkBusy):
		return CodeBusy
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return CodeCanceled
	default:
		return CodeInternal
	}
}
