// internal/services/errors.go
package services

import (
	"errors"
	"fmt"

	"github.com/s4li/talamala-v4-sub000/internal/models"
)

// Stable machine-readable error codes surfaced to clients. Retryable kinds
// are transient; terminal kinds must not be retried automatically.
const (
	CodeInsufficientFunds     = "INSUFFICIENT_FUNDS"
	CodeInsufficientInventory = "INSUFFICIENT_INVENTORY"
	CodeStalePrice            = "STALE_PRICE"
	CodeInvalidClaim          = "INVALID_CLAIM"
	CodeInvalidOwnership      = "INVALID_OWNERSHIP"
	CodeConcurrencyConflict   = "CONCURRENCY_CONFLICT"
	CodeInvalidState          = "INVALID_STATE"
	CodeNotFound              = "NOT_FOUND"
)

// DomainError carries a stable code, a human message and a retryable flag so
// clients can decide between re-prompting and showing a hard failure.
type DomainError struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Retryable bool                   `json:"retryable"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// AsDomainError unwraps err into a DomainError if one is in the chain.
func AsDomainError(err error) (*DomainError, bool) {
	var de *DomainError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

func NewInsufficientFunds(asset models.AssetCode, requested, available int64) *DomainError {
	return &DomainError{
		Code:    CodeInsufficientFunds,
		Message: fmt.Sprintf("insufficient %s funds", asset),
		Details: map[string]interface{}{
			"asset":     asset,
			"requested": requested,
			"available": available,
		},
	}
}

func NewInsufficientInventory(requested, available int) *DomainError {
	return &DomainError{
		Code:      CodeInsufficientInventory,
		Message:   "not enough units in stock",
		Retryable: true,
		Details: map[string]interface{}{
			"requested": requested,
			"available": available,
			"shortfall": requested - available,
		},
	}
}

func NewStalePrice(metal models.Metal) *DomainError {
	return &DomainError{
		Code:      CodeStalePrice,
		Message:   fmt.Sprintf("current %s price is stale", metal),
		Retryable: true,
		Details:   map[string]interface{}{"metal": metal},
	}
}

func NewInvalidClaim(reason string) *DomainError {
	return &DomainError{
		Code:    CodeInvalidClaim,
		Message: reason,
	}
}

func NewInvalidOwnership(reason string) *DomainError {
	return &DomainError{
		Code:    CodeInvalidOwnership,
		Message: reason,
	}
}

func NewConcurrencyConflict(cause error) *DomainError {
	de := &DomainError{
		Code:      CodeConcurrencyConflict,
		Message:   "operation conflicted with a concurrent transaction",
		Retryable: true,
	}
	if cause != nil {
		de.Details = map[string]interface{}{"cause": cause.Error()}
	}
	return de
}

func NewInvalidState(reason string) *DomainError {
	return &DomainError{
		Code:    CodeInvalidState,
		Message: reason,
	}
}

func NewNotFound(resource string) *DomainError {
	return &DomainError{
		Code:    CodeNotFound,
		Message: resource + " not found",
	}
}

// ErrInvalidAmount guards every ledger mutation; amounts are strictly
// positive integers in minor units.
var ErrInvalidAmount = errors.New("amount must be a positive integer")
