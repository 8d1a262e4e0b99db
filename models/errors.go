package models

import "errors"

// Ledger and order errors. Callers match them with errors.Is; operations
// wrap them with detail via fmt.Errorf("%w: ...").
var (
	ErrInvalidQuantity       = errors.New("quantity must be greater than zero")
	ErrInsufficientAvailable = errors.New("insufficient available quantity")
	ErrInsufficientOnHand    = errors.New("insufficient on-hand quantity")
	ErrOrderNotFound         = errors.New("order not found")
	ErrInvalidTransition     = errors.New("invalid order status transition")
	ErrConflictRetry         = errors.New("ledger conflict, retry the operation")

	ErrSameLocation       = errors.New("source and target location must differ")
	ErrDuplicateLine      = errors.New("order has more than one line for the same product")
	ErrLedgerInvariant    = errors.New("inventory ledger invariant violated")
	ErrIntegrationInvalid = errors.New("integration not found")
)
