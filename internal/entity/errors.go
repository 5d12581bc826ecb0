package entity

import (
	"errors"
	"fmt"
)

var (
	ErrItemUnavailable        = errors.New("item is not available")
	ErrInsufficientStock      = errors.New("insufficient stock")
	ErrInvalidQuantity        = errors.New("invalid quantity")
	ErrInvalidPrice           = errors.New("invalid price")
	ErrEmptyCart              = errors.New("cart is empty")
	ErrMissingAddress         = errors.New("shipping address is required")
	ErrOrderTooLarge          = errors.New("order total exceeds the maximum amount")
	ErrNotFound               = errors.New("not found")
	ErrAuthenticationRequired = errors.New("authentication required")

	// ErrStorageFailure marks transient storage errors. Callers may retry.
	ErrStorageFailure = errors.New("storage failure")
)

// InsufficientStockError names the item that could not be fulfilled.
type InsufficientStockError struct {
	ItemID    string
	Title     string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	if e.Requested == 0 {
		return fmt.Sprintf("insufficient stock for %q (available: %d)", e.Title, e.Available)
	}
	return fmt.Sprintf("insufficient stock for %q (requested: %d, available: %d)", e.Title, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// IsBusinessError reports whether err is an expected rule violation rather than a fault.
func IsBusinessError(err error) bool {
	for _, target := range []error{
		ErrItemUnavailable,
		ErrInsufficientStock,
		ErrInvalidQuantity,
		ErrInvalidPrice,
		ErrEmptyCart,
		ErrMissingAddress,
		ErrOrderTooLarge,
		ErrNotFound,
		ErrAuthenticationRequired,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// StorageError wraps err as a retryable storage failure unless it already is a business error.
func StorageError(err error) error {
	if err == nil || IsBusinessError(err) || errors.Is(err, ErrStorageFailure) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStorageFailure, err)
}
