package services

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrValidation = errors.New("validation error")
	// ErrInvalidReference marks a malformed identifier; it is also an ErrValidation.
	ErrInvalidReference   = fmt.Errorf("%w: invalid reference", ErrValidation)
	ErrNotFound           = errors.New("not found")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrTransactionAborted = errors.New("transaction aborted")
	ErrGateway            = errors.New("payment gateway error")
	ErrAlreadyCancelled   = errors.New("order already cancelled")
	// ErrPaymentAlreadyUsed means a gateway payment was already turned into an order.
	ErrPaymentAlreadyUsed = errors.New("payment already used for an order")
)

// InsufficientStockError reports the product that could not be fulfilled.
type InsufficientStockError struct {
	ProductID uuid.UUID
	Title     string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %q: available %d, requested %d", e.Title, e.Available, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// PaymentCapturedError wraps a checkout failure that happened after the
// gateway confirmed the payment, so support can reconcile it.
type PaymentCapturedError struct {
	PaymentRef string
	Err        error
}

func (e *PaymentCapturedError) Error() string {
	return fmt.Sprintf("payment %s captured but order failed: %v", e.PaymentRef, e.Err)
}

func (e *PaymentCapturedError) Unwrap() error { return e.Err }

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func notFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}
