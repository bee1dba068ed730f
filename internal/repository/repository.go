// Package repository defines the storage boundary used by the order services.
// Every write that must commit together goes through Transactor.WithinTransaction.
package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/example/storefront/internal/models"
)

var (
	// ErrNotFound is returned when a referenced record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrStockConflict is returned when a conditional stock decrement matched no row.
	ErrStockConflict = errors.New("stock precondition failed")
	// ErrDuplicate is returned when a write violates a unique constraint.
	ErrDuplicate = errors.New("duplicate record")
	// ErrStatusChanged is returned when a conditional status write found the
	// order already in the target status.
	ErrStatusChanged = errors.New("order status changed concurrently")
)

type ProductRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	// DecrementStock subtracts quantity only while stock >= quantity.
	DecrementStock(ctx context.Context, id uuid.UUID, quantity int) error
}

type AddressRepository interface {
	ExistsForUser(ctx context.Context, id, userID uuid.UUID) (bool, error)
}

type OrderRepository interface {
	// Append adds order to the group owned by email, creating the group on first use.
	// The assigned order ID is written back into order.
	Append(ctx context.Context, email string, userID uuid.UUID, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	UpdateStatus(ctx context.Context, order *models.Order) error
	// Cancel writes the cancellation fields only while the stored order is
	// not yet cancelled.
	Cancel(ctx context.Context, order *models.Order) error
}

type PaymentRepository interface {
	// Create returns ErrDuplicate when the order or the gateway payment
	// reference already has a payment.
	Create(ctx context.Context, payment *models.Payment) error
	ExistsForGatewayPayment(ctx context.Context, paymentRef string) (bool, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Payment, error)
	Update(ctx context.Context, payment *models.Payment) error
}

type UserRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	IncrementOrderCount(ctx context.Context, id uuid.UUID) error
}

// Store groups the repositories visible inside a unit of work.
type Store interface {
	Products() ProductRepository
	Addresses() AddressRepository
	Orders() OrderRepository
	Payments() PaymentRepository
	Users() UserRepository
}

// Transactor runs fn against a Store whose writes commit only if fn returns nil.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(store Store) error) error
}
