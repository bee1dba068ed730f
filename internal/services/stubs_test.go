package services_test

import (
	"context"

	"github.com/google/uuid"

	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/repository"
	"github.com/example/storefront/internal/repository/memory"
)

// wrappedStore runs transactions on a memory.Store but lets a test swap
// individual repositories for stubs.
type wrappedStore struct {
	inner *memory.Store
	wrap  func(repository.Store) repository.Store
}

func (w wrappedStore) WithinTransaction(ctx context.Context, fn func(store repository.Store) error) error {
	return w.inner.WithinTransaction(ctx, func(store repository.Store) error {
		return fn(w.wrap(store))
	})
}

// lostRaceStore fails every stock decrement as if another checkout took the
// row first. Reads after the first one report freshStock.
type lostRaceStore struct {
	repository.Store
	freshStock int
}

func (s lostRaceStore) Products() repository.ProductRepository {
	return &lostRaceProducts{ProductRepository: s.Store.Products(), freshStock: s.freshStock}
}

type lostRaceProducts struct {
	repository.ProductRepository
	freshStock int
	reads      int
}

func (p *lostRaceProducts) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	product, err := p.ProductRepository.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	p.reads++
	if p.reads > 1 {
		product.Stock = p.freshStock
	}
	return product, nil
}

func (p *lostRaceProducts) DecrementStock(context.Context, uuid.UUID, int) error {
	return repository.ErrStockConflict
}

// staleOrderStore hands out orders as they looked before a concurrent
// cancellation was committed.
type staleOrderStore struct {
	repository.Store
}

func (s staleOrderStore) Orders() repository.OrderRepository {
	return staleOrders{s.Store.Orders()}
}

type staleOrders struct {
	repository.OrderRepository
}

func (o staleOrders) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, err := o.OrderRepository.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	order.Status = models.OrderStatusPending
	order.CancelReason = ""
	order.CancelledAt = nil
	return order, nil
}
