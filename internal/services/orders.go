package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/notify"
	"github.com/example/storefront/internal/repository"
)

// TransitionPolicy decides whether an order may move from one status to another.
type TransitionPolicy interface {
	Allow(from, to models.OrderStatus) error
}

// PermissiveTransitions allows every transition.
type PermissiveTransitions struct{}

func (PermissiveTransitions) Allow(_, _ models.OrderStatus) error { return nil }

// TransitionTable allows only the listed transitions.
type TransitionTable map[models.OrderStatus][]models.OrderStatus

func (t TransitionTable) Allow(from, to models.OrderStatus) error {
	for _, next := range t[from] {
		if next == to {
			return nil
		}
	}
	return validationf("transition from %s to %s is not allowed", from, to)
}

// StatusUpdate is an administrative status change.
type StatusUpdate struct {
	Status         models.OrderStatus
	TrackingNumber *string
	AdminNotes     *string
	RefundAmount   *decimal.Decimal
	RefundReason   string
}

// OrderService mutates existing orders.
type OrderService struct {
	tx       repository.Transactor
	policy   TransitionPolicy
	notifier Notifier
	log      zerolog.Logger
	now      func() time.Time
}

// NewOrderService builds an OrderService. A nil policy allows every transition.
func NewOrderService(tx repository.Transactor, policy TransitionPolicy, notifier Notifier, log zerolog.Logger) *OrderService {
	if policy == nil {
		policy = PermissiveTransitions{}
	}
	return &OrderService{
		tx:       tx,
		policy:   policy,
		notifier: notifier,
		log:      log.With().Str("component", "orders").Logger(),
		now:      time.Now,
	}
}

// UpdateStatus applies an administrative status change and emails the customer.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID uuid.UUID, upd StatusUpdate) (*models.Order, error) {
	if _, err := models.ParseOrderStatus(string(upd.Status)); err != nil {
		return nil, validationf("%v", err)
	}
	if upd.RefundAmount != nil && upd.RefundAmount.IsNegative() {
		return nil, validationf("refund amount must not be negative")
	}

	var order *models.Order
	err := s.tx.WithinTransaction(ctx, func(store repository.Store) error {
		o, err := findOrder(ctx, store, orderID)
		if err != nil {
			return err
		}
		if err := s.policy.Allow(o.Status, upd.Status); err != nil {
			return err
		}

		o.Status = upd.Status
		if upd.TrackingNumber != nil {
			o.TrackingNumber = *upd.TrackingNumber
		}
		if upd.AdminNotes != nil {
			o.AdminNotes = *upd.AdminNotes
		}
		if upd.Status == models.OrderStatusRefunded {
			now := s.now()
			amount := o.TotalPrice
			if upd.RefundAmount != nil {
				amount = *upd.RefundAmount
			}
			o.RefundAmount = decimal.NewNullDecimal(amount)
			o.RefundReason = upd.RefundReason
			o.RefundedAt = &now
		}
		if upd.Status == models.OrderStatusCancelled && o.CancelledAt == nil {
			now := s.now()
			o.CancelledAt = &now
		}

		if err := store.Orders().UpdateStatus(ctx, o); err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("order_id", orderID.String()).Str("status", string(order.Status)).Msg("order status updated")
	s.notifyStatus(order)
	return order, nil
}

// Cancel lets a customer cancel their own order. Stock is not restored.
func (s *OrderService) Cancel(ctx context.Context, userID, orderID uuid.UUID, reason string) (*models.Order, error) {
	var order *models.Order
	err := s.tx.WithinTransaction(ctx, func(store repository.Store) error {
		o, err := findOrder(ctx, store, orderID)
		if err != nil {
			return err
		}
		if o.UserID != userID {
			return notFoundf("order %s", orderID)
		}
		if o.Status == models.OrderStatusCancelled {
			return ErrAlreadyCancelled
		}

		now := s.now()
		o.Status = models.OrderStatusCancelled
		o.CancelReason = reason
		o.CancelledAt = &now
		if err := store.Orders().Cancel(ctx, o); err != nil {
			if errors.Is(err, repository.ErrStatusChanged) {
				return ErrAlreadyCancelled
			}
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("order_id", orderID.String()).Str("user_id", userID.String()).Msg("order cancelled by customer")
	s.notifyStatus(order)
	return order, nil
}

func (s *OrderService) notifyStatus(order *models.Order) {
	if s.notifier == nil {
		return
	}
	email := ""
	if order.OrderGroup != nil {
		email = order.OrderGroup.Email
	}
	msg := notify.Message{
		Event: notify.EventOrderStatusChanged,
		Order: notify.SummarizeOrder(order, email, nil),
	}
	if !s.notifier.Enqueue(msg) {
		s.log.Warn().Str("order_id", order.ID.String()).Msg("status notification not queued")
	}
}

func findOrder(ctx context.Context, store repository.Store, id uuid.UUID) (*models.Order, error) {
	o, err := store.Orders().FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFoundf("order %s", id)
		}
		return nil, fmt.Errorf("load order: %w", err)
	}
	return o, nil
}
