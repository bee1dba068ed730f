package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/repository"
)

// PaymentUpdate is a payment status callback.
type PaymentUpdate struct {
	Status         models.PaymentStatus
	CODConfirmed   *bool
	DeliveryStatus string
}

// PaymentService applies payment status callbacks. Payments are never deleted.
type PaymentService struct {
	tx  repository.Transactor
	log zerolog.Logger
	now func() time.Time
}

func NewPaymentService(tx repository.Transactor, log zerolog.Logger) *PaymentService {
	return &PaymentService{
		tx:  tx,
		log: log.With().Str("component", "payments").Logger(),
		now: time.Now,
	}
}

// UpdateStatus sets the payment status and, for cash on delivery, the delivery confirmation.
func (s *PaymentService) UpdateStatus(ctx context.Context, paymentID uuid.UUID, upd PaymentUpdate) (*models.Payment, error) {
	if _, err := models.ParsePaymentStatus(string(upd.Status)); err != nil {
		return nil, validationf("%v", err)
	}

	var payment *models.Payment
	err := s.tx.WithinTransaction(ctx, func(store repository.Store) error {
		p, err := store.Payments().FindByID(ctx, paymentID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return notFoundf("payment %s", paymentID)
			}
			return err
		}

		p.Status = upd.Status
		if p.Method == models.PaymentMethodCOD {
			if upd.DeliveryStatus != "" {
				p.COD.DeliveryStatus = upd.DeliveryStatus
			}
			if upd.CODConfirmed != nil && *upd.CODConfirmed && !p.COD.Confirmed {
				now := s.now()
				p.COD.Confirmed = true
				p.COD.ConfirmedAt = &now
			}
		} else if upd.CODConfirmed != nil {
			return validationf("delivery confirmation only applies to cash on delivery")
		}

		if err := store.Payments().Update(ctx, p); err != nil {
			return err
		}
		payment = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("payment_id", paymentID.String()).Str("status", string(payment.Status)).Msg("payment status updated")
	return payment, nil
}

// FindByOrder returns the payment recorded for orderID.
func (s *PaymentService) FindByOrder(ctx context.Context, orderID uuid.UUID) (*models.Payment, error) {
	var payment *models.Payment
	err := s.tx.WithinTransaction(ctx, func(store repository.Store) error {
		p, err := store.Payments().FindByOrderID(ctx, orderID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return notFoundf("payment for order %s", orderID)
			}
			return err
		}
		payment = p
		return nil
	})
	return payment, err
}
