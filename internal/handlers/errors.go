package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/example/storefront/internal/services"
)

const paymentSupportMessage = "your payment was received but the order could not be completed; please contact support with your payment reference"

// ErrorHandler renders handler and service errors as the JSON error envelope.
func ErrorHandler(log zerolog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status, body := errorResponse(err)
		if status >= fiber.StatusInternalServerError {
			log.Error().Err(err).
				Str("method", c.Method()).
				Str("path", c.Path()).
				Int("status", status).
				Msg("request failed")
		}
		return c.Status(status).JSON(body)
	}
}

func errorResponse(err error) (int, fiber.Map) {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code, fiber.Map{"success": false, "message": fe.Message}
	}

	var captured *services.PaymentCapturedError
	if errors.As(err, &captured) {
		return fiber.StatusBadGateway, fiber.Map{
			"success":           false,
			"message":           paymentSupportMessage,
			"payment_reference": captured.PaymentRef,
		}
	}

	var stock *services.InsufficientStockError
	if errors.As(err, &stock) {
		return fiber.StatusConflict, fiber.Map{
			"success":    false,
			"message":    stock.Error(),
			"product_id": stock.ProductID,
			"title":      stock.Title,
			"available":  stock.Available,
			"requested":  stock.Requested,
		}
	}

	switch {
	case errors.Is(err, services.ErrValidation):
		return fiber.StatusBadRequest, fiber.Map{"success": false, "message": err.Error()}
	case errors.Is(err, services.ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		return fiber.StatusNotFound, fiber.Map{"success": false, "message": err.Error()}
	case errors.Is(err, services.ErrAlreadyCancelled), errors.Is(err, services.ErrPaymentAlreadyUsed):
		return fiber.StatusConflict, fiber.Map{"success": false, "message": err.Error()}
	case errors.Is(err, services.ErrTransactionAborted):
		return fiber.StatusConflict, fiber.Map{
			"success":   false,
			"message":   "the order could not be completed, please retry",
			"retryable": true,
		}
	case errors.Is(err, services.ErrGateway):
		return fiber.StatusBadGateway, fiber.Map{"success": false, "message": err.Error()}
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout, fiber.Map{"success": false, "message": "request timed out"}
	}

	return fiber.StatusInternalServerError, fiber.Map{"success": false, "message": "internal server error"}
}
