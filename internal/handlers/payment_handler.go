package handlers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"lapak/internal/middleware"
	"lapak/internal/repositories"
	"lapak/internal/services"
	"lapak/pkg/gateway"
)

// SignatureHeader is the request header carrying the gateway's webhook
// signature.
const SignatureHeader = "Gateway-Signature"

// PaymentHandler exposes intent creation to the buyer and the callback
// endpoint to the gateway.
type PaymentHandler struct {
	service *services.PaymentService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(service *services.PaymentService) *PaymentHandler {
	return &PaymentHandler{
		service: service,
	}
}

// RegisterRoutes registers the buyer-facing payment routes. The webhook
// route is registered separately via RegisterWebhookRoute because it must
// not sit behind the auth middleware.
func (h *PaymentHandler) RegisterRoutes(router fiber.Router) {
	paymentRoutes := router.Group("/payments")
	paymentRoutes.Post("/intents", h.HandleCreateIntent)
}

// RegisterWebhookRoute registers the gateway callback endpoint. It is
// authenticated by signature, not by session.
func (h *PaymentHandler) RegisterWebhookRoute(router fiber.Router) {
	router.Post("/payments/webhook", h.HandleWebhook)
}

// CreateIntentRequest names the order to pay for.
type CreateIntentRequest struct {
	OrderID string `json:"order_id"`
}

// HandleCreateIntent creates (or returns the already-created) payment
// intent for a pending order.
func (h *PaymentHandler) HandleCreateIntent(c *fiber.Ctx) error {
	var req CreateIntentRequest
	if err := c.BodyParser(&req); err != nil || req.OrderID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "order_id is required",
		})
	}

	intent, err := h.service.CreateIntent(middleware.CurrentUserID(c), req.OrderID)
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrOrderNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"message": "Order not found",
			})
		case errors.Is(err, services.ErrNotPayable):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"message": "Order is not awaiting payment",
				"error":   err.Error(),
			})
		case errors.Is(err, gateway.ErrGatewayUnavailable), errors.Is(err, gateway.ErrInvalidRequest):
			// The order has been compensated; the buyer must re-attempt
			// checkout.
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"message": "Payment could not be started, try again",
			})
		default:
			log.Printf("Error creating intent for order %s: %v", req.OrderID, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"message": "Could not create payment intent",
			})
		}
	}

	return c.JSON(fiber.Map{
		"intent_id":     intent.ID,
		"client_secret": intent.ClientSecret,
	})
}

// HandleWebhook receives a gateway callback. 400 on signature failure,
// 200 once the event is durably recorded, regardless of business outcome,
// so the gateway stops retrying events we already hold.
func (h *PaymentHandler) HandleWebhook(c *fiber.Ctx) error {
	if err := h.service.HandleWebhook(c.Body(), c.Get(SignatureHeader)); err != nil {
		if errors.Is(err, gateway.ErrSignatureInvalid) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": "Signature verification failed",
			})
		}
		log.Printf("Webhook processing error: %v", err)
		// Transient storage failure: let the gateway retry the delivery.
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Temporary failure, retry",
		})
	}
	return c.JSON(fiber.Map{"received": true})
}
