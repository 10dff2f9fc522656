package handlers

import (
	"log"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"lapak/internal/middleware"
	"lapak/internal/models"
	"lapak/internal/repositories"
)

// AddressHandler lets buyers register shipping addresses. Thin enough that
// it talks to the repository directly.
type AddressHandler struct {
	addresses repositories.AddressRepository
	validate  *validator.Validate
}

// NewAddressHandler creates a new AddressHandler.
func NewAddressHandler(addresses repositories.AddressRepository) *AddressHandler {
	return &AddressHandler{
		addresses: addresses,
		validate:  validator.New(),
	}
}

// RegisterRoutes registers the address routes with the Fiber app.
func (h *AddressHandler) RegisterRoutes(router fiber.Router) {
	router.Post("/addresses", h.HandleCreateAddress)
}

// HandleCreateAddress stores a new address owned by the current user. The
// owner always comes from the token, never from the body.
func (h *AddressHandler) HandleCreateAddress(c *fiber.Ctx) error {
	var address models.Address
	if err := c.BodyParser(&address); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}
	address.UserID = middleware.CurrentUserID(c)
	if err := h.validate.Struct(address); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Validation failed",
			"errors":  validationMessages(err),
		})
	}

	if err := h.addresses.Create(&address); err != nil {
		log.Printf("Error creating address: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not create address",
		})
	}
	return c.Status(fiber.StatusCreated).JSON(address)
}
