package handlers

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/example/tiketa/internal/models"
	"github.com/example/tiketa/internal/services"
)

// TicketBackend reads tickets from the backend.
type TicketBackend interface {
	GetTicket(ctx context.Context, idOrUUID string) (*models.TicketTransaction, error)
	SearchTransactions(ctx context.Context, phone string) (json.RawMessage, error)
}

// TicketHandler serves ticket lookups.
type TicketHandler struct {
	backend TicketBackend
}

func NewTicketHandler(backend TicketBackend) *TicketHandler {
	return &TicketHandler{backend: backend}
}

// Get returns a ticket by id or uuid.
func (h *TicketHandler) Get(c *fiber.Ctx) error {
	ticket, err := h.backend.GetTicket(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return ok(c, fiber.Map{"data": ticket})
}

// Search finds transactions by the buyer's exact phone number.
func (h *TicketHandler) Search(c *fiber.Ctx) error {
	phone := strings.TrimSpace(c.Query("phone"))
	if phone == "" {
		return &services.ValidationError{Field: "phone", Message: "phone is required"}
	}

	data, err := h.backend.SearchTransactions(c.UserContext(), phone)
	if err != nil {
		return err
	}
	return ok(c, fiber.Map{"data": data})
}
