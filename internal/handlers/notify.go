package handlers

import (
	"context"
	"encoding/json"

	"github.com/gofiber/fiber/v2"
)

// Messenger sends a WhatsApp message through the relay.
type Messenger interface {
	Send(ctx context.Context, to, message string) (json.RawMessage, error)
}

// NotifyHandler proxies the WhatsApp relay.
type NotifyHandler struct {
	messenger Messenger
}

func NewNotifyHandler(messenger Messenger) *NotifyHandler {
	return &NotifyHandler{messenger: messenger}
}

type notifyRequest struct {
	To      string `json:"to"`
	Number  string `json:"number"`
	Message string `json:"message"`
}

// SendWA forwards a message. `number` is accepted as an alias of `to`.
func (h *NotifyHandler) SendWA(c *fiber.Ctx) error {
	var req notifyRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	to := req.To
	if to == "" {
		to = req.Number
	}

	data, err := h.messenger.Send(c.UserContext(), to, req.Message)
	if err != nil {
		return err
	}
	return ok(c, fiber.Map{"data": data})
}
