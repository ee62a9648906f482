package handlers

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/example/tiketa/internal/logging"
	"github.com/example/tiketa/internal/models"
	"github.com/example/tiketa/internal/services"
)

// PaymentGateway is the provider REST API.
type PaymentGateway interface {
	CreateSnap(ctx context.Context, req services.SnapRequest) (*services.SnapTransaction, error)
	CreateBankTransfer(ctx context.Context, req services.VARequest) (*services.VATransaction, error)
	GetStatus(ctx context.Context, orderID string) (json.RawMessage, error)
}

// OrderConfirmer confirms a paid order against the backend.
type OrderConfirmer interface {
	Confirm(ctx context.Context, orderID string) (models.ConfirmationResult, error)
}

// Announcer publishes an order confirmed outside the widget callback.
type Announcer interface {
	Announce(ctx context.Context, orderID string, uuids []string)
}

// MidtransHandler proxies the payment provider for the browser.
type MidtransHandler struct {
	gateway   PaymentGateway
	confirmer OrderConfirmer
	announcer Announcer
	log       *logrus.Entry
}

func NewMidtransHandler(gateway PaymentGateway, confirmer OrderConfirmer, announcer Announcer, log *logrus.Entry) *MidtransHandler {
	if log == nil {
		log = logging.Component(nil, "midtrans_handler")
	}
	return &MidtransHandler{gateway: gateway, confirmer: confirmer, announcer: announcer, log: log}
}

type orderRequest struct {
	OrderID string `json:"order_id"`
}

type notificationRequest struct {
	OrderID           string `json:"order_id"`
	TransactionStatus string `json:"transaction_status"`
	FraudStatus       string `json:"fraud_status"`
}

// Snap creates a hosted checkout transaction.
func (h *MidtransHandler) Snap(c *fiber.Ctx) error {
	var req services.SnapRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	txn, err := h.gateway.CreateSnap(c.UserContext(), req)
	if err != nil {
		return err
	}
	return ok(c, fiber.Map{"transaction": txn})
}

// VA creates a bank transfer charge.
func (h *MidtransHandler) VA(c *fiber.Ctx) error {
	var req services.VARequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	txn, err := h.gateway.CreateBankTransfer(c.UserContext(), req)
	if err != nil {
		return err
	}
	return ok(c, fiber.Map{"transaction": txn})
}

// Status returns the provider's view of an order.
func (h *MidtransHandler) Status(c *fiber.Ctx) error {
	data, err := h.gateway.GetStatus(c.UserContext(), c.Query("order_id"))
	if err != nil {
		return err
	}
	return ok(c, fiber.Map{"data": data})
}

// Finalize confirms the order with the backend and passes its answer through.
func (h *MidtransHandler) Finalize(c *fiber.Ctx) error {
	var req orderRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	orderID := strings.TrimSpace(req.OrderID)
	if orderID == "" {
		return &services.ValidationError{Field: "order_id", Message: "order_id is required"}
	}

	result, err := h.confirmer.Confirm(c.UserContext(), orderID)
	if err != nil {
		return err
	}
	if result.Resolved() && h.announcer != nil {
		h.announcer.Announce(c.UserContext(), orderID, result.UUIDs)
	}

	if len(result.Raw) > 0 {
		return ok(c, fiber.Map{"data": result.Raw})
	}
	return ok(c, fiber.Map{"data": result})
}

// Notification handles the provider's payment webhook. Settled orders go through
// the same confirm path as the browser.
func (h *MidtransHandler) Notification(c *fiber.Ctx) error {
	var req notificationRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	entry := h.log.WithFields(logrus.Fields{"order_id": req.OrderID, "status": req.TransactionStatus})
	if !settled(req.TransactionStatus, req.FraudStatus) {
		entry.Debug("notification ignored")
		return ok(c, fiber.Map{"confirmed": false})
	}

	result, err := h.confirmer.Confirm(c.UserContext(), req.OrderID)
	if err != nil {
		entry.WithError(err).Warn("confirm from notification failed")
		return err
	}
	if result.Resolved() && h.announcer != nil {
		h.announcer.Announce(c.UserContext(), req.OrderID, result.UUIDs)
	}

	entry.WithField("resolved", result.Resolved()).Info("notification processed")
	return ok(c, fiber.Map{"confirmed": result.Resolved()})
}

func settled(status, fraud string) bool {
	switch strings.ToLower(status) {
	case "settlement":
		return true
	case "capture":
		return fraud == "" || strings.EqualFold(fraud, "accept")
	}
	return false
}
