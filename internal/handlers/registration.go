package handlers

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/example/tiketa/internal/confirmation"
	"github.com/example/tiketa/internal/models"
	"github.com/example/tiketa/internal/registration"
)

// RegistrationFlow is the registration lifecycle the handler drives.
type RegistrationFlow interface {
	Submit(ctx context.Context, form registration.Form) (*registration.Submission, error)
	Deliver(ctx context.Context, orderID string, outcome models.PaymentOutcome, payload map[string]any) (confirmation.Directive, error)
	Reopen(ctx context.Context, orderID string) (confirmation.Directive, error)
	Status(ctx context.Context, orderID string) (confirmation.Directive, error)
	Teardown(orderID string) bool
	Announcer
}

// RegistrationHandler serves the registration form, the checkout outcome callbacks
// and the payment result pages.
type RegistrationHandler struct {
	flow      RegistrationFlow
	catalog   registration.EventLookup
	confirmer OrderConfirmer
	pages     confirmation.Pages
	now       func() time.Time

	confirmTimeout time.Duration
}

func NewRegistrationHandler(flow RegistrationFlow, catalog registration.EventLookup, confirmer OrderConfirmer, pages confirmation.Pages) *RegistrationHandler {
	return &RegistrationHandler{
		flow:           flow,
		catalog:        catalog,
		confirmer:      confirmer,
		pages:          pages,
		now:            time.Now,
		confirmTimeout: 10 * time.Second,
	}
}

type outcomeRequest struct {
	Outcome string         `json:"outcome"`
	Payload map[string]any `json:"payload"`
}

// SelectTier resolves the ticket tier for an event. A missing or stale ?ticket= is
// redirected to the canonical one.
func (h *RegistrationHandler) SelectTier(c *fiber.Ctx) error {
	event, err := h.catalog.GetEvent(c.UserContext(), c.Params("event"))
	if err != nil {
		return err
	}

	res, err := registration.ResolveTier(event.Tickets, c.Query("ticket"), h.now())
	if err != nil {
		return err
	}
	if res.Redirect {
		return c.Redirect(c.Path()+"?ticket="+url.QueryEscape(res.Canonical), fiber.StatusPermanentRedirect)
	}

	return ok(c, fiber.Map{
		"event":     fiber.Map{"id": event.ID, "slug": event.Slug, "title": event.Title},
		"ticket":    res.Tier,
		"canonical": res.Canonical,
	})
}

// Submit creates the pending transaction and opens the hosted checkout.
func (h *RegistrationHandler) Submit(c *fiber.Ctx) error {
	var form registration.Form
	if err := c.BodyParser(&form); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	sub, err := h.flow.Submit(c.UserContext(), form)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"ok": true, "registration": sub})
}

// Outcome delivers a widget callback reported by the browser.
func (h *RegistrationHandler) Outcome(c *fiber.Ctx) error {
	var req outcomeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	outcome, err := models.ParsePaymentOutcome(req.Outcome)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	d, err := h.flow.Deliver(c.UserContext(), c.Params("order_id"), outcome, req.Payload)
	if err != nil {
		return err
	}
	return ok(c, fiber.Map{"directive": d})
}

func (h *RegistrationHandler) Reopen(c *fiber.Ctx) error {
	d, err := h.flow.Reopen(c.UserContext(), c.Params("order_id"))
	if err != nil {
		return err
	}
	return ok(c, fiber.Map{"directive": d})
}

func (h *RegistrationHandler) Status(c *fiber.Ctx) error {
	d, err := h.flow.Status(c.UserContext(), c.Params("order_id"))
	if err != nil {
		return err
	}
	return ok(c, fiber.Map{"directive": d})
}

// Teardown is called when the checkout page unmounts.
func (h *RegistrationHandler) Teardown(c *fiber.Ctx) error {
	return ok(c, fiber.Map{"ended": h.flow.Teardown(c.Params("order_id"))})
}

// SuccessPage confirms the order named in the query. fasthttp gives no signal when the
// client goes away, so the wait is bounded by confirmTimeout instead; past it the page
// falls back to the waiting message and the late result is dropped.
func (h *RegistrationHandler) SuccessPage(c *fiber.Ctx) error {
	orderID := strings.TrimSpace(c.Query("order_id"))

	ctx, cancel := context.WithTimeout(c.UserContext(), h.confirmTimeout)
	defer cancel()

	d, err := h.pages.SuccessPage(ctx, h.confirmer, orderID)
	if errors.Is(err, context.DeadlineExceeded) {
		return ok(c, fiber.Map{"directive": h.pages.Fallback()})
	}
	if err != nil {
		return err
	}
	if d.State == confirmation.Resolved {
		h.flow.Announce(c.UserContext(), orderID, d.TicketUUIDs)
	}
	return ok(c, fiber.Map{"directive": d})
}

func (h *RegistrationHandler) PendingPage(c *fiber.Ctx) error {
	return ok(c, fiber.Map{"directive": h.pages.PendingPage()})
}
