package handlers

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/example/tiketa/internal/logging"
	"github.com/example/tiketa/internal/models"
	"github.com/example/tiketa/internal/services"
	"github.com/example/tiketa/internal/session"
	"github.com/example/tiketa/internal/utils"
)

// CheckInBackend is the backend's admin check-in API.
type CheckInBackend interface {
	CheckInEvents(ctx context.Context, query map[string]string) (json.RawMessage, error)
	CheckIn(ctx context.Context, ticketUUID, adminID string) (json.RawMessage, error)
}

// CheckoutJournal lists journalled checkout sessions.
type CheckoutJournal interface {
	List(ctx context.Context, state string, p utils.Pagination) ([]models.CheckoutSession, int64, error)
}

// OpenCounter reports registrations still waiting on the widget.
type OpenCounter interface {
	Open() int
}

// AdminCredentials is the single configured admin account.
type AdminCredentials struct {
	ID           string
	Username     string
	PasswordHash string
}

// AdminHandler serves the admin login and check-in desk.
type AdminHandler struct {
	creds    AdminCredentials
	sessions *session.Provider
	backend  CheckInBackend
	journal  CheckoutJournal
	open     OpenCounter
	log      *logrus.Entry
}

func NewAdminHandler(creds AdminCredentials, sessions *session.Provider, backend CheckInBackend, journal CheckoutJournal, open OpenCounter, log *logrus.Entry) *AdminHandler {
	if log == nil {
		log = logging.Component(nil, "admin_handler")
	}
	return &AdminHandler{creds: creds, sessions: sessions, backend: backend, journal: journal, open: open, log: log}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type checkInRequest struct {
	UUID string `json:"uuid"`
}

func (h *AdminHandler) LoginPage(c *fiber.Ctx) error {
	return ok(c, fiber.Map{"login": true})
}

// Login checks the admin credentials and starts a session.
func (h *AdminHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	username := strings.TrimSpace(req.Username)
	sameUser := subtle.ConstantTimeCompare([]byte(username), []byte(h.creds.Username)) == 1
	if !sameUser || !utils.CheckPassword(h.creds.PasswordHash, req.Password) {
		h.log.WithField("username", username).Warn("admin login rejected")
		return fiber.NewError(fiber.StatusUnauthorized, "Username atau password salah")
	}

	admin := session.Admin{ID: h.creds.ID, Username: h.creds.Username}
	if err := h.sessions.Issue(c, admin); err != nil {
		return err
	}
	return ok(c, fiber.Map{"admin": fiber.Map{"id": admin.ID, "username": admin.Username}})
}

func (h *AdminHandler) Logout(c *fiber.Ctx) error {
	h.sessions.Clear(c)
	return ok(c, fiber.Map{})
}

// Dashboard returns the signed-in admin and the open checkout count.
func (h *AdminHandler) Dashboard(c *fiber.Ctx) error {
	admin, _ := h.sessions.Current(c)
	open := 0
	if h.open != nil {
		open = h.open.Open()
	}
	return ok(c, fiber.Map{
		"admin":          fiber.Map{"id": admin.ID, "username": admin.Username},
		"open_checkouts": open,
	})
}

func (h *AdminHandler) CheckInEvents(c *fiber.Ctx) error {
	data, err := h.backend.CheckInEvents(c.UserContext(), c.Queries())
	if err != nil {
		return err
	}
	return ok(c, fiber.Map{"data": data})
}

// CheckIn marks a ticket as used on behalf of the signed-in admin.
func (h *AdminHandler) CheckIn(c *fiber.Ctx) error {
	var req checkInRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.UUID) == "" {
		return &services.ValidationError{Field: "uuid", Message: "uuid is required"}
	}

	admin, found := h.sessions.Current(c)
	if !found {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	data, err := h.backend.CheckIn(c.UserContext(), req.UUID, admin.ID)
	if err != nil {
		return err
	}
	return ok(c, fiber.Map{"data": data})
}

// CheckoutSessions lists journalled checkouts, optionally filtered by ?state=.
func (h *AdminHandler) CheckoutSessions(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	sessions, total, err := h.journal.List(c.UserContext(), c.Query("state"), pg)
	if err != nil {
		return err
	}
	return ok(c, fiber.Map{"data": sessions, "pagination": pg.Meta(total)})
}
