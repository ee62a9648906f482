package session

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/example/tiketa/internal/utils"
)

const (
	// CookieName holds the signed admin session token.
	CookieName = "admin_token"
	localsKey  = "adminSession"
)

// Admin is the authenticated admin of a request.
type Admin struct {
	ID       string
	Username string
}

// Provider is the single source of truth for the admin session. The token lives in
// one cookie and is read only through Current.
type Provider struct {
	secret string
	ttl    time.Duration
	secure bool
}

// NewProvider creates a Provider. secure marks the cookie HTTPS-only.
func NewProvider(secret string, ttl time.Duration, secure bool) *Provider {
	return &Provider{secret: secret, ttl: ttl, secure: secure}
}

// Issue signs a token for the admin and sets the session cookie.
func (p *Provider) Issue(c *fiber.Ctx, admin Admin) error {
	token, err := utils.GenerateToken(p.secret, admin.ID, admin.Username, p.ttl)
	if err != nil {
		return err
	}

	c.Cookie(&fiber.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(p.ttl),
		HTTPOnly: true,
		Secure:   p.secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	c.Locals(localsKey, &admin)
	return nil
}

// Current returns the admin of the request, if any.
func (p *Provider) Current(c *fiber.Ctx) (Admin, bool) {
	if cached, ok := c.Locals(localsKey).(*Admin); ok && cached != nil {
		return *cached, true
	}

	token := c.Cookies(CookieName)
	if token == "" {
		return Admin{}, false
	}

	claims, err := utils.ParseToken(p.secret, token)
	if err != nil {
		return Admin{}, false
	}

	admin := &Admin{ID: claims.AdminID, Username: claims.Username}
	c.Locals(localsKey, admin)
	return *admin, true
}

// Clear expires the session cookie.
func (p *Provider) Clear(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HTTPOnly: true,
		Secure:   p.secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	c.Locals(localsKey, nil)
}
