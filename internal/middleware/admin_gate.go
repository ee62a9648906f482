package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/example/tiketa/internal/session"
)

const (
	LoginPath = "/admin/login"
	AdminHome = "/admin"
)

// AdminGate keeps unauthenticated requests out of /admin and sends authenticated
// admins away from the login page.
func AdminGate(sessions *session.Provider) fiber.Handler {
	return func(c *fiber.Ctx) error {
		path := strings.TrimRight(c.Path(), "/")
		_, authenticated := sessions.Current(c)

		if path == LoginPath {
			if authenticated && c.Method() == fiber.MethodGet {
				return c.Redirect(AdminHome, fiber.StatusFound)
			}
			return c.Next()
		}

		if !authenticated {
			return c.Redirect(LoginPath, fiber.StatusFound)
		}
		return c.Next()
	}
}
