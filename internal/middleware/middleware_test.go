package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/tiketa/internal/metrics"
	"github.com/example/tiketa/internal/session"
	"github.com/example/tiketa/internal/utils"
)

func gatedApp(p *session.Provider) *fiber.App {
	app := fiber.New()
	admin := app.Group("/admin", AdminGate(p))
	admin.Get("/login", func(c *fiber.Ctx) error { return c.SendString("login") })
	admin.Get("/", func(c *fiber.Ctx) error { return c.SendString("dashboard") })
	admin.Get("/checkin", func(c *fiber.Ctx) error { return c.SendString("checkin") })
	return app
}

func TestAdminGate_RedirectsAnonymous(t *testing.T) {
	app := gatedApp(session.NewProvider("secret", time.Hour, false))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/admin/checkin", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, LoginPath, resp.Header.Get("Location"))

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/admin/login", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAdminGate_AuthenticatedAdmin(t *testing.T) {
	app := gatedApp(session.NewProvider("secret", time.Hour, false))
	token, err := utils.GenerateToken("secret", "1", "ops", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/admin/checkin", nil)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: token})
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/admin/login", nil)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: token})
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, AdminHome, resp.Header.Get("Location"))
}

func signedApp(serverKey string) *fiber.App {
	app := fiber.New()
	app.Post("/notify", MidtransSignature(serverKey), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})
	return app
}

func notify(t *testing.T, app *fiber.App, body string) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/notify", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp.StatusCode
}

func TestMidtransSignature(t *testing.T) {
	app := signedApp("server-key")
	sig := NotificationSignature("ORD-1", "200", "152000.00", "server-key")

	ok := `{"order_id":"ORD-1","status_code":"200","gross_amount":"152000.00","signature_key":"` + sig + `"}`
	assert.Equal(t, http.StatusNoContent, notify(t, app, ok))

	tampered := `{"order_id":"ORD-1","status_code":"200","gross_amount":"1.00","signature_key":"` + sig + `"}`
	assert.Equal(t, http.StatusUnauthorized, notify(t, app, tampered))

	assert.Equal(t, http.StatusBadRequest, notify(t, app, `{"order_id":"ORD-1"}`))
	assert.Equal(t, http.StatusBadRequest, notify(t, app, `not json`))
}

func TestMidtransSignature_NoServerKey(t *testing.T) {
	app := signedApp("")
	assert.Equal(t, http.StatusInternalServerError, notify(t, app, `{}`))
}

func TestMetrics_RecordsRoutePattern(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry(), "mw")
	app := fiber.New()
	app.Use(Metrics(m))
	app.Get("/api/tickets/:id", func(c *fiber.Ctx) error { return c.SendString(c.Params("id")) })
	app.Get("/metrics", func(c *fiber.Ctx) error {
		rec := httptest.NewRecorder()
		m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		return c.SendString(rec.Body.String())
	})

	_, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/tickets/abc", nil))
	require.NoError(t, err)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `handler="/api/tickets/:id",status="200"`)
}
