package routes

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/tiketa/internal/confirmation"
	"github.com/example/tiketa/internal/handlers"
	"github.com/example/tiketa/internal/metrics"
	"github.com/example/tiketa/internal/registration"
	"github.com/example/tiketa/internal/session"
)

func newApp(t *testing.T) *fiber.App {
	t.Helper()
	sessions := session.NewProvider("secret", time.Hour, false)
	pages := confirmation.Pages{EventsURL: "/events", TicketURLPrefix: "/tickets/"}

	app := fiber.New(fiber.Config{ErrorHandler: handlers.ErrorHandler})
	Register(app, Deps{
		Midtrans:     handlers.NewMidtransHandler(nil, nil, nil, nil),
		Notify:       handlers.NewNotifyHandler(nil),
		Registration: handlers.NewRegistrationHandler(nil, nil, nil, pages),
		Tickets:      handlers.NewTicketHandler(nil),
		Admin:        handlers.NewAdminHandler(handlers.AdminCredentials{}, sessions, nil, registration.NewMemoryStore(), nil, nil),
		Sessions:     sessions,
		Metrics:      metrics.New(prometheus.NewRegistry(), "routes"),
		ServerKey:    "server-key",
	})
	return app
}

func TestRegister_PublicRoutes(t *testing.T) {
	app := newApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/payment/pending", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `tiketa_routes_http_requests_total{handler="/payment/pending",status="200"} 1`)
}

func TestRegister_AdminIsGated(t *testing.T) {
	app := newApp(t)

	for _, path := range []string{"/admin", "/admin/checkout-sessions", "/admin/events/check-in"} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusFound, resp.StatusCode, path)
		assert.Equal(t, "/admin/login", resp.Header.Get("Location"), path)
	}

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/admin/login", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRegister_NotificationNeedsSignature(t *testing.T) {
	app := newApp(t)

	req := httptest.NewRequest(http.MethodPost, "/api/midtrans/notification", nil)
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
