package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/example/tiketa/internal/handlers"
	"github.com/example/tiketa/internal/metrics"
	"github.com/example/tiketa/internal/middleware"
	"github.com/example/tiketa/internal/session"
)

// Deps carries everything the HTTP surface needs.
type Deps struct {
	Midtrans     *handlers.MidtransHandler
	Notify       *handlers.NotifyHandler
	Registration *handlers.RegistrationHandler
	Tickets      *handlers.TicketHandler
	Admin        *handlers.AdminHandler
	Sessions     *session.Provider
	Metrics      *metrics.Metrics
	ServerKey    string
}

// Register wires all application routes.
func Register(app *fiber.App, deps Deps) {
	app.Use(middleware.Metrics(deps.Metrics))

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"ok": true})
	})
	if deps.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(deps.Metrics.Handler()))
	}

	api := app.Group("/api")

	midtrans := api.Group("/midtrans")
	midtrans.Post("/snap", deps.Midtrans.Snap)
	midtrans.Post("/va", deps.Midtrans.VA)
	midtrans.Get("/status", deps.Midtrans.Status)
	midtrans.Post("/finalize", deps.Midtrans.Finalize)
	midtrans.Post("/notification", middleware.MidtransSignature(deps.ServerKey), deps.Midtrans.Notification)

	api.Post("/notify-wa", deps.Notify.SendWA)

	api.Get("/events/:event/tickets/select", deps.Registration.SelectTier)
	api.Post("/registrations", deps.Registration.Submit)

	checkout := api.Group("/checkout/:order_id")
	checkout.Get("/", deps.Registration.Status)
	checkout.Post("/outcome", deps.Registration.Outcome)
	checkout.Post("/reopen", deps.Registration.Reopen)
	checkout.Post("/teardown", deps.Registration.Teardown)

	tickets := api.Group("/tickets")
	tickets.Get("/search", deps.Tickets.Search)
	tickets.Get("/:id", deps.Tickets.Get)

	payment := app.Group("/payment")
	payment.Get("/success", deps.Registration.SuccessPage)
	payment.Get("/pending", deps.Registration.PendingPage)

	// Admin routes
	admin := app.Group("/admin", middleware.AdminGate(deps.Sessions))
	admin.Get("/login", deps.Admin.LoginPage)
	admin.Post("/login", deps.Admin.Login)
	admin.Post("/logout", deps.Admin.Logout)
	admin.Get("/", deps.Admin.Dashboard)
	admin.Get("/events/check-in", deps.Admin.CheckInEvents)
	admin.Post("/check-in", deps.Admin.CheckIn)
	admin.Get("/checkout-sessions", deps.Admin.CheckoutSessions)
}
