package handlers

import (
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/example/tiketa/internal/checkout"
	"github.com/example/tiketa/internal/registration"
	"github.com/example/tiketa/internal/services"
)

// ErrorHandler renders every error as {ok:false, error}. No documented route lets an
// error escape as a framework page.
func ErrorHandler(c *fiber.Ctx, err error) error {
	status, body := errorBody(err)
	return c.Status(status).JSON(body)
}

func errorBody(err error) (int, fiber.Map) {
	body := fiber.Map{"ok": false, "error": err.Error()}

	var fiberErr *fiber.Error
	var fieldErr *registration.FieldError
	var loadErr *checkout.LoadError
	var upstreamErr *services.UpstreamError

	switch {
	case errors.As(err, &fiberErr):
		return fiberErr.Code, body
	case errors.As(err, &fieldErr):
		body["fields"] = fieldErr.Fields
		return fiber.StatusBadRequest, body
	case errors.As(err, &loadErr):
		body["error"] = "Gagal memuat halaman pembayaran. Silakan coba lagi."
		return fiber.StatusBadGateway, body
	case errors.Is(err, checkout.ErrSessionOpen), errors.Is(err, registration.ErrCannotReopen):
		return fiber.StatusConflict, body
	case errors.Is(err, registration.ErrUnknownOrder),
		errors.Is(err, registration.ErrTierNotFound),
		errors.Is(err, registration.ErrNoTier):
		return fiber.StatusNotFound, body
	case errors.As(err, &upstreamErr):
		if json.Valid(upstreamErr.Payload) {
			body["details"] = json.RawMessage(upstreamErr.Payload)
		}
	}

	return services.StatusCode(err), body
}

func ok(c *fiber.Ctx, fields fiber.Map) error {
	fields["ok"] = true
	return c.JSON(fields)
}
