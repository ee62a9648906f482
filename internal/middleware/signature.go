package middleware

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/example/tiketa/internal/services"
)

type notificationSignature struct {
	OrderID      string `json:"order_id"`
	StatusCode   string `json:"status_code"`
	GrossAmount  string `json:"gross_amount"`
	SignatureKey string `json:"signature_key"`
}

// NotificationSignature is sha512(order_id + status_code + gross_amount + server key), hex encoded.
func NotificationSignature(orderID, statusCode, grossAmount, serverKey string) string {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(sum[:])
}

// MidtransSignature rejects provider notifications whose signature does not verify.
func MidtransSignature(serverKey string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if strings.TrimSpace(serverKey) == "" {
			return &services.ConfigurationError{Setting: "MIDTRANS_SERVER_KEY"}
		}

		var body notificationSignature
		if err := json.Unmarshal(c.Body(), &body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid notification body")
		}
		if body.OrderID == "" || body.SignatureKey == "" {
			return fiber.NewError(fiber.StatusBadRequest, "missing order_id or signature_key")
		}

		expected := NotificationSignature(body.OrderID, body.StatusCode, body.GrossAmount, serverKey)
		if subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToLower(body.SignatureKey))) != 1 {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid signature")
		}

		return c.Next()
	}
}
