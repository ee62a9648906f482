package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/example/tiketa/internal/metrics"
)

// Metrics records request count and latency per route pattern.
func Metrics(m *metrics.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}

		handler := c.Route().Path
		if handler == "" || handler == "/" {
			handler = c.Path()
		}
		m.ObserveRequest(handler, strconv.Itoa(status), float64(time.Since(start).Microseconds())/1000)
		return err
	}
}
