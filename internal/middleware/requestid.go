package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-ID"

// LocalsRequestID is the locals key the audit log reads the request
// identifier from.
const LocalsRequestID = "request_id"

// RequestID assigns each request a stable identifier, honoring one the
// client already sent, and echoes it on the response.
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqID := c.Get(requestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Set(requestIDHeader, reqID)
		c.Locals(LocalsRequestID, reqID)

		return c.Next()
	}
}
