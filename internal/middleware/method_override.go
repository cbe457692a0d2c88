package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// MethodOverrideField is the query or form key carrying the intended HTTP method.
const MethodOverrideField = "_method"

// MethodOverride lets HTML forms, which can only POST, reach PUT and DELETE routes.
// It must be registered before any route so the rewritten method is used for matching.
func MethodOverride() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Method() != fiber.MethodPost {
			return c.Next()
		}
		override := c.Query(MethodOverrideField)
		if override == "" {
			override = c.FormValue(MethodOverrideField)
		}
		switch method := strings.ToUpper(override); method {
		case fiber.MethodPut, fiber.MethodPatch, fiber.MethodDelete:
			c.Method(method)
		}
		return c.Next()
	}
}
