package middleware

import (
	"errors"
	"strings"

	"github.com/dgrijalva/jwt-go"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Locals set by AuthRequired for the handlers behind it.
const (
	LocalsTokenUserID = "tokenUserID"
	LocalsTokenEmail  = "tokenEmail"
)

var (
	// ErrNoCredentials is returned when the request carries no Authorization header.
	ErrNoCredentials = errors.New("missing bearer token")
	// ErrWrongScheme is returned for any Authorization scheme other than Bearer.
	ErrWrongScheme = errors.New("authorization scheme must be Bearer")
)

// TokenValidator verifies an API token and returns its claims.
type TokenValidator interface {
	ValidateToken(tokenString string) (jwt.MapClaims, error)
}

// BearerToken extracts the token from an Authorization header value.
// The scheme is matched case-insensitively.
func BearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", ErrNoCredentials
	}
	scheme, token, ok := strings.Cut(header, " ")
	token = strings.TrimSpace(token)
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", ErrWrongScheme
	}
	return token, nil
}

// AuthRequired rejects API requests without a valid bearer token with 401.
// The token subject is exposed through LocalsTokenUserID and LocalsTokenEmail.
func AuthRequired(tokens TokenValidator, log *zap.Logger) fiber.Handler {
	unauthorized := func(c *fiber.Ctx, msg string) error {
		c.Set(fiber.HeaderWWWAuthenticate, `Bearer realm="api"`)
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": msg})
	}

	return func(c *fiber.Ctx) error {
		token, err := BearerToken(c.Get(fiber.HeaderAuthorization))
		switch {
		case errors.Is(err, ErrNoCredentials):
			return unauthorized(c, "A bearer token is required")
		case err != nil:
			return unauthorized(c, "Send the token as 'Authorization: Bearer <token>'")
		}

		claims, err := tokens.ValidateToken(token)
		if err != nil {
			log.Debug("rejected API token", zap.String("path", c.Path()), zap.Error(err))
			return unauthorized(c, "The token is invalid or has expired")
		}
		userID, _ := claims["user_id"].(string)
		if userID == "" {
			log.Debug("API token without subject", zap.String("path", c.Path()))
			return unauthorized(c, "The token is invalid or has expired")
		}

		c.Locals(LocalsTokenUserID, userID)
		c.Locals(LocalsTokenEmail, claims["email"])
		return c.Next()
	}
}
