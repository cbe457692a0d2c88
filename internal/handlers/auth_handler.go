package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cuisine/internal/models"
	"cuisine/internal/pipeline"
	"cuisine/internal/repositories"
	"cuisine/internal/services"
	"cuisine/internal/validation"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Authenticator resolves an email/password pair to a user in one call.
type Authenticator interface {
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
}

// TokenIssuer issues API tokens for valid credentials.
type TokenIssuer interface {
	IssueToken(ctx context.Context, email, password string) (string, error)
}

// Login modes.
const (
	LoginManual    = "manual"
	LoginDelegated = "delegated"
)

// AuthHandler handles login, logout and API token issuance.
type AuthHandler struct {
	Shared
	users    CredentialStore
	delegate Authenticator
	tokens   TokenIssuer
	mode     string
	validate *validator.Validate
}

// NewAuthHandler creates a new AuthHandler. delegate is only used in LoginDelegated mode.
func NewAuthHandler(shared Shared, users CredentialStore, delegate Authenticator, tokens TokenIssuer, mode string) *AuthHandler {
	if mode != LoginDelegated {
		mode = LoginManual
	}
	return &AuthHandler{
		Shared:   shared,
		users:    users,
		delegate: delegate,
		tokens:   tokens,
		mode:     mode,
		validate: validator.New(),
	}
}

// RegisterRoutes registers the session routes under /users.
func (h *AuthHandler) RegisterRoutes(router fiber.Router) {
	users := router.Group("/users")
	users.Get("/login", h.route(Render("users/login")))

	login := h.authenticate
	if h.mode == LoginDelegated {
		login = h.authenticateDelegated
	}
	users.Post("/login", h.route(
		pipeline.ParseForm(validation.FieldEmail, validation.FieldPassword),
		login,
		h.redirect(),
	))

	logout := h.route(h.logout, h.redirect())
	users.Get("/logout", logout)
	users.Post("/logout", logout)
}

// RegisterAPIRoutes registers the token endpoint.
func (h *AuthHandler) RegisterAPIRoutes(router fiber.Router) {
	router.Post("/token", h.HandleToken)
}

// authenticate is the manual login: look the user up, verify the password, then bind the session.
// Every branch returns only after the verifier has answered.
func (h *AuthHandler) authenticate(pc *pipeline.Context) pipeline.Outcome {
	ctx, cancel := h.store(pc)
	defer cancel()

	user, err := h.users.FindByEmail(ctx, pc.Form[validation.FieldEmail])
	if err != nil {
		if !errors.Is(err, repositories.ErrNotFound) {
			return pipeline.Fail(err)
		}
		pc.Error("Failed to log in user account: User account not found.")
		pc.Redirect("/users/login")
		return pipeline.Continue()
	}

	matched, err := h.users.CompareCredential(ctx, user, pc.Form[validation.FieldPassword])
	if err != nil {
		return pipeline.Fail(fmt.Errorf("verify credential for %s: %w", user.ID, err))
	}
	if !matched {
		h.Log.Info("login rejected", zap.String("user_id", user.ID))
		pc.Error("Failed to log in user account: Incorrect Password.")
		pc.Redirect("/users/login")
		return pipeline.Continue()
	}

	if err := h.Sessions.Establish(pc.Fiber, user.ID); err != nil {
		return pipeline.Fail(err)
	}
	pc.Result = user
	pc.Success(fmt.Sprintf("%s's logged in successfully!", user.FullName()))
	pc.Redirect(userPath(user.ID))
	return pipeline.Continue()
}

// authenticateDelegated hands the credential check to the authenticator and only maps its verdict.
func (h *AuthHandler) authenticateDelegated(pc *pipeline.Context) pipeline.Outcome {
	ctx, cancel := h.store(pc)
	defer cancel()

	user, err := h.delegate.Authenticate(ctx, pc.Form[validation.FieldEmail], pc.Form[validation.FieldPassword])
	if err != nil {
		if !errors.Is(err, services.ErrInvalidCredentials) {
			return pipeline.Fail(err)
		}
		pc.Error("Failed to login.")
		pc.Redirect("/users/login")
		return pipeline.Continue()
	}

	if err := h.Sessions.Establish(pc.Fiber, user.ID); err != nil {
		return pipeline.Fail(err)
	}
	pc.Result = user
	pc.Success("Logged in!")
	pc.Redirect("/")
	return pipeline.Continue()
}

// logout always succeeds for an anonymous visitor.
func (h *AuthHandler) logout(pc *pipeline.Context) pipeline.Outcome {
	if err := h.Sessions.Clear(pc.Fiber); err != nil {
		return pipeline.Fail(err)
	}
	pc.Success("You have been logged out!")
	pc.Redirect("/")
	return pipeline.Continue()
}

// TokenRequest represents the request body for the token endpoint.
type TokenRequest struct {
	Email    string `json:"email" form:"email" validate:"required,email"`
	Password string `json:"password" form:"password" validate:"required"`
}

// HandleToken authenticates the posted credentials and issues a JWT.
func (h *AuthHandler) HandleToken(c *fiber.Ctx) error {
	var req TokenRequest
	if err := c.BodyParser(&req); err != nil {
		h.Log.Debug("error parsing token request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
		})
	}
	req.Email = strings.TrimSpace(req.Email)

	if err := h.validate.Struct(req); err != nil {
		var validationErrors validator.ValidationErrors
		errorMessages := make(map[string]string)
		if errors.As(err, &validationErrors) {
			for _, e := range validationErrors {
				errorMessages[e.Field()] = fmt.Sprintf("Field '%s' failed on the '%s' tag", e.Field(), e.Tag())
			}
		}
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Validation failed",
			"errors":  errorMessages,
		})
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), h.StoreTimeout)
	defer cancel()

	token, err := h.tokens.IssueToken(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Authentication failed",
			})
		}
		h.Log.Error("token issuance failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not issue token",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Login successful",
		"token":   token,
	})
}
