package handlers

import (
	"context"
	"errors"
	"fmt"

	"cuisine/internal/models"
	"cuisine/internal/pipeline"
	"cuisine/internal/repositories"
	"cuisine/internal/session"
	"cuisine/internal/validation"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// CredentialStore persists users and verifies their passwords.
type CredentialStore interface {
	Register(ctx context.Context, user *models.User, password string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
	FindByIDAndUpdate(ctx context.Context, id string, profile models.UserProfile) (*models.User, error)
	FindByIDAndRemove(ctx context.Context, id string) error
	CompareCredential(ctx context.Context, user *models.User, password string) (bool, error)
}

const msgDuplicateUser = "A user with the given email is already registered"

var (
	registrationRules = validation.New(validation.FullName, validation.Email, validation.ZipCode, validation.Password)
	profileRules      = validation.New(validation.FullName, validation.ZipCode)
)

// UserHandler handles account pages and the user CRUD routes.
type UserHandler struct {
	Shared
	users CredentialStore
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(shared Shared, users CredentialStore) *UserHandler {
	return &UserHandler{
		Shared: shared,
		users:  users,
	}
}

// RegisterRoutes registers the user routes. Login and logout live on AuthHandler, whose
// routes must be registered first so "/users/login" is never matched as an id.
func (h *UserHandler) RegisterRoutes(router fiber.Router) {
	users := router.Group("/users")
	users.Get("/", h.route(h.index, Render("users/index")))
	users.Get("/new", h.route(Render("users/new")))
	users.Post("/", h.route(
		pipeline.ParseForm(validation.FieldFirst, validation.FieldLast, validation.FieldEmail,
			validation.FieldZipCode, validation.FieldPassword),
		pipeline.Validate(registrationRules, pipeline.To("/users/new")),
		h.create,
		h.redirect(),
	))
	users.Get("/:id", h.route(h.load, h.redirect(), Render("users/show")))
	users.Get("/:id/edit", h.route(h.load, h.redirect(), Render("users/edit")))

	update := h.route(
		pipeline.ParseForm(validation.FieldFirst, validation.FieldLast, validation.FieldZipCode),
		pipeline.Validate(profileRules, editPath),
		h.update,
		h.redirect(),
	)
	users.Put("/:id", update)
	users.Post("/:id/edit", update)
	users.Delete("/:id", h.route(h.remove, h.redirect()))
}

func userPath(id string) string { return "/users/" + id }

func editPath(pc *pipeline.Context) string { return userPath(pc.Param("id")) + "/edit" }

func (h *UserHandler) index(pc *pipeline.Context) pipeline.Outcome {
	ctx, cancel := h.store(pc)
	defer cancel()

	users, err := h.users.List(ctx)
	if err != nil {
		return pipeline.Fail(err)
	}
	pc.Set("users", users)
	return pipeline.Continue()
}

// create registers the candidate user built from the validated form.
func (h *UserHandler) create(pc *pipeline.Context) pipeline.Outcome {
	if pc.Skip {
		return pipeline.Continue()
	}

	candidate := &models.User{
		FirstName: pc.Form[validation.FieldFirst],
		LastName:  pc.Form[validation.FieldLast],
		Email:     pc.Form[validation.FieldEmail],
		ZipCode:   pc.Form.Int(validation.FieldZipCode),
	}

	ctx, cancel := h.store(pc)
	defer cancel()

	user, err := h.users.Register(ctx, candidate, pc.Form[validation.FieldPassword])
	if err != nil {
		if !recoverable(err) {
			return pipeline.Fail(err)
		}
		h.Log.Info("user registration rejected", zap.String("email", candidate.Email), zap.Error(err))
		pc.Error(fmt.Sprintf("Failed to create user account because: %s.", reason(err, msgDuplicateUser)))
		pc.Redirect("/users/new")
		return pipeline.Continue()
	}

	pc.Result = user
	pc.Success(fmt.Sprintf("%s's account created successfully!", user.FullName()))
	pc.Redirect("/users/login")
	return pipeline.Continue()
}

// load finds the user named by the route for the show and edit views.
func (h *UserHandler) load(pc *pipeline.Context) pipeline.Outcome {
	ctx, cancel := h.store(pc)
	defer cancel()

	user, err := h.users.FindByID(ctx, pc.Param("id"))
	if err != nil {
		if !errors.Is(err, repositories.ErrNotFound) {
			return pipeline.Fail(err)
		}
		pc.Error("User account not found.")
		pc.Redirect("/users")
		return pipeline.Continue()
	}
	pc.Result = user
	pc.Set("user", user)
	return pipeline.Continue()
}

// update applies the profile whitelist: first name, last name and zip code.
// Email and password are never read from the form here.
func (h *UserHandler) update(pc *pipeline.Context) pipeline.Outcome {
	if pc.Skip {
		return pipeline.Continue()
	}

	id := pc.Param("id")
	profile := models.UserProfile{
		FirstName: pc.Form[validation.FieldFirst],
		LastName:  pc.Form[validation.FieldLast],
		ZipCode:   pc.Form.Int(validation.FieldZipCode),
	}

	ctx, cancel := h.store(pc)
	defer cancel()

	user, err := h.users.FindByIDAndUpdate(ctx, id, profile)
	switch {
	case err == nil:
		pc.Result = user
		pc.Success(fmt.Sprintf("%s's profile updated successfully!", user.FullName()))
		pc.Redirect(userPath(user.ID))
	case errors.Is(err, repositories.ErrNotFound):
		pc.Error("User account not found.")
		pc.Redirect("/users")
	case recoverable(err):
		pc.Error(fmt.Sprintf("Failed to update user account because: %s.", reason(err, msgDuplicateUser)))
		pc.Redirect(editPath(pc))
	default:
		return pipeline.Fail(err)
	}
	return pipeline.Continue()
}

// remove deletes the account and ends the session when it was the visitor's own.
func (h *UserHandler) remove(pc *pipeline.Context) pipeline.Outcome {
	id := pc.Param("id")

	ctx, cancel := h.store(pc)
	defer cancel()

	if err := h.users.FindByIDAndRemove(ctx, id); err != nil {
		if !errors.Is(err, repositories.ErrNotFound) {
			return pipeline.Fail(err)
		}
		pc.Error("User account not found.")
		pc.Redirect("/users")
		return pipeline.Continue()
	}

	if current, _ := pc.Fiber.Locals(session.LocalsCurrentUserID).(string); current == id {
		if err := h.Sessions.Clear(pc.Fiber); err != nil {
			return pipeline.Fail(err)
		}
	}
	pc.Success("User account deleted successfully!")
	pc.Redirect("/users")
	return pipeline.Continue()
}

// LoadCurrentUser resolves the session's user id into the currentUser local.
// A session pointing at a deleted account is treated as anonymous.
func (h *UserHandler) LoadCurrentUser() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, _ := c.Locals(session.LocalsCurrentUserID).(string)
		if id == "" {
			return c.Next()
		}

		ctx, cancel := context.WithTimeout(c.UserContext(), h.StoreTimeout)
		user, err := h.users.FindByID(ctx, id)
		cancel()
		switch {
		case err == nil:
			c.Locals(LocalsCurrentUser, user)
		case errors.Is(err, repositories.ErrNotFound):
			c.Locals(session.LocalsCurrentUserID, "")
			c.Locals(session.LocalsLoggedIn, false)
		default:
			h.Log.Error("current user lookup failed", zap.String("user_id", id), zap.Error(err))
			return err
		}
		return c.Next()
	}
}
