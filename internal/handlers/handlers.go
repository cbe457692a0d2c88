// Package handlers assembles request pipelines for every route of the site.
//
// Mutating routes follow one shape: parse the form, validate it, run a single store
// operation, then redirect with the queued flash messages. Read routes load their
// records into the pipeline context and render a view.
package handlers

import (
	"context"
	"errors"
	"strings"
	"time"

	"cuisine/internal/models"
	"cuisine/internal/pipeline"
	"cuisine/internal/repositories"
	"cuisine/internal/services"
	"cuisine/internal/session"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// LocalsCurrentUser holds the *models.User of the logged-in visitor, or nil.
const LocalsCurrentUser = "currentUser"

// ErrorMessage is shown on the failure page.
const ErrorMessage = "Sorry, our application is experiencing a problem!"

// SessionStore is the session capability the pipelines depend on.
type SessionStore interface {
	pipeline.FlashSink
	Establish(c *fiber.Ctx, userID string) error
	Clear(c *fiber.Ctx) error
}

// Shared carries the collaborators common to every handler.
type Shared struct {
	Sessions     SessionStore
	Log          *zap.Logger
	StoreTimeout time.Duration
}

// route builds a Fiber handler running stages with the shared error stage.
func (s Shared) route(stages ...pipeline.Stage) fiber.Handler {
	return pipeline.New(stages...).OnError(s.fail).Handler()
}

// Page serves a view that needs no records.
func (s Shared) Page(view string) fiber.Handler {
	return s.route(Render(view))
}

// redirect ends the chain when a stage queued a redirect.
func (s Shared) redirect() pipeline.Stage {
	return pipeline.RedirectView(s.Sessions)
}

// store bounds one store call so a hung backend cannot leave the response pending.
func (s Shared) store(pc *pipeline.Context) (context.Context, context.CancelFunc) {
	return pc.Deadline(s.StoreTimeout)
}

// fail is the error stage: unexpected failures are logged and rendered as a failure page.
func (s Shared) fail(pc *pipeline.Context, err error) error {
	if pc.Fiber == nil {
		return err
	}
	s.Log.Error("request failed",
		zap.String("method", pc.Fiber.Method()),
		zap.String("path", pc.Fiber.Path()),
		zap.Error(err),
	)
	return pc.Fiber.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"view":    "error",
		"message": ErrorMessage,
	})
}

// Render ends the chain by rendering view with the context values and the per-request locals.
func Render(view string) pipeline.Stage {
	return func(pc *pipeline.Context) pipeline.Outcome {
		return pipeline.Terminate(func(pc *pipeline.Context) error {
			body := fiber.Map{}
			for k, v := range pc.Values() {
				body[k] = v
			}

			flashes, _ := pc.Fiber.Locals(session.LocalsFlashMessages).([]pipeline.Message)
			flashes = append(append([]pipeline.Message{}, flashes...), pc.Messages...)
			loggedIn, _ := pc.Fiber.Locals(session.LocalsLoggedIn).(bool)

			body["view"] = view
			body["flashMessages"] = flashes
			body["loggedIn"] = loggedIn
			body["currentUser"] = pc.Fiber.Locals(LocalsCurrentUser)
			return pc.Fiber.JSON(body)
		})
	}
}

// recoverable reports whether err is a persistence failure the user can act on.
// Everything else is unexpected and goes to the error stage.
func recoverable(err error) bool {
	return errors.Is(err, repositories.ErrNotFound) ||
		errors.Is(err, repositories.ErrDuplicateKey) ||
		errors.Is(err, models.ErrInvalid) ||
		errors.Is(err, services.ErrCourseFull)
}

// reason turns a recoverable failure into the text shown to the user.
// duplicate names what a duplicate key means for the record at hand.
func reason(err error, duplicate string) string {
	var invalid *models.ValidationError
	switch {
	case errors.As(err, &invalid):
		return strings.Join(invalid.Problems, " and ")
	case errors.Is(err, repositories.ErrDuplicateKey):
		return duplicate
	case errors.Is(err, repositories.ErrNotFound):
		return "Record not found"
	case errors.Is(err, services.ErrCourseFull):
		return "Course is full"
	default:
		return "Submitted data is invalid"
	}
}
