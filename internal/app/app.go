// Package app assembles the Fiber application from its services.
package app

import (
	"context"
	"errors"
	"time"

	"cuisine/internal/config"
	"cuisine/internal/handlers"
	"cuisine/internal/middleware"
	"cuisine/internal/services"
	"cuisine/internal/session"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
)

// NotFoundMessage is shown for unknown routes.
const NotFoundMessage = "The page does not exist!"

// Probe reports whether one backing service is reachable.
type Probe struct {
	Name  string
	Check func(ctx context.Context) error
}

// Deps are the collaborators the routes are built from.
type Deps struct {
	Config      config.Config
	Log         *zap.Logger
	Sessions    *session.Manager
	Users       *services.UserService
	Auth        *services.AuthService
	Subscribers *services.SubscriberService
	Courses     *services.CourseService
	Probes      []Probe
}

// New builds the application with every route registered.
func New(d Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "cuisine",
		ErrorHandler:          errorHandler(d.Log),
		DisableStartupMessage: !d.Config.Development(),
	})

	// method override must precede every route so the rewritten method is matched
	app.Use(middleware.MethodOverride())
	app.Use(recover.New())
	app.Use(logger.New())

	app.Get("/health", health(d.Probes, d.Config.StoreTimeout))

	shared := handlers.Shared{
		Sessions:     d.Sessions,
		Log:          d.Log,
		StoreTimeout: d.Config.StoreTimeout,
	}
	userHandler := handlers.NewUserHandler(shared, d.Users)
	authHandler := handlers.NewAuthHandler(shared, d.Users, d.Users, d.Auth, d.Config.AuthMode)
	subscriberHandler := handlers.NewSubscriberHandler(shared, d.Subscribers)
	courseHandler := handlers.NewCourseHandler(shared, d.Courses)

	// --- API Routes ---
	apiV1 := app.Group("/api/v1")
	authHandler.RegisterAPIRoutes(apiV1)
	courseHandler.RegisterAPIRoutes(apiV1, middleware.AuthRequired(d.Auth, d.Log))

	// --- Site Routes ---
	app.Use(d.Sessions.Middleware(d.Log), userHandler.LoadCurrentUser())
	app.Get("/", shared.Page("index"))
	authHandler.RegisterRoutes(app)
	userHandler.RegisterRoutes(app)
	subscriberHandler.RegisterRoutes(app)
	courseHandler.RegisterRoutes(app)

	return app
}

func health(probes []Probe, timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		status := fiber.StatusOK
		checks := make(fiber.Map, len(probes))
		for _, p := range probes {
			ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
			err := p.Check(ctx)
			cancel()
			if err != nil {
				status = fiber.StatusServiceUnavailable
				checks[p.Name] = err.Error()
				continue
			}
			checks[p.Name] = "connected"
		}

		state := "healthy"
		if status != fiber.StatusOK {
			state = "unhealthy"
		}
		return c.Status(status).JSON(fiber.Map{
			"status": state,
			"time":   time.Now().Format(time.RFC3339),
			"checks": checks,
		})
	}
}

// errorHandler renders failures that escaped a pipeline, including panics caught by recover.
func errorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		message := handlers.ErrorMessage

		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
			if code == fiber.StatusNotFound {
				message = NotFoundMessage
			}
		}
		if code >= fiber.StatusInternalServerError {
			log.Error("unhandled error",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.Error(err),
			)
		}
		return c.Status(code).JSON(fiber.Map{
			"view":    "error",
			"message": message,
		})
	}
}
