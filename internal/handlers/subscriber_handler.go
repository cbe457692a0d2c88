package handlers

import (
	"errors"
	"fmt"

	"cuisine/internal/models"
	"cuisine/internal/pipeline"
	"cuisine/internal/repositories"
	"cuisine/internal/services"
	"cuisine/internal/validation"

	"github.com/gofiber/fiber/v2"
)

var subscriberRules = validation.New(validation.SubscriberName, validation.Email, validation.ZipCode)

// SubscriberHandler handles newsletter signups. Subscribers cannot be edited or removed here.
type SubscriberHandler struct {
	Shared
	subscribers *services.SubscriberService
}

// NewSubscriberHandler creates a new SubscriberHandler.
func NewSubscriberHandler(shared Shared, subscribers *services.SubscriberService) *SubscriberHandler {
	return &SubscriberHandler{
		Shared:      shared,
		subscribers: subscribers,
	}
}

// RegisterRoutes registers the subscriber routes.
func (h *SubscriberHandler) RegisterRoutes(router fiber.Router) {
	subscribers := router.Group("/subscribers")
	subscribers.Get("/", h.route(h.index, Render("subscribers/index")))
	subscribers.Get("/new", h.route(Render("subscribers/new")))
	subscribers.Post("/", h.route(
		pipeline.ParseForm(validation.FieldName, validation.FieldEmail, validation.FieldZipCode),
		pipeline.Validate(subscriberRules, pipeline.To("/subscribers/new")),
		h.create,
		h.redirect(),
	))
	subscribers.Get("/:id", h.route(h.show, h.redirect(), Render("subscribers/show")))
}

func (h *SubscriberHandler) index(pc *pipeline.Context) pipeline.Outcome {
	ctx, cancel := h.store(pc)
	defer cancel()

	subscribers, err := h.subscribers.List(ctx)
	if err != nil {
		return pipeline.Fail(err)
	}
	pc.Set("subscribers", subscribers)
	return pipeline.Continue()
}

func (h *SubscriberHandler) create(pc *pipeline.Context) pipeline.Outcome {
	if pc.Skip {
		return pipeline.Continue()
	}

	subscriber := &models.Subscriber{
		Name:    pc.Form[validation.FieldName],
		Email:   pc.Form[validation.FieldEmail],
		ZipCode: pc.Form.Int(validation.FieldZipCode),
	}

	ctx, cancel := h.store(pc)
	defer cancel()

	if err := h.subscribers.Create(ctx, subscriber); err != nil {
		if !recoverable(err) {
			return pipeline.Fail(err)
		}
		pc.Error(fmt.Sprintf("Failed to subscribe because: %s.",
			reason(err, "A subscriber with the given email already exists")))
		pc.Redirect("/subscribers/new")
		return pipeline.Continue()
	}

	pc.Result = subscriber
	pc.Success(fmt.Sprintf("%s subscribed successfully!", subscriber.Name))
	pc.Redirect("/subscribers")
	return pipeline.Continue()
}

// show loads the subscriber and the other subscribers in the same zip code.
func (h *SubscriberHandler) show(pc *pipeline.Context) pipeline.Outcome {
	ctx, cancel := h.store(pc)
	defer cancel()

	subscriber, err := h.subscribers.FindByID(ctx, pc.Param("id"))
	if err != nil {
		if !errors.Is(err, repositories.ErrNotFound) {
			return pipeline.Fail(err)
		}
		pc.Error("Subscriber not found.")
		pc.Redirect("/subscribers")
		return pipeline.Continue()
	}

	local, err := h.subscribers.FindLocal(ctx, subscriber)
	if err != nil {
		return pipeline.Fail(err)
	}
	pc.Result = subscriber
	pc.Set("subscriber", subscriber)
	pc.Set("info", subscriber.Info())
	pc.Set("localSubscribers", local)
	return pipeline.Continue()
}
