package handlers

import (
	"errors"
	"fmt"
	"strings"

	"cuisine/internal/models"
	"cuisine/internal/pipeline"
	"cuisine/internal/repositories"
	"cuisine/internal/services"
	"cuisine/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// fieldSubscriber names the enrollment form field.
const fieldSubscriber = "subscriberId"

const msgDuplicateCourse = "A course with the given title already exists"

var courseRules = validation.New(validation.Title, validation.MaxStudents, validation.Cost)

// CourseHandler handles the course catalogue and enrollment.
type CourseHandler struct {
	Shared
	courses *services.CourseService
}

// NewCourseHandler creates a new CourseHandler.
func NewCourseHandler(shared Shared, courses *services.CourseService) *CourseHandler {
	return &CourseHandler{
		Shared:  shared,
		courses: courses,
	}
}

// RegisterRoutes registers the course pages.
func (h *CourseHandler) RegisterRoutes(router fiber.Router) {
	courses := router.Group("/courses")
	courses.Get("/", h.route(h.index, Render("courses/index")))
	courses.Get("/new", h.route(Render("courses/new")))
	courses.Post("/", h.route(
		pipeline.ParseForm(validation.FieldTitle, validation.FieldDescription,
			validation.FieldMaxStudents, validation.FieldCost),
		pipeline.Validate(courseRules, pipeline.To("/courses/new")),
		h.create,
		h.redirect(),
	))
	courses.Get("/:id", h.route(h.load, h.redirect(), Render("courses/show")))
	courses.Get("/:id/edit", h.route(h.load, h.redirect(), Render("courses/edit")))
	courses.Put("/:id", h.route(
		pipeline.ParseForm(validation.FieldTitle, validation.FieldDescription,
			validation.FieldMaxStudents, validation.FieldCost),
		pipeline.Validate(courseRules, courseEditPath),
		h.update,
		h.redirect(),
	))
	courses.Delete("/:id", h.route(h.remove, h.redirect()))
	courses.Post("/:id/enroll", h.route(pipeline.ParseForm(fieldSubscriber), h.enroll, h.redirect()))
}

// RegisterAPIRoutes registers the JSON routes behind guard.
func (h *CourseHandler) RegisterAPIRoutes(router fiber.Router, guard fiber.Handler) {
	router.Get("/courses", guard, h.HandleAPIList)
}

func coursePath(id string) string { return "/courses/" + id }

func courseEditPath(pc *pipeline.Context) string { return coursePath(pc.Param("id")) + "/edit" }

func courseDetails(f validation.Form) models.CourseDetails {
	return models.CourseDetails{
		Title:       f[validation.FieldTitle],
		Description: strings.TrimSpace(f[validation.FieldDescription]),
		MaxStudents: f.Int(validation.FieldMaxStudents),
		Cost:        f.Float(validation.FieldCost),
	}
}

func (h *CourseHandler) index(pc *pipeline.Context) pipeline.Outcome {
	ctx, cancel := h.store(pc)
	defer cancel()

	courses, err := h.courses.List(ctx)
	if err != nil {
		return pipeline.Fail(err)
	}
	pc.Set("courses", courses)
	return pipeline.Continue()
}

func (h *CourseHandler) create(pc *pipeline.Context) pipeline.Outcome {
	if pc.Skip {
		return pipeline.Continue()
	}

	course := &models.Course{}
	courseDetails(pc.Form).Apply(course)

	ctx, cancel := h.store(pc)
	defer cancel()

	if err := h.courses.Create(ctx, course); err != nil {
		if !recoverable(err) {
			return pipeline.Fail(err)
		}
		pc.Error(fmt.Sprintf("Failed to create course because: %s.", reason(err, msgDuplicateCourse)))
		pc.Redirect("/courses/new")
		return pipeline.Continue()
	}

	pc.Result = course
	pc.Success(fmt.Sprintf("%s created successfully!", course.Title))
	pc.Redirect(coursePath(course.ID))
	return pipeline.Continue()
}

func (h *CourseHandler) load(pc *pipeline.Context) pipeline.Outcome {
	ctx, cancel := h.store(pc)
	defer cancel()

	course, err := h.courses.FindByID(ctx, pc.Param("id"))
	if err != nil {
		if !errors.Is(err, repositories.ErrNotFound) {
			return pipeline.Fail(err)
		}
		pc.Error("Course not found.")
		pc.Redirect("/courses")
		return pipeline.Continue()
	}
	pc.Result = course
	pc.Set("course", course)
	pc.Set("full", course.Full())
	return pipeline.Continue()
}

// update applies the course whitelist: title, description, max students and cost.
func (h *CourseHandler) update(pc *pipeline.Context) pipeline.Outcome {
	if pc.Skip {
		return pipeline.Continue()
	}

	ctx, cancel := h.store(pc)
	defer cancel()

	course, err := h.courses.Update(ctx, pc.Param("id"), courseDetails(pc.Form))
	switch {
	case err == nil:
		pc.Result = course
		pc.Success(fmt.Sprintf("%s updated successfully!", course.Title))
		pc.Redirect(coursePath(course.ID))
	case errors.Is(err, repositories.ErrNotFound):
		pc.Error("Course not found.")
		pc.Redirect("/courses")
	case recoverable(err):
		pc.Error(fmt.Sprintf("Failed to update course because: %s.", reason(err, msgDuplicateCourse)))
		pc.Redirect(courseEditPath(pc))
	default:
		return pipeline.Fail(err)
	}
	return pipeline.Continue()
}

func (h *CourseHandler) remove(pc *pipeline.Context) pipeline.Outcome {
	ctx, cancel := h.store(pc)
	defer cancel()

	if err := h.courses.Delete(ctx, pc.Param("id")); err != nil {
		if !errors.Is(err, repositories.ErrNotFound) {
			return pipeline.Fail(err)
		}
		pc.Error("Course not found.")
		pc.Redirect("/courses")
		return pipeline.Continue()
	}
	pc.Success("Course deleted successfully!")
	pc.Redirect("/courses")
	return pipeline.Continue()
}

func (h *CourseHandler) enroll(pc *pipeline.Context) pipeline.Outcome {
	id := pc.Param("id")
	subscriberID := strings.TrimSpace(pc.Form[fieldSubscriber])
	if subscriberID == "" {
		pc.Error("Failed to enroll because: A subscriber must be selected.")
		pc.Redirect(coursePath(id))
		return pipeline.Continue()
	}

	ctx, cancel := h.store(pc)
	defer cancel()

	course, err := h.courses.Enroll(ctx, id, subscriberID)
	if err != nil {
		if !recoverable(err) {
			return pipeline.Fail(err)
		}
		pc.Error(fmt.Sprintf("Failed to enroll because: %s.", reason(err, "Subscriber is already enrolled")))
		pc.Redirect(coursePath(id))
		return pipeline.Continue()
	}

	pc.Result = course
	pc.Success(fmt.Sprintf("Enrolled in %s!", course.Title))
	pc.Redirect(coursePath(course.ID))
	return pipeline.Continue()
}

// HandleAPIList returns every course as JSON for token holders.
func (h *CourseHandler) HandleAPIList(c *fiber.Ctx) error {
	pc := pipeline.NewContext(c)
	ctx, cancel := h.store(pc)
	defer cancel()

	courses, err := h.courses.List(ctx)
	if err != nil {
		return h.fail(pc, err)
	}
	return c.JSON(fiber.Map{
		"data": courses,
	})
}
