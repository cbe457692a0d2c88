package pipeline

import (
	"strings"

	"cuisine/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// FlashSink persists queued messages so the page after a redirect can show them.
type FlashSink interface {
	Keep(c *fiber.Ctx, msgs []Message) error
}

// ParseForm copies the named submitted fields into the Context form.
// Values are cloned because Fiber reuses request buffers after the handler returns.
func ParseForm(fields ...string) Stage {
	return func(pc *Context) Outcome {
		for _, f := range fields {
			pc.Form[f] = strings.Clone(pc.Fiber.FormValue(f))
		}
		return Continue()
	}
}

// Validate runs v over the form. On failure it sets Skip, queues one combined error
// message and points the redirect back at origin. It always continues.
func Validate(v *validation.Validator, origin func(*Context) string) Stage {
	return func(pc *Context) Outcome {
		failures := v.Check(pc.Form)
		if len(failures) == 0 {
			return Continue()
		}
		pc.Skip = true
		pc.Error(validation.Join(failures))
		pc.Redirect(origin(pc))
		return Continue()
	}
}

// To returns an origin resolver for a fixed path.
func To(path string) func(*Context) string {
	return func(*Context) string { return path }
}

// RedirectView ends the chain with a redirect when one is pending, handing queued
// messages to sink first. Without a pending redirect it continues.
func RedirectView(sink FlashSink) Stage {
	return func(pc *Context) Outcome {
		if pc.RedirectPath == "" {
			return Continue()
		}
		return Terminate(func(pc *Context) error {
			if sink != nil && len(pc.Messages) > 0 {
				if err := sink.Keep(pc.Fiber, pc.Messages); err != nil {
					return err
				}
			}
			return pc.Fiber.Redirect(pc.RedirectPath)
		})
	}
}
