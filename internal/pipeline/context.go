package pipeline

import (
	"context"
	"time"

	"cuisine/internal/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
)

// Severity classifies a flash message.
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
)

// Message is a one-time notice shown on the next rendered page.
type Message struct {
	Severity Severity `json:"severity"`
	Text     string   `json:"text"`
}

// Context is the state shared by the stages of one request.
// It is created per request and never shared between requests.
type Context struct {
	// Fiber is the underlying request. Stages that only touch state may run with it nil.
	Fiber *fiber.Ctx

	// Form holds submitted values after parsing and normalization.
	Form validation.Form

	// Skip is set by validation failures. Mutation stages must check it before writing.
	Skip bool

	// RedirectPath is the pending redirect target; empty means unset.
	RedirectPath string

	// Result is the entity produced by the last mutation, if any.
	Result any

	// Messages are flash messages queued during this request.
	Messages []Message

	values map[string]any
}

// NewContext creates the state for one request.
func NewContext(c *fiber.Ctx) *Context {
	return &Context{
		Fiber:  c,
		Form:   make(validation.Form),
		values: make(map[string]any),
	}
}

// Flash queues a message.
func (c *Context) Flash(severity Severity, text string) {
	c.Messages = append(c.Messages, Message{Severity: severity, Text: text})
}

// Success queues a success message.
func (c *Context) Success(text string) { c.Flash(SeveritySuccess, text) }

// Error queues an error message.
func (c *Context) Error(text string) { c.Flash(SeverityError, text) }

// Redirect records where the response should send the client.
func (c *Context) Redirect(path string) { c.RedirectPath = path }

// Set stores a view value.
func (c *Context) Set(key string, value any) { c.values[key] = value }

// Get returns a view value.
func (c *Context) Get(key string) (any, bool) {
	v, ok := c.values[key]
	return v, ok
}

// Values returns a copy of every view value.
func (c *Context) Values() map[string]any {
	out := make(map[string]any, len(c.values))
	for k, v := range c.values {
		out[k] = v
	}
	return out
}

// Param returns a route parameter, or "" when running without a request.
func (c *Context) Param(name string) string {
	if c.Fiber == nil {
		return ""
	}
	return utils.CopyString(c.Fiber.Params(name))
}

// Deadline derives a context for one blocking store call.
func (c *Context) Deadline(timeout time.Duration) (context.Context, context.CancelFunc) {
	parent := context.Background()
	if c.Fiber != nil {
		parent = c.Fiber.UserContext()
	}
	return context.WithTimeout(parent, timeout)
}
