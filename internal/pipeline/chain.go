// Package pipeline runs an ordered list of request stages over a shared per-request Context.
//
// Each stage returns an Outcome: Continue hands off to the next stage, Terminate writes the
// final response, and Fail skips the remaining stages and invokes the chain's error stage.
package pipeline

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

// ErrNoResponse is passed to the error stage when every stage continued and none responded.
var ErrNoResponse = errors.New("pipeline finished without a response")

// Kind tags an Outcome.
type Kind uint8

const (
	KindContinue Kind = iota
	KindTerminate
	KindFail
)

func (k Kind) String() string {
	switch k {
	case KindContinue:
		return "continue"
	case KindTerminate:
		return "terminate"
	case KindFail:
		return "fail"
	default:
		return "unknown"
	}
}

// Responder writes the final response for a request.
type Responder func(*Context) error

// Outcome is the value every stage returns.
type Outcome struct {
	kind    Kind
	respond Responder
	err     error
}

// Continue hands control to the next stage.
func Continue() Outcome { return Outcome{kind: KindContinue} }

// Terminate ends the chain; the runner calls r to write the response.
func Terminate(r Responder) Outcome { return Outcome{kind: KindTerminate, respond: r} }

// Fail ends the chain and routes err to the error stage.
func Fail(err error) Outcome { return Outcome{kind: KindFail, err: err} }

// Kind reports which branch the stage took.
func (o Outcome) Kind() Kind { return o.kind }

// Err returns the failure carried by a Fail outcome.
func (o Outcome) Err() error { return o.err }

// Stage is one unit of request handling.
type Stage func(*Context) Outcome

// ErrorStage renders a response for a failed chain.
type ErrorStage func(*Context, error) error

// Chain is an immutable, ordered list of stages.
type Chain struct {
	stages  []Stage
	onError ErrorStage
}

// New builds a chain from stages. Without an error stage, failures are returned to Fiber.
func New(stages ...Stage) *Chain {
	return &Chain{stages: append([]Stage(nil), stages...)}
}

// OnError returns a copy of the chain using h as its error stage.
func (ch *Chain) OnError(h ErrorStage) *Chain {
	return &Chain{stages: ch.stages, onError: h}
}

// Then returns a copy of the chain with more stages appended.
func (ch *Chain) Then(stages ...Stage) *Chain {
	all := make([]Stage, 0, len(ch.stages)+len(stages))
	all = append(all, ch.stages...)
	all = append(all, stages...)
	return &Chain{stages: all, onError: ch.onError}
}

// Run executes the stages in order against pc. Stages never run concurrently.
func (ch *Chain) Run(pc *Context) error {
	for _, stage := range ch.stages {
		out := stage(pc)
		switch out.kind {
		case KindContinue:
			continue
		case KindTerminate:
			if out.respond == nil {
				return nil
			}
			if err := out.respond(pc); err != nil {
				return ch.fail(pc, err)
			}
			return nil
		case KindFail:
			return ch.fail(pc, out.err)
		}
	}
	return ch.fail(pc, ErrNoResponse)
}

// Handler adapts the chain to a Fiber route handler with a fresh Context per request.
func (ch *Chain) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return ch.Run(NewContext(c))
	}
}

func (ch *Chain) fail(pc *Context, err error) error {
	if err == nil {
		err = ErrNoResponse
	}
	if ch.onError == nil {
		return err
	}
	return ch.onError(pc, err)
}
