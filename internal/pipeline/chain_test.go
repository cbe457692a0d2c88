package pipeline

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"cuisine/internal/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(trace *[]string, name string, out Outcome) Stage {
	return func(*Context) Outcome {
		*trace = append(*trace, name)
		return out
	}
}

func TestChain_RunsStagesInOrder(t *testing.T) {
	var trace []string
	responded := false
	ch := New(
		record(&trace, "a", Continue()),
		record(&trace, "b", Continue()),
		record(&trace, "c", Terminate(func(*Context) error { responded = true; return nil })),
		record(&trace, "d", Continue()),
	)

	err := ch.Run(NewContext(nil))

	require.NoError(t, err)
	assert.True(t, responded)
	assert.Equal(t, []string{"a", "b", "c"}, trace)
}

func TestChain_FailSkipsToErrorStage(t *testing.T) {
	var trace []string
	boom := errors.New("store unreachable")
	var handled error
	ch := New(
		record(&trace, "a", Continue()),
		record(&trace, "b", Fail(boom)),
		record(&trace, "c", Continue()),
	).OnError(func(_ *Context, err error) error {
		handled = err
		return nil
	})

	require.NoError(t, ch.Run(NewContext(nil)))
	assert.Equal(t, []string{"a", "b"}, trace)
	assert.ErrorIs(t, handled, boom)
}

func TestChain_FailWithoutErrorStageReturnsError(t *testing.T) {
	boom := errors.New("boom")
	err := New(func(*Context) Outcome { return Fail(boom) }).Run(NewContext(nil))
	assert.ErrorIs(t, err, boom)
}

func TestChain_ExhaustedChainFails(t *testing.T) {
	err := New(func(*Context) Outcome { return Continue() }).Run(NewContext(nil))
	assert.ErrorIs(t, err, ErrNoResponse)
}

func TestChain_ResponderErrorReachesErrorStage(t *testing.T) {
	boom := errors.New("write failed")
	var handled error
	ch := New(func(*Context) Outcome {
		return Terminate(func(*Context) error { return boom })
	}).OnError(func(_ *Context, err error) error { handled = err; return nil })

	require.NoError(t, ch.Run(NewContext(nil)))
	assert.ErrorIs(t, handled, boom)
}

func TestChain_ThenDoesNotAlterOriginal(t *testing.T) {
	var trace []string
	base := New(record(&trace, "a", Continue()))
	extended := base.Then(record(&trace, "b", Terminate(nil)))

	assert.ErrorIs(t, base.Run(NewContext(nil)), ErrNoResponse)
	require.NoError(t, extended.Run(NewContext(nil)))
	assert.Equal(t, []string{"a", "a", "b"}, trace)
}

func TestOutcome_Kinds(t *testing.T) {
	assert.Equal(t, KindContinue, Continue().Kind())
	assert.Equal(t, KindTerminate, Terminate(nil).Kind())
	out := Fail(errors.New("x"))
	assert.Equal(t, KindFail, out.Kind())
	assert.EqualError(t, out.Err(), "x")
	assert.Equal(t, "fail", KindFail.String())
}

func TestValidate_SetsSkipButRunnerKeepsGoing(t *testing.T) {
	v := validation.New(validation.Email, validation.ZipCode)
	mutated := false
	pc := NewContext(nil)
	pc.Form[validation.FieldEmail] = "bad"
	pc.Form[validation.FieldZipCode] = "12"

	ch := New(
		Validate(v, To("/users/new")),
		// a stage that ignores Skip still runs; the runner does not enforce it
		func(*Context) Outcome { mutated = true; return Continue() },
		func(*Context) Outcome { return Terminate(nil) },
	)
	require.NoError(t, ch.Run(pc))

	assert.True(t, pc.Skip)
	assert.True(t, mutated)
	assert.Equal(t, "/users/new", pc.RedirectPath)
	assert.Equal(t, []Message{{Severity: SeverityError, Text: "Email is invalid and Zip code is invalid"}}, pc.Messages)
}

func TestValidate_PassesCleanInput(t *testing.T) {
	pc := NewContext(nil)
	pc.Form[validation.FieldEmail] = " A@B.io "

	out := Validate(validation.New(validation.Email), To("/x"))(pc)

	assert.Equal(t, KindContinue, out.Kind())
	assert.False(t, pc.Skip)
	assert.Empty(t, pc.RedirectPath)
	assert.Empty(t, pc.Messages)
	assert.Equal(t, "a@b.io", pc.Form[validation.FieldEmail])
}

type sinkStub struct {
	kept []Message
	err  error
}

func (s *sinkStub) Keep(_ *fiber.Ctx, msgs []Message) error {
	s.kept = append(s.kept, msgs...)
	return s.err
}

func TestRedirectView_OverHTTP(t *testing.T) {
	sink := &sinkStub{}
	app := fiber.New()
	app.Post("/echo", New(
		ParseForm("email"),
		func(pc *Context) Outcome {
			pc.Success("got " + pc.Form["email"])
			pc.Redirect("/done")
			return Continue()
		},
		RedirectView(sink),
	).Handler())

	form := url.Values{"email": {"jon@example.com"}}
	req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", fiber.MIMEApplicationForm)

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, "/done", resp.Header.Get("Location"))
	assert.Equal(t, []Message{{Severity: SeveritySuccess, Text: "got jon@example.com"}}, sink.kept)
}

func TestRedirectView_ContinuesWithoutTarget(t *testing.T) {
	assert.Equal(t, KindContinue, RedirectView(nil)(NewContext(nil)).Kind())
}

func TestContext_Values(t *testing.T) {
	pc := NewContext(nil)
	pc.Set("user", "jon")

	v, ok := pc.Get("user")
	assert.True(t, ok)
	assert.Equal(t, "jon", v)
	assert.Equal(t, map[string]any{"user": "jon"}, pc.Values())
	assert.Empty(t, pc.Param("id"))
}
