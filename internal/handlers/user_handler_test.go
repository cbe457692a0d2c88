package handlers_test

import (
	"context"
	"net/url"
	"testing"

	"cuisine/internal/repositories"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateUser(t *testing.T) {
	f := newFixture(t)

	location := f.submit(t, fiber.MethodPost, "/users", registration(" Jon@Example.com "))
	assert.Equal(t, "/users/login", location)

	p := f.visit(t, "/users/login")
	assert.Equal(t, "users/login", p.View)
	require.Len(t, p.FlashMessages, 1)
	assert.Equal(t, flash{Severity: "success", Text: "Jon Wexler's account created successfully!"}, p.FlashMessages[0])

	user, err := f.users.FindByEmail(context.Background(), "jon@example.com")
	require.NoError(t, err)
	assert.Equal(t, 10016, user.ZipCode)
	assert.NotEqual(t, "12345", user.PasswordHash)

	// flash messages are shown once
	assert.Empty(t, f.visit(t, "/users/login").FlashMessages)
}

func TestCreateUserValidationFailureSkipsWrite(t *testing.T) {
	tests := []struct {
		name    string
		edit    func(url.Values)
		message string
	}{
		{"short zip", func(v url.Values) { v.Set("zipCode", "1234") }, "Zip code is invalid"},
		{"alpha zip", func(v url.Values) { v.Set("zipCode", "abcde") }, "Zip code is invalid"},
		{"bad email", func(v url.Values) { v.Set("email", "jon@") }, "Email is invalid"},
		{"empty password", func(v url.Values) { v.Set("password", "") }, "Password cannot be empty"},
		{
			"several failures",
			func(v url.Values) { v.Set("email", "nope"); v.Set("zipCode", "") },
			"Email is invalid and Zip code is invalid",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			form := registration("jon@example.com")
			tt.edit(form)

			assert.Equal(t, "/users/new", f.submit(t, fiber.MethodPost, "/users", form))
			assert.Zero(t, f.store.Calls("Register"))

			p := f.visit(t, "/users/new")
			assert.Equal(t, []flash{{Severity: "error", Text: tt.message}}, p.FlashMessages)
		})
	}
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	f := newFixture(t)
	first := f.register(t, "jon@example.com")

	form := registration("JON@example.com")
	form.Set("first", "Impostor")
	assert.Equal(t, "/users/new", f.submit(t, fiber.MethodPost, "/users", form))
	assert.Equal(t, 2, f.store.Calls("Register"))

	p := f.visit(t, "/users/new")
	assert.Contains(t, p.texts(),
		"Failed to create user account because: A user with the given email is already registered.")

	stored, err := f.users.FindByID(context.Background(), first.ID)
	require.NoError(t, err)
	assert.Equal(t, "Jon", stored.FirstName)
	assert.Equal(t, first.PasswordHash, stored.PasswordHash)
}

func TestCreateUserReportsStoreValidationDetail(t *testing.T) {
	f := newFixture(t)

	form := registration("jon@example.com")
	form.Set("zipCode", "01234")
	assert.Equal(t, "/users/new", f.submit(t, fiber.MethodPost, "/users", form))
	assert.Equal(t, 1, f.store.Calls("Register"))

	assert.Equal(t,
		[]flash{{Severity: "error", Text: "Failed to create user account because: ZipCode failed on the 'min=10000' rule."}},
		f.visit(t, "/users/new").FlashMessages)
}

func TestShowAndIndexUsers(t *testing.T) {
	f := newFixture(t)
	user := f.register(t, "jon@example.com")

	p := f.visit(t, "/users/"+user.ID)
	assert.Equal(t, "users/show", p.View)

	p = f.visit(t, "/users/"+user.ID+"/edit")
	assert.Equal(t, "users/edit", p.View)

	values := f.visitValues(t, "/users")
	assert.Equal(t, "users/index", values["view"])
	assert.Len(t, values["users"], 1)

	assert.Equal(t, "/users", f.submit(t, fiber.MethodGet, "/users/missing", nil))
	assert.Contains(t, f.visit(t, "/users").texts(), "User account not found.")
}

func TestUpdateUserKeepsEmailAndPassword(t *testing.T) {
	f := newFixture(t)
	user := f.register(t, "jon@example.com")

	form := url.Values{
		"first":    {"Jonathan"},
		"last":     {"Wexler"},
		"zipCode":  {"12345"},
		"email":    {"evil@example.com"},
		"password": {"hijacked"},
	}
	location := f.submit(t, fiber.MethodPost, "/users/"+user.ID+"?_method=PUT", form)
	assert.Equal(t, "/users/"+user.ID, location)

	stored, err := f.users.FindByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Jonathan", stored.FirstName)
	assert.Equal(t, 12345, stored.ZipCode)
	assert.Equal(t, "jon@example.com", stored.Email)
	assert.Equal(t, user.PasswordHash, stored.PasswordHash)

	_, err = f.users.FindByEmail(context.Background(), "evil@example.com")
	assert.ErrorIs(t, err, repositories.ErrNotFound)

	assert.Contains(t, f.visit(t, location).texts(), "Jonathan Wexler's profile updated successfully!")
}

func TestUpdateUserValidationFailureSkipsWrite(t *testing.T) {
	f := newFixture(t)
	user := f.register(t, "jon@example.com")

	form := url.Values{"first": {"Jon"}, "last": {""}, "zipCode": {"1001a"}}
	location := f.submit(t, fiber.MethodPost, "/users/"+user.ID+"/edit", form)
	assert.Equal(t, "/users/"+user.ID+"/edit", location)
	assert.Zero(t, f.store.Calls("FindByIDAndUpdate"))

	assert.Contains(t, f.visit(t, location).texts(), "First and last name are required and Zip code is invalid")
}

func TestUpdateMissingUser(t *testing.T) {
	f := newFixture(t)

	form := url.Values{"first": {"Jon"}, "last": {"Wexler"}, "zipCode": {"10016"}}
	assert.Equal(t, "/users", f.submit(t, fiber.MethodPut, "/users/missing", form))
	assert.Equal(t, 1, f.store.Calls("FindByIDAndUpdate"))
}

func TestDeleteOwnAccountEndsSession(t *testing.T) {
	f := newFixture(t)
	user := f.register(t, "jon@example.com")
	f.login(t, "jon@example.com", "12345")
	require.True(t, f.visit(t, "/").LoggedIn)

	assert.Equal(t, "/users", f.submit(t, fiber.MethodPost, "/users/"+user.ID+"?_method=DELETE", nil))

	p := f.visit(t, "/")
	assert.False(t, p.LoggedIn)
	assert.Contains(t, p.texts(), "User account deleted successfully!")

	_, err := f.users.FindByID(context.Background(), user.ID)
	assert.ErrorIs(t, err, repositories.ErrNotFound)

	assert.Equal(t, "/users", f.submit(t, fiber.MethodDelete, "/users/"+user.ID, nil))
	assert.Contains(t, f.visit(t, "/").texts(), "User account not found.")
}

func TestSessionOfRemovedUserIsAnonymous(t *testing.T) {
	f := newFixture(t)
	user := f.register(t, "jon@example.com")
	f.login(t, "jon@example.com", "12345")

	require.NoError(t, f.users.FindByIDAndRemove(context.Background(), user.ID))

	p := f.visit(t, "/")
	assert.False(t, p.LoggedIn)
	assert.Nil(t, p.CurrentUser)
}
