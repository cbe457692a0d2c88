package services_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"cuisine/internal/models"
	"cuisine/internal/repositories"
	"cuisine/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func candidate() *models.User {
	return &models.User{FirstName: "Jon", LastName: "Wexler", Email: " Jon@Example.com ", ZipCode: 12345}
}

func TestUserService_Register(t *testing.T) {
	mockRepo := new(MockUserRepository)
	users := services.NewUserService(mockRepo, bcrypt.MinCost)

	mockRepo.On("Create", mock.Anything, mock.AnythingOfType("*models.User")).Return(nil).Once()

	user, err := users.Register(context.Background(), candidate(), "password123")
	require.NoError(t, err)

	assert.Equal(t, "jon@example.com", user.Email)
	assert.NotEqual(t, "password123", user.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("password123")))
	mockRepo.AssertExpectations(t)
}

func TestUserService_RegisterRejectsInvalidBeforeWriting(t *testing.T) {
	mockRepo := new(MockUserRepository)
	users := services.NewUserService(mockRepo, bcrypt.MinCost)

	_, err := users.Register(context.Background(), candidate(), "")
	assert.ErrorIs(t, err, models.ErrInvalid)

	bad := candidate()
	bad.ZipCode = 1234
	_, err = users.Register(context.Background(), bad, "password123")
	assert.ErrorIs(t, err, models.ErrInvalid)

	_, err = users.Register(context.Background(), candidate(), strings.Repeat("x", 80))
	var invalid *models.ValidationError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, []string{"Password is too long"}, invalid.Problems)

	mockRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestUserService_RegisterDuplicate(t *testing.T) {
	mockRepo := new(MockUserRepository)
	users := services.NewUserService(mockRepo, bcrypt.MinCost)

	mockRepo.On("Create", mock.Anything, mock.Anything).
		Return(fmt.Errorf("failed to create user: %w", repositories.ErrDuplicateKey)).Once()

	_, err := users.Register(context.Background(), candidate(), "password123")
	assert.ErrorIs(t, err, repositories.ErrDuplicateKey)
}

func TestUserService_ConcurrentRegistrationSameEmail(t *testing.T) {
	users := services.NewUserService(repositories.NewMockUserRepository(), bcrypt.MinCost)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = users.Register(context.Background(), candidate(), "password123")
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, repositories.ErrDuplicateKey)
	}
	assert.Equal(t, 1, succeeded)
}

func TestUserService_CompareCredential(t *testing.T) {
	users := services.NewUserService(new(MockUserRepository), bcrypt.MinCost)
	user := &models.User{PasswordHash: hashed(t, "secret")}

	ok, err := users.CompareCredential(context.Background(), user, "secret")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = users.CompareCredential(context.Background(), user, "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUserService_CompareCredentialErrors(t *testing.T) {
	users := services.NewUserService(new(MockUserRepository), bcrypt.MinCost)

	_, err := users.CompareCredential(context.Background(), &models.User{PasswordHash: "not-a-hash"}, "secret")
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	user := &models.User{PasswordHash: hashed(t, "secret")}
	// the comparison may still win the race, but a cancelled context never reads as a mismatch
	ok, err := users.CompareCredential(ctx, user, "secret")
	if err != nil {
		assert.True(t, errors.Is(err, context.Canceled))
	} else {
		assert.True(t, ok)
	}
}

func TestUserService_CompareCredentialTimeout(t *testing.T) {
	users := services.NewUserService(new(MockUserRepository), bcrypt.MinCost)
	// a cost high enough to outlive the deadline
	slow, err := bcrypt.GenerateFromPassword([]byte("secret"), 12)
	require.NoError(t, err)
	user := &models.User{PasswordHash: string(slow)}

	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()

	_, err = users.CompareCredential(ctx, user, "secret")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestUserService_FindByIDAndUpdateValidates(t *testing.T) {
	mockRepo := new(MockUserRepository)
	users := services.NewUserService(mockRepo, bcrypt.MinCost)

	_, err := users.FindByIDAndUpdate(context.Background(), "u1", models.UserProfile{FirstName: "", LastName: "W"})
	assert.ErrorIs(t, err, models.ErrInvalid)
	mockRepo.AssertNotCalled(t, "UpdateProfile", mock.Anything, mock.Anything, mock.Anything)

	profile := models.UserProfile{FirstName: "Jon", LastName: "W", ZipCode: 10016}
	updated := &models.User{ID: "u1", FirstName: "Jon", LastName: "W", ZipCode: 10016}
	mockRepo.On("UpdateProfile", mock.Anything, "u1", profile).Return(updated, nil).Once()

	got, err := users.FindByIDAndUpdate(context.Background(), "u1", profile)
	require.NoError(t, err)
	assert.Equal(t, updated, got)
	mockRepo.AssertExpectations(t)
}
