package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cuisine/internal/models"
	"cuisine/internal/repositories"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned when an email/password pair does not authenticate.
var ErrInvalidCredentials = errors.New("invalid credentials")

// UserService is the credential store: it owns user records and password verification.
type UserService struct {
	repo repositories.UserRepository
	cost int
}

// NewUserService creates a new UserService hashing passwords with the given bcrypt cost.
func NewUserService(repo repositories.UserRepository, cost int) *UserService {
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	return &UserService{
		repo: repo,
		cost: cost,
	}
}

// NormalizeEmail trims and lower-cases an address. Emails are compared in this form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register hashes password and stores user. A taken email fails with repositories.ErrDuplicateKey.
func (s *UserService) Register(ctx context.Context, user *models.User, password string) (*models.User, error) {
	user.Email = NormalizeEmail(user.Email)
	if password == "" {
		return nil, &models.ValidationError{Problems: []string{"Password cannot be empty"}}
	}
	if err := user.Validate(); err != nil {
		return nil, err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, &models.ValidationError{Problems: []string{"Password is too long"}}
		}
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	user.PasswordHash = string(hashedPassword)

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to register user: %w", err)
	}
	return user, nil
}

// FindByEmail looks a user up by normalized email.
func (s *UserService) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.repo.GetByEmail(ctx, NormalizeEmail(email))
}

// FindByID looks a user up by id.
func (s *UserService) FindByID(ctx context.Context, id string) (*models.User, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns every user.
func (s *UserService) List(ctx context.Context) ([]models.User, error) {
	return s.repo.GetAll(ctx)
}

// FindByIDAndUpdate applies profile to the user with the given id.
func (s *UserService) FindByIDAndUpdate(ctx context.Context, id string, profile models.UserProfile) (*models.User, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	return s.repo.UpdateProfile(ctx, id, profile)
}

// FindByIDAndRemove deletes the user with the given id.
func (s *UserService) FindByIDAndRemove(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// CompareCredential checks password against the stored hash of user.
// The comparison runs off the caller's goroutine and is abandoned when ctx ends,
// in which case the context error is returned.
func (s *UserService) CompareCredential(ctx context.Context, user *models.User, password string) (bool, error) {
	result := make(chan error, 1)
	go func() {
		result <- bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password))
	}()

	select {
	case <-ctx.Done():
		return false, fmt.Errorf("compare credential: %w", ctx.Err())
	case err := <-result:
		switch {
		case err == nil:
			return true, nil
		case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
			return false, nil
		default:
			return false, fmt.Errorf("compare credential: %w", err)
		}
	}
}

// Authenticate resolves an email/password pair to a user.
// Unknown emails and wrong passwords both yield ErrInvalidCredentials.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	ok, err := s.CompareCredential(ctx, user, password)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}
