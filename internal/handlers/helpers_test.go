package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"cuisine/internal/handlers"
	"cuisine/internal/middleware"
	"cuisine/internal/models"
	"cuisine/internal/repositories"
	"cuisine/internal/services"
	"cuisine/internal/session"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const testJWTSecret = "test_jwt_secret"

// countingStore records every Credential Store call before delegating to the real service.
type countingStore struct {
	*services.UserService

	mu    sync.Mutex
	calls map[string]int

	compareErr error
	block      bool
}

func (s *countingStore) count(op string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[op]++
}

func (s *countingStore) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

func (s *countingStore) Register(ctx context.Context, user *models.User, password string) (*models.User, error) {
	s.count("Register")
	return s.UserService.Register(ctx, user, password)
}

func (s *countingStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	s.count("FindByEmail")
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return s.UserService.FindByEmail(ctx, email)
}

func (s *countingStore) FindByIDAndUpdate(ctx context.Context, id string, profile models.UserProfile) (*models.User, error) {
	s.count("FindByIDAndUpdate")
	return s.UserService.FindByIDAndUpdate(ctx, id, profile)
}

func (s *countingStore) FindByIDAndRemove(ctx context.Context, id string) error {
	s.count("FindByIDAndRemove")
	return s.UserService.FindByIDAndRemove(ctx, id)
}

func (s *countingStore) CompareCredential(ctx context.Context, user *models.User, password string) (bool, error) {
	s.count("CompareCredential")
	if s.compareErr != nil {
		return false, s.compareErr
	}
	return s.UserService.CompareCredential(ctx, user, password)
}

type fixture struct {
	app         *fiber.App
	store       *countingStore
	users       *services.UserService
	subscribers *services.SubscriberService
	courses     *services.CourseService
	redis       *miniredis.Miniredis
	cookie      *http.Cookie
}

type fixtureOption func(*fixtureConfig)

type fixtureConfig struct {
	mode    string
	timeout time.Duration
	users   repositories.UserRepository
}

func withMode(mode string) fixtureOption {
	return func(c *fixtureConfig) { c.mode = mode }
}

func withTimeout(d time.Duration) fixtureOption {
	return func(c *fixtureConfig) { c.timeout = d }
}

func withUserRepository(repo repositories.UserRepository) fixtureOption {
	return func(c *fixtureConfig) { c.users = repo }
}

// newFixture assembles the site the same way the server does, with in-memory stores.
func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	cfg := fixtureConfig{
		mode:    handlers.LoginManual,
		timeout: 2 * time.Second,
		users:   repositories.NewMockUserRepository(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	log := zap.NewNop()
	users := services.NewUserService(cfg.users, bcrypt.MinCost)
	store := &countingStore{UserService: users, calls: make(map[string]int)}
	auth := services.NewAuthService(users, testJWTSecret, time.Hour, log)

	subRepo := repositories.NewMockSubscriberRepository()
	subscribers := services.NewSubscriberService(subRepo, nil, log)
	courses := services.NewCourseService(repositories.NewMockCourseRepository(subRepo), subRepo)

	sessions := session.NewManager(rdb, "test", time.Hour, false)
	shared := handlers.Shared{
		Sessions:     sessions,
		Log:          log,
		StoreTimeout: cfg.timeout,
	}
	userHandler := handlers.NewUserHandler(shared, store)
	authHandler := handlers.NewAuthHandler(shared, store, users, auth, cfg.mode)

	app := fiber.New()
	app.Use(middleware.MethodOverride())

	apiV1 := app.Group("/api/v1")
	authHandler.RegisterAPIRoutes(apiV1)
	handlers.NewCourseHandler(shared, courses).RegisterAPIRoutes(apiV1, middleware.AuthRequired(auth, log))

	app.Use(sessions.Middleware(log), userHandler.LoadCurrentUser())
	app.Get("/", shared.Page("index"))
	authHandler.RegisterRoutes(app)
	userHandler.RegisterRoutes(app)
	handlers.NewSubscriberHandler(shared, subscribers).RegisterRoutes(app)
	handlers.NewCourseHandler(shared, courses).RegisterRoutes(app)

	return &fixture{
		app:         app,
		store:       store,
		users:       users,
		subscribers: subscribers,
		courses:     courses,
		redis:       mr,
	}
}

// send performs a request carrying the browser's session cookie and remembers any new one.
func (f *fixture) send(t *testing.T, method, target string, form url.Values) *http.Response {
	t.Helper()

	req := newFormRequest(method, target, form)
	if f.cookie != nil {
		req.AddCookie(f.cookie)
	}

	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	for _, c := range resp.Cookies() {
		if c.Name == session.CookieName {
			f.cookie = c
		}
	}
	return resp
}

func newFormRequest(method, target string, form url.Values) *http.Request {
	if form == nil {
		return httptest.NewRequest(method, target, nil)
	}
	req := httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationForm)
	return req
}

type page struct {
	View          string       `json:"view"`
	LoggedIn      bool         `json:"loggedIn"`
	CurrentUser   *models.User `json:"currentUser"`
	FlashMessages []flash      `json:"flashMessages"`
	Message       string       `json:"message"`
}

type flash struct {
	Severity string `json:"severity"`
	Text     string `json:"text"`
}

// visit renders a page and decodes it.
func (f *fixture) visit(t *testing.T, target string) page {
	t.Helper()
	resp := f.send(t, fiber.MethodGet, target, nil)
	defer resp.Body.Close()
	require.Equal(t, fiber.StatusOK, resp.StatusCode, "GET %s", target)

	var p page
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&p))
	return p
}

// submit posts a form and returns the redirect target.
func (f *fixture) submit(t *testing.T, method, target string, form url.Values) string {
	t.Helper()
	resp := f.send(t, method, target, form)
	defer resp.Body.Close()
	require.Equal(t, fiber.StatusFound, resp.StatusCode, "%s %s", method, target)
	return resp.Header.Get(fiber.HeaderLocation)
}

func (p page) texts() []string {
	out := make([]string, 0, len(p.FlashMessages))
	for _, m := range p.FlashMessages {
		out = append(out, m.Text)
	}
	return out
}

func registration(email string) url.Values {
	return url.Values{
		"first":    {"Jon"},
		"last":     {"Wexler"},
		"email":    {email},
		"zipCode":  {"10016"},
		"password": {"12345"},
	}
}

// register creates an account through the site and returns it.
func (f *fixture) register(t *testing.T, email string) *models.User {
	t.Helper()
	require.Equal(t, "/users/login", f.submit(t, fiber.MethodPost, "/users", registration(email)))
	user, err := f.users.FindByEmail(context.Background(), email)
	require.NoError(t, err)
	return user
}

// visitValues renders a page and decodes it loosely, for view values.
func (f *fixture) visitValues(t *testing.T, target string) map[string]any {
	t.Helper()
	resp := f.send(t, fiber.MethodGet, target, nil)
	defer resp.Body.Close()
	require.Equal(t, fiber.StatusOK, resp.StatusCode, "GET %s", target)

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func (f *fixture) login(t *testing.T, email, password string) string {
	t.Helper()
	return f.submit(t, fiber.MethodPost, "/users/login", url.Values{"email": {email}, "password": {password}})
}
