// Package session keeps the login identity and pending flash messages of a browser in Redis.
//
// The browser holds only an opaque session id cookie. Anonymous visitors receive an id the
// first time a flash message must outlive a redirect.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cuisine/internal/pipeline"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// CookieName is the cookie carrying the session id.
const CookieName = "cuisine_sid"

// Locals keys populated by Middleware.
const (
	LocalsCurrentUserID = "currentUserID"
	LocalsLoggedIn      = "loggedIn"
	LocalsFlashMessages = "flashMessages"
)

const localsSessionID = "session.id"

// ErrRedisUnavailable wraps every Redis transport failure.
var ErrRedisUnavailable = errors.New("redis unavailable")

// Manager implements session establishment, lookup and flash persistence.
type Manager struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
	secure bool
}

// NewManager creates a Manager storing keys under prefix with the given lifetime.
func NewManager(rdb redis.UniversalClient, prefix string, ttl time.Duration, secure bool) *Manager {
	return &Manager{
		redis:  rdb,
		prefix: prefix,
		ttl:    ttl,
		secure: secure,
	}
}

func (m *Manager) userKey(sessionID string) string {
	return fmt.Sprintf("%s:session:%s", m.prefix, sessionID)
}

func (m *Manager) flashKey(sessionID string) string {
	return fmt.Sprintf("%s:flash:%s", m.prefix, sessionID)
}

// Establish binds userID to a freshly issued session id, discarding any previous binding.
func (m *Manager) Establish(c *fiber.Ctx, userID string) error {
	ctx := c.UserContext()
	if old := m.id(c); old != "" {
		if err := m.redis.Del(ctx, m.userKey(old)).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}
	sid := m.issue(c)
	if err := m.redis.Set(ctx, m.userKey(sid), userID, m.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Clear drops the login identity. Clearing an anonymous session is a no-op.
func (m *Manager) Clear(c *fiber.Ctx) error {
	sid := m.id(c)
	if sid == "" {
		return nil
	}
	if err := m.redis.Del(c.UserContext(), m.userKey(sid)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// CurrentUserID returns the logged-in user id, or "" for an anonymous session.
func (m *Manager) CurrentUserID(c *fiber.Ctx) (string, error) {
	sid := m.id(c)
	if sid == "" {
		return "", nil
	}
	return m.Lookup(c.UserContext(), sid)
}

// Lookup resolves a raw session id to its user id, or "" when anonymous or expired.
func (m *Manager) Lookup(ctx context.Context, sessionID string) (string, error) {
	userID, err := m.redis.Get(ctx, m.userKey(sessionID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return userID, nil
}

// Keep queues msgs for the next request of this browser.
func (m *Manager) Keep(c *fiber.Ctx, msgs []pipeline.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	sid := m.id(c)
	if sid == "" {
		sid = m.issue(c)
	}

	encoded := make([]any, 0, len(msgs))
	for _, msg := range msgs {
		data, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("encode flash message: %w", err)
		}
		encoded = append(encoded, data)
	}

	ctx := c.UserContext()
	key := m.flashKey(sid)
	_, err := m.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, encoded...)
		pipe.Expire(ctx, key, m.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Pop returns and removes the pending flash messages of this browser.
func (m *Manager) Pop(c *fiber.Ctx) ([]pipeline.Message, error) {
	sid := m.id(c)
	if sid == "" {
		return nil, nil
	}

	ctx := c.UserContext()
	key := m.flashKey(sid)
	var items *redis.StringSliceCmd
	_, err := m.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		items = pipe.LRange(ctx, key, 0, -1)
		pipe.Del(ctx, key)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	raw := items.Val()
	msgs := make([]pipeline.Message, 0, len(raw))
	for _, item := range raw {
		var msg pipeline.Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			return nil, fmt.Errorf("decode flash message: %w", err)
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// Middleware exposes the current user and the pending flash messages to every handler.
func (m *Manager) Middleware(log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := m.CurrentUserID(c)
		if err != nil {
			log.Error("session lookup failed", zap.Error(err))
			return err
		}
		msgs, err := m.Pop(c)
		if err != nil {
			log.Error("flash lookup failed", zap.Error(err))
			return err
		}
		c.Locals(LocalsCurrentUserID, userID)
		c.Locals(LocalsLoggedIn, userID != "")
		c.Locals(LocalsFlashMessages, msgs)
		return c.Next()
	}
}

// id returns the session id issued during this request or presented by the browser.
func (m *Manager) id(c *fiber.Ctx) string {
	if sid, ok := c.Locals(localsSessionID).(string); ok && sid != "" {
		return sid
	}
	if sid := c.Cookies(CookieName); sid != "" {
		sid = utils.CopyString(sid)
		c.Locals(localsSessionID, sid)
		return sid
	}
	return ""
}

func (m *Manager) issue(c *fiber.Ctx) string {
	sid := uuid.NewString()
	c.Locals(localsSessionID, sid)
	c.Cookie(&fiber.Cookie{
		Name:     CookieName,
		Value:    sid,
		Path:     "/",
		Expires:  time.Now().Add(m.ttl),
		HTTPOnly: true,
		Secure:   m.secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return sid
}
