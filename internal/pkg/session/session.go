package session

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/gofiber/storage/redis"

	"github.com/larinai/larinai/internal/pkg/cache"
	"github.com/larinai/larinai/internal/pkg/env"
	"github.com/larinai/larinai/internal/pkg/usercontext"
)

var sessionStore *session.Store

var ErrStoreNotInitialized = errors.New("session store not initialized")

func NewSessionStore() *session.Store {
	// Get Redis client configuration from existing cache setup
	cacheClient := cache.GetClient()
	host := "localhost"
	port := 6379
	password := env.GetEnv("CACHE_PASSWORD", "")
	if cacheClient != nil {
		addr := cacheClient.Options().Addr
		if h, p, err := net.SplitHostPort(addr); err == nil {
			host = h
			if v, err := strconv.Atoi(p); err == nil {
				port = v
			}
		}
		// Prefer password from the underlying client if present
		if p := cacheClient.Options().Password; p != "" {
			password = p
		}
	}

	// Create Redis storage for sessions using database 1 (cache uses DB 0)
	storage := redis.New(redis.Config{
		Host:     host,
		Port:     port,
		Password: password,
		Database: 1, // Separate database for sessions
		Reset:    false,
	})

	sessionStore = session.New(session.Config{
		Storage:        storage,
		CookieHTTPOnly: true,
		CookieSecure:   !env.IsDev(),
		CookieSameSite: fiber.CookieSameSiteLaxMode,
		Expiration:     env.GetEnvDuration("SESSION_TTL", 24*time.Hour),
		KeyLookup:      "cookie:larinai_session",
	})

	return sessionStore
}

// SetSessionStore replaces the store; tests use the in-memory default.
func SetSessionStore(s *session.Store) {
	sessionStore = s
}

// Login writes the authenticated identity into a fresh session. The session
// id is regenerated so a pre-login cookie cannot be reused.
func Login(c *fiber.Ctx, u usercontext.UserContext) error {
	if sessionStore == nil {
		return ErrStoreNotInitialized
	}
	sess, err := sessionStore.Get(c)
	if err != nil {
		return fmt.Errorf("failed to get session: %w", err)
	}
	if err := sess.Regenerate(); err != nil {
		return fmt.Errorf("failed to regenerate session: %w", err)
	}
	sess.Set(usercontext.KeyUserID, u.UserID)
	sess.Set(usercontext.KeyEmail, u.Email)
	sess.Set(usercontext.KeyRole, u.Role)
	if u.AccessToken != "" {
		sess.Set(usercontext.KeyAccessToken, u.AccessToken)
	}
	return sess.Save()
}

// Current reads the identity stored in the session. ok is false for
// anonymous requests.
func Current(c *fiber.Ctx) (usercontext.UserContext, bool) {
	if sessionStore == nil {
		return usercontext.UserContext{}, false
	}
	sess, err := sessionStore.Get(c)
	if err != nil {
		return usercontext.UserContext{}, false
	}
	userID, _ := sess.Get(usercontext.KeyUserID).(string)
	if userID == "" {
		return usercontext.UserContext{}, false
	}
	email, _ := sess.Get(usercontext.KeyEmail).(string)
	role, _ := sess.Get(usercontext.KeyRole).(string)
	token, _ := sess.Get(usercontext.KeyAccessToken).(string)
	return usercontext.UserContext{
		UserID:      userID,
		Email:       email,
		Role:        role,
		IsLoggedIn:  true,
		Source:      usercontext.SourceSession,
		AccessToken: token,
	}, true
}

// Destroy removes the session server side and expires the cookie.
func Destroy(c *fiber.Ctx) error {
	if sessionStore == nil {
		return ErrStoreNotInitialized
	}
	sess, err := sessionStore.Get(c)
	if err != nil {
		return fmt.Errorf("failed to get session: %w", err)
	}
	return sess.Destroy()
}
