package middleware

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	fsession "github.com/gofiber/fiber/v2/middleware/session"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/larinai/larinai/app/models"
	"github.com/larinai/larinai/internal/pkg/session"
	"github.com/larinai/larinai/internal/pkg/supabase"
	"github.com/larinai/larinai/internal/pkg/usercontext"
)

const testSecret = "super-secret-jwt-token-with-at-least-32-characters"

type profiles map[string]*models.UserProfile

func (p profiles) GetByID(_ context.Context, id string) (*models.UserProfile, error) {
	if u, ok := p[id]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func signToken(t *testing.T, sub string) string {
	t.Helper()
	claims := supabase.Claims{
		Email: sub + "@example.com",
		Role:  "authenticated",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func newApp() *fiber.App {
	return newAppWith(profiles{
		"admin-1": {ID: "admin-1", Role: models.ROLE_SUPERADMIN},
		"user-1":  {ID: "user-1", Role: models.ROLE_STD_USER},
	})
}

func newAppWith(p profiles) *fiber.App {
	session.SetSessionStore(fsession.New())
	app := fiber.New()
	app.Use(UserContextMiddleware(supabase.NewTokenVerifier(testSecret), p))
	app.Post("/login/:id", func(c *fiber.Ctx) error {
		return session.Login(c, usercontext.UserContext{UserID: c.Params("id"), Role: models.ROLE_SUPERADMIN})
	})
	app.Get("/me", RequireAPISessionAuth, func(c *fiber.Ctx) error {
		u := usercontext.GetUserContext(c)
		return c.SendString(u.UserID + "|" + u.Role + "|" + u.Source)
	})
	app.Get("/admin", RequireSuperadmin, func(c *fiber.Ctx) error { return c.SendString("ok") })
	return app
}

func body(t *testing.T, app *fiber.App, method, path, token, cookie string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if cookie != "" {
		req.Header.Set("Cookie", cookie)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(b)
}

func TestAnonymousIsRejected(t *testing.T) {
	app := newApp()
	status, b := body(t, app, fiber.MethodGet, "/me", "", "")
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Contains(t, b, `"error":"not_authenticated"`)
	assert.Contains(t, b, `"success":false`)

	status, _ = body(t, app, fiber.MethodGet, "/admin", "", "")
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestBearerTokenUsesProfileRole(t *testing.T) {
	app := newApp()
	status, b := body(t, app, fiber.MethodGet, "/me", signToken(t, "user-1"), "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "user-1|std_user|bearer", b)

	status, _ = body(t, app, fiber.MethodGet, "/admin", signToken(t, "user-1"), "")
	assert.Equal(t, fiber.StatusForbidden, status)

	status, _ = body(t, app, fiber.MethodGet, "/admin", signToken(t, "admin-1"), "")
	assert.Equal(t, fiber.StatusOK, status)
}

func TestInvalidBearerToken(t *testing.T) {
	app := newApp()
	status, b := body(t, app, fiber.MethodGet, "/me", "not-a-jwt", "")
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Contains(t, b, "invalid access token")
}

func TestSessionLogin(t *testing.T) {
	app := newApp()
	resp, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/login/admin-1", nil))
	require.NoError(t, err)
	cookies := resp.Header.Values("Set-Cookie")
	require.NotEmpty(t, cookies)

	status, b := body(t, app, fiber.MethodGet, "/me", "", cookies[0])
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "admin-1|superadmin|session", b)
}

func TestSessionRoleFollowsProfile(t *testing.T) {
	p := profiles{"admin-1": {ID: "admin-1", Role: models.ROLE_SUPERADMIN}}
	app := newAppWith(p)
	resp, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/login/admin-1", nil))
	require.NoError(t, err)
	cookie := resp.Header.Values("Set-Cookie")[0]

	status, _ := body(t, app, fiber.MethodGet, "/admin", "", cookie)
	assert.Equal(t, fiber.StatusOK, status)

	p["admin-1"].Role = models.ROLE_STD_USER
	status, _ = body(t, app, fiber.MethodGet, "/admin", "", cookie)
	assert.Equal(t, fiber.StatusForbidden, status)

	status, b := body(t, app, fiber.MethodGet, "/me", "", cookie)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "admin-1|std_user|session", b)
}

func TestSessionWithoutProfileIsStdUser(t *testing.T) {
	app := newAppWith(profiles{})
	resp, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/login/ghost", nil))
	require.NoError(t, err)
	cookie := resp.Header.Values("Set-Cookie")[0]

	status, _ := body(t, app, fiber.MethodGet, "/admin", "", cookie)
	assert.Equal(t, fiber.StatusForbidden, status)
}
