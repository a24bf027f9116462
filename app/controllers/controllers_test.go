package controllers

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/larinai/larinai/internal/pkg/usercontext"
)

// as installs u as the authenticated caller.
func as(u *usercontext.UserContext) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if u != nil {
			usercontext.Set(c, *u)
		}
		return c.Next()
	}
}

func superadmin() *usercontext.UserContext {
	return &usercontext.UserContext{UserID: "admin-1", Role: "superadmin", IsLoggedIn: true}
}

func stdUser() *usercontext.UserContext {
	return &usercontext.UserContext{UserID: "user-1", Email: "user@example.com", Role: "std_user", IsLoggedIn: true}
}

func call(t *testing.T, app *fiber.App, method, path, body string) (int, map[string]interface{}) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]interface{}{}
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}
