// Package supabase talks to the Supabase GoTrue auth API and verifies the
// access tokens it issues.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/larinai/larinai/internal/pkg/env"
)

const maxErrorBodyBytes = 32 << 10

var ErrNotConfigured = errors.New("supabase is not configured")

// Config holds Supabase project settings.
type Config struct {
	URL        string
	AnonKey    string
	ServiceKey string
	JWTSecret  string
}

func ConfigFromEnv() Config {
	return Config{
		URL:        strings.TrimRight(env.GetEnv("SUPABASE_URL", ""), "/"),
		AnonKey:    env.GetEnv("SUPABASE_ANON_KEY", ""),
		ServiceKey: env.GetEnv("SUPABASE_SERVICE_KEY", ""),
		JWTSecret:  env.GetEnv("SUPABASE_JWT_SECRET", ""),
	}
}

// User is the GoTrue user representation.
type User struct {
	ID               string                 `json:"id"`
	Email            string                 `json:"email"`
	Role             string                 `json:"role,omitempty"`
	EmailConfirmedAt *time.Time             `json:"email_confirmed_at,omitempty"`
	UserMetadata     map[string]interface{} `json:"user_metadata,omitempty"`
	CreatedAt        time.Time              `json:"created_at"`
}

// Session is returned by password sign-in.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	User         User   `json:"user"`
}

// Error is a non-2xx GoTrue response.
type Error struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("supabase auth %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("supabase auth %d: %s", e.StatusCode, e.Message)
}

// IsStatus reports whether err is a GoTrue error with the given HTTP status.
func IsStatus(err error, status int) bool {
	var e *Error
	return errors.As(err, &e) && e.StatusCode == status
}

// Client wraps the GoTrue REST endpoints used by the app.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

func NewClient(cfg Config) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

func (c *Client) Configured() bool {
	return c != nil && c.cfg.URL != "" && c.cfg.ServiceKey != ""
}

// SignUp creates an unconfirmed user through the admin API, so the app can
// run its own OTP confirmation.
func (c *Client) SignUp(ctx context.Context, email, password string, metadata map[string]interface{}) (*User, error) {
	body := map[string]interface{}{
		"email":         email,
		"password":      password,
		"email_confirm": false,
	}
	if len(metadata) > 0 {
		body["user_metadata"] = metadata
	}
	var user User
	if err := c.do(ctx, http.MethodPost, "/auth/v1/admin/users", c.cfg.ServiceKey, body, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// SignInWithPassword exchanges credentials for a session.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	body := map[string]string{"email": email, "password": password}
	var sess Session
	if err := c.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=password", "", body, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// ConfirmEmail marks the user's email as confirmed.
func (c *Client) ConfirmEmail(ctx context.Context, userID string) error {
	return c.updateUser(ctx, userID, map[string]interface{}{"email_confirm": true})
}

// UpdatePassword sets a new password for the user.
func (c *Client) UpdatePassword(ctx context.Context, userID, password string) error {
	return c.updateUser(ctx, userID, map[string]interface{}{"password": password})
}

// SignOut revokes the session behind accessToken.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	return c.do(ctx, http.MethodPost, "/auth/v1/logout", accessToken, nil, nil)
}

func (c *Client) updateUser(ctx context.Context, userID string, body map[string]interface{}) error {
	if strings.TrimSpace(userID) == "" {
		return errors.New("user id is required")
	}
	return c.do(ctx, http.MethodPut, "/auth/v1/admin/users/"+url.PathEscape(userID), c.cfg.ServiceKey, body, nil)
}

// do sends a request with the anon key as apikey. bearer overrides the
// Authorization header, defaulting to the anon key.
func (c *Client) do(ctx context.Context, method, path, bearer string, body interface{}, out interface{}) error {
	if c == nil || c.cfg.URL == "" {
		return ErrNotConfigured
	}

	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.URL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	apiKey := c.cfg.AnonKey
	if apiKey == "" {
		apiKey = c.cfg.ServiceKey
	}
	if bearer == "" {
		bearer = apiKey
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", apiKey)
	req.Header.Set("Authorization", "Bearer "+bearer)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return decodeError(resp.StatusCode, raw)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// decodeError understands the GoTrue error shapes used across versions.
func decodeError(status int, raw []byte) error {
	var payload struct {
		Code             interface{} `json:"code"`
		ErrorCode        string      `json:"error_code"`
		Error            string      `json:"error"`
		Msg              string      `json:"msg"`
		Message          string      `json:"message"`
		ErrorDescription string      `json:"error_description"`
	}
	e := &Error{StatusCode: status}
	if err := json.Unmarshal(raw, &payload); err != nil {
		e.Message = strings.TrimSpace(string(raw))
		return e
	}

	e.Code = payload.ErrorCode
	if e.Code == "" {
		if s, ok := payload.Code.(string); ok {
			e.Code = s
		} else if payload.Error != "" {
			e.Code = payload.Error
		}
	}
	for _, m := range []string{payload.Msg, payload.Message, payload.ErrorDescription, payload.Error} {
		if m != "" {
			e.Message = m
			break
		}
	}
	if e.Message == "" {
		e.Message = http.StatusText(status)
	}
	return e
}
