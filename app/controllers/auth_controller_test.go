package controllers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	fsession "github.com/gofiber/fiber/v2/middleware/session"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"github.com/larinai/larinai/app/models"
	"github.com/larinai/larinai/app/repository"
	"github.com/larinai/larinai/internal/pkg/session"
	"github.com/larinai/larinai/internal/pkg/supabase"
	"github.com/larinai/larinai/internal/pkg/usercontext"
)

const newUserID = "0b5f3c7e-8d2a-4e61-9c1f-2a7d4b6e8f10"

type memoryProfiles struct {
	repository.ProfileRepository
	byID map[string]*models.UserProfile
}

func (m *memoryProfiles) GetByID(_ context.Context, id string) (*models.UserProfile, error) {
	if p, ok := m.byID[id]; ok {
		return p, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memoryProfiles) GetByEmail(_ context.Context, email string) (*models.UserProfile, error) {
	for _, p := range m.byID {
		if p.Email == email {
			return p, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memoryProfiles) Create(_ context.Context, p *models.UserProfile) error {
	m.byID[p.ID] = p
	return nil
}

type fakeIdentity struct {
	signUps   int
	password  string
	updated   string
	signInErr error
}

func (f *fakeIdentity) SignUp(_ context.Context, email, password string, _ map[string]interface{}) (*supabase.User, error) {
	f.signUps++
	return &supabase.User{ID: newUserID, Email: email}, nil
}

func (f *fakeIdentity) SignInWithPassword(_ context.Context, email, password string) (*supabase.Session, error) {
	if f.signInErr != nil {
		return nil, f.signInErr
	}
	if password != f.password {
		return nil, &supabase.Error{StatusCode: http.StatusBadRequest, Message: "Invalid login credentials"}
	}
	return &supabase.Session{AccessToken: "tok", ExpiresIn: 3600, User: supabase.User{ID: "user-1", Email: email}}, nil
}

func (f *fakeIdentity) UpdatePassword(_ context.Context, userID, password string) error {
	f.updated = password
	return nil
}

func (f *fakeIdentity) SignOut(context.Context, string) error { return nil }

type fakeOTP struct {
	issued []string
}

func (f *fakeOTP) Issue(_ context.Context, p *models.UserProfile) (string, error) {
	f.issued = append(f.issued, p.Email)
	return "123456", nil
}

func (f *fakeOTP) Verify(context.Context, string) (*models.UserProfile, error) { return nil, nil }

func (f *fakeOTP) Resend(context.Context, string) (string, error) { return "", nil }

func newAuthApp(u *usercontext.UserContext, profiles *memoryProfiles, id *fakeIdentity, otp *fakeOTP) *fiber.App {
	session.SetSessionStore(fsession.New())
	a := &AuthController{profiles: profiles, identity: id, otp: otp}
	app := fiber.New()
	app.Use(as(u))
	app.Post("/api/auth/register", a.HandleRegister)
	app.Post("/api/auth/login", a.HandleLogin)
	app.Post("/api/auth/change-password", a.HandleChangePassword)
	return app
}

func TestRegister_PasswordPolicyBeforeUpstream(t *testing.T) {
	id := &fakeIdentity{}
	otp := &fakeOTP{}
	app := newAuthApp(nil, &memoryProfiles{byID: map[string]*models.UserProfile{}}, id, otp)

	status, body := call(t, app, fiber.MethodPost, "/api/auth/register", `{"email":"a@b.it","password":"short"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "invalid_input", body["error"])
	assert.NotEmpty(t, body["requirements"])
	assert.Zero(t, id.signUps)
	assert.Empty(t, otp.issued)
}

func TestRegister_CreatesProfileAndSendsCode(t *testing.T) {
	id := &fakeIdentity{}
	otp := &fakeOTP{}
	profiles := &memoryProfiles{byID: map[string]*models.UserProfile{}}
	app := newAuthApp(nil, profiles, id, otp)

	status, body := call(t, app, fiber.MethodPost, "/api/auth/register", `{"email":"New@Example.com","password":"Str0ng!Passw0rd","fullName":"Ada"}`)
	assert.Equal(t, fiber.StatusCreated, status)
	assert.Equal(t, newUserID, body["userId"])
	assert.Equal(t, models.ROLE_STD_USER, profiles.byID[newUserID].Role)
	assert.Equal(t, []string{"new@example.com"}, otp.issued)

	status, _ = call(t, app, fiber.MethodPost, "/api/auth/register", `{"email":"new@example.com","password":"Str0ng!Passw0rd"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, 1, id.signUps)
}

func TestLogin(t *testing.T) {
	confirmed := time.Now()
	profiles := &memoryProfiles{byID: map[string]*models.UserProfile{
		"user-1": {ID: "user-1", Email: "user@example.com", Role: models.ROLE_STD_USER, EmailConfirmedAt: &confirmed},
	}}
	app := newAuthApp(nil, profiles, &fakeIdentity{password: "Str0ng!Passw0rd"}, &fakeOTP{})

	status, body := call(t, app, fiber.MethodPost, "/api/auth/login", `{"email":"user@example.com","password":"wrong"}`)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "not_authenticated", body["error"])

	status, body = call(t, app, fiber.MethodPost, "/api/auth/login", `{"email":"user@example.com","password":"Str0ng!Passw0rd"}`)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "tok", body["accessToken"])

	profiles.byID["user-1"].EmailConfirmedAt = nil
	status, _ = call(t, app, fiber.MethodPost, "/api/auth/login", `{"email":"user@example.com","password":"Str0ng!Passw0rd"}`)
	assert.Equal(t, fiber.StatusForbidden, status)
}

func TestLogin_UpstreamDown(t *testing.T) {
	profiles := &memoryProfiles{byID: map[string]*models.UserProfile{}}
	id := &fakeIdentity{signInErr: &supabase.Error{StatusCode: http.StatusBadGateway, Message: "down"}}
	app := newAuthApp(nil, profiles, id, &fakeOTP{})

	status, body := call(t, app, fiber.MethodPost, "/api/auth/login", `{"email":"user@example.com","password":"x"}`)
	assert.Equal(t, fiber.StatusBadGateway, status)
	assert.Equal(t, "upstream_failure", body["error"])
}

func TestChangePassword(t *testing.T) {
	profiles := &memoryProfiles{byID: map[string]*models.UserProfile{}}
	id := &fakeIdentity{password: "Old!Passw0rd1"}
	app := newAuthApp(stdUser(), profiles, id, &fakeOTP{})

	status, _ := call(t, app, fiber.MethodPost, "/api/auth/change-password", `{"currentPassword":"Old!Passw0rd1","newPassword":"Old!Passw0rd1"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, body := call(t, app, fiber.MethodPost, "/api/auth/change-password", `{"currentPassword":"nope","newPassword":"New!Passw0rd2"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "current password is incorrect", body["message"])
	assert.Empty(t, id.updated)

	status, _ = call(t, app, fiber.MethodPost, "/api/auth/change-password", `{"currentPassword":"Old!Passw0rd1","newPassword":"New!Passw0rd2"}`)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "New!Passw0rd2", id.updated)
}
