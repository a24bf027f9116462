package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/larinai/larinai/app/models"
	"github.com/larinai/larinai/app/repository"
	"github.com/larinai/larinai/internal/pkg/apperr"
	"github.com/larinai/larinai/internal/pkg/session"
	"github.com/larinai/larinai/internal/pkg/supabase"
	"github.com/larinai/larinai/internal/pkg/usercontext"
)

// AuthController owns registration, email confirmation and sessions.
type AuthController struct {
	profiles repository.ProfileRepository
	identity IdentityProvider
	otp      OTPService
	captcha  CaptchaVerifier
}

type registerRequest struct {
	Email    string `json:"email" validate:"required,email,max=200"`
	Password string `json:"password"`
	FullName string `json:"fullName" validate:"max=150"`
	Captcha  string `json:"captcha"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword"`
}

// identityError maps GoTrue failures onto the error taxonomy.
func identityError(op string, err error) error {
	if errors.Is(err, supabase.ErrNotConfigured) {
		return apperr.Wrap(apperr.InternalError, op, "authentication is not configured", err)
	}
	var se *supabase.Error
	if errors.As(err, &se) {
		switch se.StatusCode {
		case http.StatusBadRequest, http.StatusUnprocessableEntity:
			return apperr.Wrap(apperr.InvalidInput, op, se.Message, err)
		case http.StatusTooManyRequests:
			return apperr.Wrap(apperr.RateLimited, op, "too many attempts, try again later", err)
		}
	}
	return apperr.Wrap(apperr.UpstreamFailure, op, "authentication service unavailable", err)
}

func passwordPolicyError(c *fiber.Ctx, unmet []string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"success":      false,
		"error":        apperr.InvalidInput,
		"message":      "password does not meet the requirements",
		"requirements": unmet,
	})
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// HandleRegister creates the identity and the std_user profile, then sends
// the confirmation code.
func (a *AuthController) HandleRegister(c *fiber.Ctx) error {
	const op = "auth.Register"
	ctx := c.UserContext()

	var req registerRequest
	if err := parseBody(c, op, &req); err != nil {
		return respondError(c, err)
	}
	req.Email = normalizeEmail(req.Email)
	req.FullName = strings.TrimSpace(req.FullName)

	if unmet := models.UnmetPasswordRequirements(req.Password); len(unmet) > 0 {
		return passwordPolicyError(c, unmet)
	}

	if a.captcha != nil && a.captcha.Enabled() {
		if err := a.captcha.Verify(ctx, req.Captcha, GetClientIP(c)); err != nil {
			return respondError(c, apperr.Wrap(apperr.InvalidInput, op, "captcha verification failed", err))
		}
	}

	if _, err := a.profiles.GetByEmail(ctx, req.Email); err == nil {
		return invalid(c, op, "email already registered")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return respondError(c, apperr.Wrap(apperr.InternalError, op, "failed to check email", err))
	}

	user, err := a.identity.SignUp(ctx, req.Email, req.Password, map[string]interface{}{"full_name": req.FullName})
	if err != nil {
		return respondError(c, identityError(op, err))
	}

	profile, err := models.NewUserProfile(user.ID, req.Email, req.FullName)
	if err != nil {
		return respondError(c, apperr.Wrap(apperr.InternalError, op, "invalid profile", err))
	}
	if err := a.profiles.Create(ctx, profile); err != nil {
		return respondError(c, apperr.Wrap(apperr.InternalError, op, "failed to create profile", err))
	}
	log.Infof("[Auth] Registered user %s", profile.ID)

	if _, err := a.otp.Issue(ctx, profile); err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"userId":  profile.ID,
		"message": "verification code sent",
	})
}

func (a *AuthController) HandleVerifyOTP(c *fiber.Ctx) error {
	const op = "auth.VerifyOTP"

	var req struct {
		Code string `json:"code" validate:"required"`
	}
	if err := parseBody(c, op, &req); err != nil {
		return respondError(c, err)
	}
	profile, err := a.otp.Verify(c.UserContext(), strings.TrimSpace(req.Code))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "userId": profile.ID, "email": profile.Email})
}

func (a *AuthController) HandleResendOTP(c *fiber.Ctx) error {
	const op = "auth.ResendOTP"

	var req struct {
		Email string `json:"email" validate:"required,email"`
	}
	if err := parseBody(c, op, &req); err != nil {
		return respondError(c, err)
	}
	if _, err := a.otp.Resend(c.UserContext(), normalizeEmail(req.Email)); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "message": "verification code sent"})
}

// HandleLogin signs in with Supabase and opens a session.
func (a *AuthController) HandleLogin(c *fiber.Ctx) error {
	const op = "auth.Login"
	ctx := c.UserContext()

	var req loginRequest
	if err := parseBody(c, op, &req); err != nil {
		return respondError(c, err)
	}
	req.Email = normalizeEmail(req.Email)

	sess, err := a.identity.SignInWithPassword(ctx, req.Email, req.Password)
	if err != nil {
		if supabase.IsStatus(err, http.StatusBadRequest) || supabase.IsStatus(err, http.StatusUnauthorized) {
			return respondError(c, apperr.Wrap(apperr.NotAuthenticated, op, "invalid email or password", err))
		}
		return respondError(c, identityError(op, err))
	}

	profile, err := a.profiles.GetByID(ctx, sess.User.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return respondError(c, apperr.New(apperr.NotFound, op, "profile not found"))
		}
		return respondError(c, apperr.Wrap(apperr.InternalError, op, "failed to load profile", err))
	}
	if !profile.IsEmailConfirmed() {
		return respondError(c, apperr.New(apperr.InsufficientPermissions, op, "email not confirmed"))
	}

	if err := session.Login(c, usercontext.UserContext{
		UserID:      profile.ID,
		Email:       profile.Email,
		Role:        profile.Role,
		AccessToken: sess.AccessToken,
	}); err != nil {
		return respondError(c, apperr.Wrap(apperr.InternalError, op, "failed to open session", err))
	}

	return c.JSON(fiber.Map{
		"success":     true,
		"user":        profile,
		"accessToken": sess.AccessToken,
		"expiresIn":   sess.ExpiresIn,
	})
}

// HandleLogout revokes the upstream token when known and destroys the session.
func (a *AuthController) HandleLogout(c *fiber.Ctx) error {
	u := usercontext.GetUserContext(c)
	if u.AccessToken != "" {
		if err := a.identity.SignOut(c.UserContext(), u.AccessToken); err != nil {
			log.Warnf("[Auth] Upstream sign-out for %s failed: %v", u.UserID, err)
		}
	}
	if u.Source == usercontext.SourceSession {
		if err := session.Destroy(c); err != nil {
			return respondError(c, apperr.Wrap(apperr.InternalError, "auth.Logout", "failed to close session", err))
		}
	}
	return c.JSON(fiber.Map{"success": true})
}

// HandleChangePassword re-authenticates with the current password before
// updating it through the admin API.
func (a *AuthController) HandleChangePassword(c *fiber.Ctx) error {
	const op = "auth.ChangePassword"
	ctx := c.UserContext()
	u := usercontext.GetUserContext(c)

	var req changePasswordRequest
	if err := parseBody(c, op, &req); err != nil {
		return respondError(c, err)
	}
	if unmet := models.UnmetPasswordRequirements(req.NewPassword); len(unmet) > 0 {
		return passwordPolicyError(c, unmet)
	}
	if req.NewPassword == req.CurrentPassword {
		return invalid(c, op, "new password must differ from the current one")
	}

	email := u.Email
	if email == "" {
		if p, err := a.profiles.GetByID(ctx, u.UserID); err == nil {
			email = p.Email
		}
	}
	if _, err := a.identity.SignInWithPassword(ctx, email, req.CurrentPassword); err != nil {
		if supabase.IsStatus(err, http.StatusBadRequest) || supabase.IsStatus(err, http.StatusUnauthorized) {
			return respondError(c, apperr.Wrap(apperr.InvalidInput, op, "current password is incorrect", err))
		}
		return respondError(c, identityError(op, err))
	}
	if err := a.identity.UpdatePassword(ctx, u.UserID, req.NewPassword); err != nil {
		return respondError(c, identityError(op, err))
	}
	log.Infof("[Auth] Password changed for %s", u.UserID)
	return c.JSON(fiber.Map{"success": true})
}
