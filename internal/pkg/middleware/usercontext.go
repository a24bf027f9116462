package middleware

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/larinai/larinai/app/models"
	"github.com/larinai/larinai/internal/pkg/apperr"
	"github.com/larinai/larinai/internal/pkg/session"
	"github.com/larinai/larinai/internal/pkg/supabase"
	"github.com/larinai/larinai/internal/pkg/usercontext"
)

// TokenVerifier validates bearer access tokens.
type TokenVerifier interface {
	Verify(token string) (*supabase.Claims, error)
}

// ProfileLookup resolves the stored role of a token subject.
type ProfileLookup interface {
	GetByID(ctx context.Context, id string) (*models.UserProfile, error)
}

// UserContextMiddleware sets up the user context for every request. A bearer
// token wins over the session cookie; an invalid token is rejected instead of
// falling back to the cookie.
func UserContextMiddleware(verifier TokenVerifier, profiles ProfileLookup) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if token := extractBearerToken(c); token != "" && verifier != nil {
			claims, err := verifier.Verify(token)
			if err != nil {
				log.Debugf("[Auth] Rejected bearer token: %v", err)
				return deny(c, apperr.NotAuthenticated, "invalid access token")
			}
			u := usercontext.UserContext{
				UserID:      claims.Subject,
				Email:       claims.Email,
				Role:        models.ROLE_STD_USER,
				IsLoggedIn:  true,
				Source:      usercontext.SourceBearer,
				AccessToken: token,
			}
			// the token role is the Postgres role, the app role lives on the profile
			applyProfileRole(c, profiles, &u)
			usercontext.Set(c, u)
			return c.Next()
		}

		if u, ok := session.Current(c); ok {
			// the role cached at login may be stale after a role change
			if profiles != nil {
				u.Role = models.ROLE_STD_USER
				applyProfileRole(c, profiles, &u)
			}
			usercontext.Set(c, u)
		} else {
			usercontext.Set(c, usercontext.UserContext{})
		}
		return c.Next()
	}
}

// applyProfileRole replaces u.Role with the stored profile role. On lookup
// failure u keeps the role it already has.
func applyProfileRole(c *fiber.Ctx, profiles ProfileLookup, u *usercontext.UserContext) {
	if profiles == nil {
		return
	}
	p, err := profiles.GetByID(c.UserContext(), u.UserID)
	if err != nil {
		log.Debugf("[Auth] Profile %s not loaded, keeping role %s: %v", u.UserID, u.Role, err)
		return
	}
	u.Role = p.Role
	if u.Email == "" {
		u.Email = p.Email
	}
}

func extractBearerToken(c *fiber.Ctx) string {
	auth := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}
