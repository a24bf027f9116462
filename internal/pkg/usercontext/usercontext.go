package usercontext

import (
	"github.com/gofiber/fiber/v2"

	"github.com/larinai/larinai/app/models"
)

// UserContext represents the complete user context for a request
type UserContext struct {
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	Role        string `json:"role"`
	IsLoggedIn  bool   `json:"is_logged_in"`
	Source      string `json:"source,omitempty"`
	AccessToken string `json:"-"`
}

func (u UserContext) IsSuperadmin() bool {
	return u.IsLoggedIn && u.Role == models.ROLE_SUPERADMIN
}

func (u UserContext) IsStaff() bool {
	return u.IsLoggedIn && (u.Role == models.ROLE_ADMIN || u.Role == models.ROLE_SUPERADMIN)
}

// Set stores the context on the request.
func Set(c *fiber.Ctx, u UserContext) {
	c.Locals(KeyUserContext, u)
}

// GetUserContext retrieves the user context from fiber context
// Returns a default anonymous context if none is set
func GetUserContext(c *fiber.Ctx) UserContext {
	if u, ok := c.Locals(KeyUserContext).(UserContext); ok {
		return u
	}
	return UserContext{}
}

// IsLoggedIn checks if the current user is logged in
func IsLoggedIn(c *fiber.Ctx) bool {
	return GetUserContext(c).IsLoggedIn
}

// GetUserID returns the current user's ID, or "" if not logged in
func GetUserID(c *fiber.Ctx) string {
	return GetUserContext(c).UserID
}
