package usercontext

// Shared Locals/session keys used across controllers and middlewares
const (
	KeyUserContext = "USER_CONTEXT"
	KeyUserID      = "user_id"
	KeyEmail       = "email"
	KeyRole        = "role"
	KeyAccessToken = "access_token"
)

// How the caller authenticated.
const (
	SourceSession = "session"
	SourceBearer  = "bearer"
)
