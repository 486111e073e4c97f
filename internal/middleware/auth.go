package middleware

import (
	"errors"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/reelcut/api/internal/auth"
	"github.com/reelcut/api/pkg/response"
)

// Context locals set by the auth middlewares
const (
	localUserID = "userId"
	localEmail  = "email"
	localName   = "name"
)

// AuthMiddleware handles JWT authentication
type AuthMiddleware struct {
	auth *auth.Authenticator
}

func NewAuthMiddleware(a *auth.Authenticator) *AuthMiddleware {
	return &AuthMiddleware{auth: a}
}

// Authenticate validates the bearer token from the Authorization header.
// Browsers cannot set headers on WebSocket upgrades, so upgrades may pass
// the token as ?token= instead.
func (m *AuthMiddleware) Authenticate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var (
			id  *auth.Identity
			err error
		)
		if token := c.Query("token"); token != "" && c.Get(fiber.HeaderAuthorization) == "" && websocket.IsWebSocketUpgrade(c) {
			id, err = m.auth.Validate(token)
		} else {
			id, err = m.auth.FromHeader(c.Get(fiber.HeaderAuthorization))
		}
		if err != nil {
			return response.Unauthorized(c, unauthorizedMessage(err))
		}

		setIdentity(c, id)
		return c.Next()
	}
}

func unauthorizedMessage(err error) string {
	switch {
	case errors.Is(err, auth.ErrMissingToken):
		return "Missing authorization header"
	case errors.Is(err, auth.ErrMalformedHeader):
		return "Invalid authorization header format"
	case errors.Is(err, auth.ErrNotConfigured):
		return "Authentication not configured"
	}
	return "Invalid or expired token"
}

func setIdentity(c *fiber.Ctx, id *auth.Identity) {
	c.Locals(localUserID, id.UserID)
	c.Locals(localEmail, id.Email)
	c.Locals(localName, id.Name)
}

// GetUserID extracts user ID from context
func GetUserID(c *fiber.Ctx) string {
	if userID, ok := c.Locals(localUserID).(string); ok {
		return userID
	}
	return ""
}

// GetUserEmail extracts user email from context
func GetUserEmail(c *fiber.Ctx) string {
	if email, ok := c.Locals(localEmail).(string); ok {
		return email
	}
	return ""
}

// GetUserName extracts user name from context
func GetUserName(c *fiber.Ctx) string {
	if name, ok := c.Locals(localName).(string); ok {
		return name
	}
	return ""
}
