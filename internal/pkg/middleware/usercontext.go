package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/BlogHub/internal/pkg/usercontext"
)

// UserContextMiddleware resolves the caller from a bearer token on every
// request. Requests without a usable token continue as anonymous readers;
// RequireAPIAuth turns that into a 401 where a login is mandatory.
func UserContextMiddleware(verifier *TokenVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := bearerToken(c)
		if token == "" {
			usercontext.SetUserContext(c, usercontext.UserContext{})
			return c.Next()
		}

		claims, err := verifier.Verify(token)
		if err != nil {
			log.Debugf("[Auth] rejected bearer token: %v", err)
			usercontext.SetUserContext(c, usercontext.UserContext{})
			c.Locals(keyAuthError, err.Error())
			return c.Next()
		}

		usercontext.SetUserContext(c, usercontext.UserContext{
			UserID:     claims.Subject,
			Email:      claims.Email,
			IsLoggedIn: true,
		})
		return c.Next()
	}
}

func bearerToken(c *fiber.Ctx) string {
	auth := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}
