package middleware

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/ManuelReschke/BlogHub/internal/pkg/env"
	icuser "github.com/ManuelReschke/BlogHub/internal/pkg/usercontext"
)

const keyAuthError = "auth_error"

var (
	ErrTokenInvalid   = errors.New("invalid access token")
	ErrSubjectInvalid = errors.New("token subject is not a user id")
)

// Claims are the access token claims issued by the hosted auth backend.
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// TokenVerifier validates HS256 access tokens signed with the project secret.
type TokenVerifier struct {
	secret   []byte
	audience string
	leeway   time.Duration
}

func NewTokenVerifier(secret, audience string) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret), audience: audience, leeway: 30 * time.Second}
}

// NewTokenVerifierFromEnv reads SUPABASE_JWT_SECRET and SUPABASE_JWT_AUDIENCE.
func NewTokenVerifierFromEnv() *TokenVerifier {
	return NewTokenVerifier(
		strings.TrimSpace(env.GetEnv("SUPABASE_JWT_SECRET", "")),
		strings.TrimSpace(env.GetEnv("SUPABASE_JWT_AUDIENCE", "authenticated")),
	)
}

func (v *TokenVerifier) Verify(token string) (*Claims, error) {
	if v == nil || len(v.secret) == 0 {
		return nil, fmt.Errorf("%w: verifier not configured", ErrTokenInvalid)
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	claims := &Claims{}
	if _, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return nil, ErrSubjectInvalid
	}
	return claims, nil
}

// RequireAPIAuth ensures an authenticated caller for API routes and returns JSON 401.
func RequireAPIAuth(c *fiber.Ctx) error {
	loggedIn, _ := c.Locals(icuser.KeyFromProtected).(bool)
	if !loggedIn {
		msg := "login required"
		if reason, ok := c.Locals(keyAuthError).(string); ok && reason != "" {
			msg = reason
		}
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error":   "unauthorized",
			"message": msg,
		})
	}
	return c.Next()
}
