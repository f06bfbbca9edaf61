package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/presence-service/internal/domain"
	"github.com/spec-kit/presence-service/internal/repository"
	apperrors "github.com/spec-kit/presence-service/pkg/util/errorutil"
)

const principalKey = "auth_principal"

// AnonKeyHeader carries the client-generated anonymous session key for
// callers without a bearer token.
const AnonKeyHeader = "X-Anon-Key"

// Principal represents the authenticated caller.
type Principal struct {
	User *domain.User
}

// AuthMiddleware validates bearer tokens and loads principals.
type AuthMiddleware struct {
	tokens *TokenManager
	users  repository.UserRepository
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, users repository.UserRepository) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, users: users}
}

// Require enforces authentication for protected routes.
func (m *AuthMiddleware) Require(c *fiber.Ctx) error {
	principal, err := m.loadPrincipal(c)
	if err != nil {
		return err
	}
	if principal == nil {
		return apperrors.NewUnauthorized("missing authorization header")
	}
	c.Locals(principalKey, principal)
	return c.Next()
}

// Optional loads the principal when a bearer token is present and otherwise
// continues unauthenticated. A malformed or expired token is still rejected
// rather than silently downgraded to anonymous.
func (m *AuthMiddleware) Optional(c *fiber.Ctx) error {
	principal, err := m.loadPrincipal(c)
	if err != nil {
		return err
	}
	if principal != nil {
		c.Locals(principalKey, principal)
	}
	return c.Next()
}

func (m *AuthMiddleware) loadPrincipal(c *fiber.Ctx) (*Principal, error) {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return nil, nil
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil, apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(parts[1])
	if err != nil {
		return nil, apperrors.NewUnauthorized("invalid token")
	}

	user, err := m.users.GetByID(c.Context(), claims.UserID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.NewUnauthorized("user not found")
		}
		return nil, apperrors.MapError(err)
	}
	return &Principal{User: user}, nil
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}

// ResolveIdentity derives the canonical identity for a request: an
// authenticated principal wins, then a caller-supplied anonymous key (request
// body first, header as fallback), else None. Downstream presence writes
// treat None as a silent no-op.
func ResolveIdentity(c *fiber.Ctx, anonKey string) domain.Identity {
	if principal, ok := PrincipalFromContext(c); ok && principal.User != nil {
		return domain.AuthenticatedIdentity(principal.User.ID)
	}
	if anonKey == "" {
		anonKey = c.Get(AnonKeyHeader)
	}
	if anonKey != "" {
		return domain.AnonymousIdentity(anonKey)
	}
	return domain.NoIdentity()
}

// RequireUser ensures an authenticated end-user is present.
func RequireUser() fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok || principal.User == nil {
			return apperrors.NewUnauthorized("authentication required")
		}
		return c.Next()
	}
}
