package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/wrrk/support/internal/domain"
	"github.com/wrrk/support/internal/repository"
	apperrors "github.com/wrrk/support/pkg/util"
)

const principalKey = "auth_principal"

// Principal represents the authenticated caller with the directory record
// backing the token.
type Principal struct {
	User  *domain.User
	Actor *domain.Actor
}

// Middleware validates bearer tokens and loads principals.
type Middleware struct {
	tokens *TokenManager
	users  repository.UserRepository
}

// NewMiddleware constructs middleware.
func NewMiddleware(tokens *TokenManager, users repository.UserRepository) *Middleware {
	return &Middleware{tokens: tokens, users: users}
}

// Handle enforces authentication for protected routes.
func (m *Middleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(parts[1])
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	user, err := m.users.GetByID(c.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewUnauthorized("user not found")
		}
		return apperrors.MapError(err)
	}

	// Role and org come from the directory record, not the token, so a
	// demotion takes effect before the token expires.
	c.Locals(principalKey, &Principal{
		User: user,
		Actor: &domain.Actor{
			ID:             user.ID,
			Role:           user.Role,
			OrganizationID: user.OrganizationID,
		},
	})
	return c.Next()
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

// ActorFromContext retrieves the actor triple for the request.
func ActorFromContext(c *fiber.Ctx) (*domain.Actor, bool) {
	principal, ok := PrincipalFromContext(c)
	if !ok || principal.Actor == nil {
		return nil, false
	}
	return principal.Actor, true
}
