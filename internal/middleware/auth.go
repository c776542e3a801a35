package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/referral-api/internal/model"
	"github.com/jwalitptl/referral-api/internal/service/auth"
	apperrors "github.com/jwalitptl/referral-api/pkg/errors"
	"github.com/jwalitptl/referral-api/pkg/httputil"
)

const ContextPrincipal = "principal"

// Authenticator verifies bearer tokens
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*auth.Principal, error)
}

type AuthMiddleware struct {
	auth Authenticator
}

func NewAuthMiddleware(a Authenticator) *AuthMiddleware {
	return &AuthMiddleware{auth: a}
}

// Authenticate verifies the bearer token and stores the principal in the context
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			httputil.RespondWithError(c, apperrors.Unauthorized("Missing authorization header", nil))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			httputil.RespondWithError(c, apperrors.Unauthorized("Invalid authorization format", nil))
			return
		}

		principal, err := m.auth.Authenticate(c.Request.Context(), parts[1])
		if err != nil {
			httputil.RespondWithError(c, err)
			return
		}

		c.Set(ContextPrincipal, principal)
		c.Next()
	}
}

// RequireType rejects principals of any other account type
func (m *AuthMiddleware) RequireType(types ...model.AccountType) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := PrincipalFrom(c)
		if !ok {
			httputil.RespondWithError(c, apperrors.Unauthorized("Not authenticated", nil))
			return
		}
		for _, t := range types {
			if p.Claims.Type == t {
				c.Next()
				return
			}
		}
		httputil.RespondWithError(c, apperrors.Forbidden("Access denied"))
	}
}

// RequirePermission admits providers holding perm
func (m *AuthMiddleware) RequirePermission(perm model.Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := PrincipalFrom(c)
		if !ok {
			httputil.RespondWithError(c, apperrors.Unauthorized("Not authenticated", nil))
			return
		}
		if p.Claims.Type != model.AccountProvider || !p.Claims.HasPermission(perm) {
			httputil.RespondWithError(c, apperrors.Forbidden("Missing permission: "+string(perm)))
			return
		}
		c.Next()
	}
}

// RequireAdminOrPermission admits admins and providers holding perm
func (m *AuthMiddleware) RequireAdminOrPermission(perm model.Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := PrincipalFrom(c)
		if !ok {
			httputil.RespondWithError(c, apperrors.Unauthorized("Not authenticated", nil))
			return
		}
		if p.Claims.Type == model.AccountAdmin ||
			(p.Claims.Type == model.AccountProvider && p.Claims.HasPermission(perm)) {
			c.Next()
			return
		}
		httputil.RespondWithError(c, apperrors.Forbidden("Access denied"))
	}
}

func PrincipalFrom(c *gin.Context) (*auth.Principal, bool) {
	v, ok := c.Get(ContextPrincipal)
	if !ok {
		return nil, false
	}
	p, ok := v.(*auth.Principal)
	return p, ok && p != nil && p.Claims != nil
}
