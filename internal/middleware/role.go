package middleware

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bebusy/backend/internal/auth"
	"github.com/bebusy/backend/internal/models"
	"github.com/bebusy/backend/pkg/response"
)

// RequireProfile resolves the caller's current role from the store on every request.
// Banned callers are rejected with 403 before reaching any handler.
func RequireProfile(resolver auth.IdentityResolver, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		userID, _ := c.Get(ContextUserID)
		id, _ := userID.(uuid.UUID)

		ident, err := resolver.Resolve(c.Request.Context(), id)
		switch {
		case errors.Is(err, auth.ErrUnauthenticated):
			response.Unauthorized(c, "profile not found")
			return
		case err != nil:
			logger.Error("resolve identity failed", zap.String("user_id", id.String()), zap.Error(err))
			response.Internal(c, "failed to resolve profile")
			return
		case ident.IsBanned():
			response.Forbidden(c, auth.ErrBanned.Error())
			return
		}
		c.Set(ContextIdentity, ident)
		c.Next()
	}
}

// IdentityFrom returns the identity set by RequireProfile.
func IdentityFrom(c *gin.Context) (auth.Identity, bool) {
	v, ok := c.Get(ContextIdentity)
	if !ok {
		return auth.Identity{}, false
	}
	ident, ok := v.(auth.Identity)
	return ident, ok
}

// RequireRole returns a middleware that allows only the given roles. It must run after RequireProfile.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	allowed := make(map[models.Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		ident, ok := IdentityFrom(c)
		if !ok {
			response.Unauthorized(c, "missing user context")
			return
		}
		if _, ok := allowed[ident.Role]; !ok {
			response.Forbidden(c, "insufficient permissions")
			return
		}
		c.Next()
	}
}
