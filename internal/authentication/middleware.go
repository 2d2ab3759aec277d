package authentication

import (
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mehmetcc/campaign-auth-service/internal/account"
	"github.com/mehmetcc/campaign-auth-service/internal/response"
)

// ContextIdentityKey is the key under which the validated *Identity is stored in Gin context.
const ContextIdentityKey = "identity"

// contextTokenKey holds the raw bearer token of the current request.
const contextTokenKey = "access_token"

// RequireAuth validates the bearer access token against the store and rejects
// the request before any later handler runs when it is missing or unusable.
func RequireAuth(service AuthenticationService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := BearerToken(c)
		if !ok {
			response.Error(c, http.StatusUnauthorized, response.CodeNoToken, "Authorization header must be Bearer <token>")
			return
		}

		identity, err := service.Validate(c.Request.Context(), token)
		switch {
		case err == nil:
		case errors.Is(err, ErrInvalidToken):
			response.Error(c, http.StatusUnauthorized, response.CodeInvalidToken, "Invalid or expired access token")
			return
		default:
			logger.Error("access token validation failed", zap.Error(err))
			response.ServerError(c, err)
			return
		}

		c.Set(ContextIdentityKey, identity)
		c.Set(contextTokenKey, token)
		c.Next()
	}
}

// RequireRole admits only principals whose current type is one of allowed.
// It must run after RequireAuth.
func RequireRole(allowed ...account.UserType) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := CurrentIdentity(c)
		if !ok {
			response.Error(c, http.StatusUnauthorized, response.CodeNoToken, "Authentication required")
			return
		}
		if !slices.Contains(allowed, identity.Role()) {
			response.Error(c, http.StatusForbidden, response.CodeForbidden, "You do not have permission to access this resource")
			return
		}
		c.Next()
	}
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(c *gin.Context) (string, bool) {
	parts := strings.Fields(c.GetHeader("Authorization"))
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}

func CurrentIdentity(c *gin.Context) (*Identity, bool) {
	raw, exists := c.Get(ContextIdentityKey)
	if !exists {
		return nil, false
	}
	identity, ok := raw.(*Identity)
	return identity, ok && identity != nil
}

// Subject reports the authenticated principal of the request, if any, in the
// shape the rate limiter and request log expect.
func Subject(c *gin.Context) (string, uint, bool) {
	identity, ok := CurrentIdentity(c)
	if !ok {
		return "", 0, false
	}
	return string(identity.UserType), identity.UserID, true
}

func currentToken(c *gin.Context) string {
	return c.GetString(contextTokenKey)
}
