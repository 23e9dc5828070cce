package v1

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shenikar/sos_dispatch_system/internal/auth"
	"github.com/shenikar/sos_dispatch_system/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	ctxUserIDKey = "userID"
	ctxRoleKey   = "role"
)

// JWTAuthMiddleware - middleware для аутентификации по bearer-токену.
// Отсутствующий, просроченный и неверно подписанный токен дают
// одинаковый 401, без деталей.
func JWTAuthMiddleware(tokens *auth.TokenManager, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var token string
		authHeader := c.GetHeader("Authorization")
		if strings.HasPrefix(authHeader, "Bearer ") {
			token = strings.TrimPrefix(authHeader, "Bearer ")
		}

		claims, err := tokens.Verify(token)
		if err != nil {
			log.Warn("Request rejected: invalid or missing token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or missing token"})
			return
		}

		c.Set(ctxUserIDKey, claims.UserID)
		c.Set(ctxRoleKey, claims.Role)
		c.Next()
	}
}

// RequireDispatchRole пропускает только роли responder и admin
func RequireDispatchRole(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := currentRole(c)
		if !role.CanDispatch() {
			log.WithField("role", role).Warn("Request rejected: insufficient role")
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
			return
		}
		c.Next()
	}
}

// currentUserID возвращает субъект токена из контекста запроса
func currentUserID(c *gin.Context) uuid.UUID {
	if v, ok := c.Get(ctxUserIDKey); ok {
		if id, ok := v.(uuid.UUID); ok {
			return id
		}
	}
	return uuid.Nil
}

// currentRole возвращает роль субъекта из контекста запроса
func currentRole(c *gin.Context) models.Role {
	if v, ok := c.Get(ctxRoleKey); ok {
		if role, ok := v.(models.Role); ok {
			return role
		}
	}
	return ""
}
