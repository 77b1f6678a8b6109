package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"authgate/internal/domain"
	"authgate/internal/service"
)

const (
	authUserKey  = "auth_user"
	authTokenKey = "auth_token"
)

// AuthMiddleware exige un token de sesion vigente y guarda el usuario en el contexto.
func AuthMiddleware(logger *zap.Logger, authSvc *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if authSvc == nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "auth not configured"})
			return
		}

		user, token, err := authSvc.Authorize(c.Request.Context(), c.GetHeader("Authorization"))
		if err != nil {
			switch {
			case errors.Is(err, service.ErrTokenNotFound):
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Token not found"})
			case errors.Is(err, service.ErrNotAuthorized):
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Not authorized"})
			default:
				logger.Error("authorize failed", zap.Error(err))
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
			}
			return
		}

		c.Set(authUserKey, user)
		c.Set(authTokenKey, token)
		c.Next()
	}
}

// GetAuthUser obtiene el usuario autorizado desde el contexto.
func GetAuthUser(c *gin.Context) (domain.User, bool) {
	val, ok := c.Get(authUserKey)
	if !ok {
		return domain.User{}, false
	}
	user, ok := val.(domain.User)
	return user, ok
}

func GetAuthToken(c *gin.Context) string {
	return c.GetString(authTokenKey)
}
