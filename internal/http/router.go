package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"authgate/internal/service"
)

// Pinger reporta la salud del almacenamiento.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewRouter configura el router de Gin con middlewares y rutas base.
func NewRouter(
	logger *zap.Logger,
	authSvc *service.AuthService,
	authH *AuthHandler,
	db Pinger,
) *gin.Engine {
	r := gin.New()

	r.Use(zapLoggerMiddleware(logger), gin.Recovery())

	r.GET("/healthz", healthHandler(db))

	requireAuth := AuthMiddleware(logger, authSvc)

	auth := r.Group("/auth")
	auth.POST("/register", authH.Register)
	auth.POST("/login", authH.Login)
	auth.POST("/logout", requireAuth, authH.Logout)
	auth.GET("/verify/:verificationToken", authH.VerifyEmail)

	users := r.Group("/users", requireAuth)
	users.GET("/current", authH.CurrentUser)

	return r
}

func healthHandler(db Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := db.Ping(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		// La ruta registrada evita escribir tokens de verificacion en el log.
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
