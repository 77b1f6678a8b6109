package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"authgate/internal/service"
)

// AuthHandler mantiene dependencias para endpoints de autenticacion.
type AuthHandler struct {
	logger  *zap.Logger
	authSvc *service.AuthService
}

// NewAuthHandler crea una instancia de AuthHandler con dependencias necesarias.
func NewAuthHandler(logger *zap.Logger, authSvc *service.AuthService) *AuthHandler {
	return &AuthHandler{
		logger:  logger,
		authSvc: authSvc,
	}
}

// Register maneja POST /auth/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required,max=72"`
		Gender   string `json:"gender"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid register request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid request"})
		return
	}

	user, err := h.authSvc.Register(c.Request.Context(), service.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Gender:   req.Gender,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmailInUse):
			c.JSON(http.StatusConflict, gin.H{"message": "Email in use"})
		case errors.Is(err, service.ErrInvalidEmail), errors.Is(err, service.ErrPasswordTooLong):
			c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		default:
			h.logger.Error("register failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user": user.Profile()})
}

// Login maneja POST /auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required,max=72"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid login request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid request"})
		return
	}

	res, err := h.authSvc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			c.JSON(http.StatusUnauthorized, gin.H{"message": "Email or password is wrong"})
		case errors.Is(err, service.ErrRateLimited):
			c.JSON(http.StatusTooManyRequests, gin.H{"message": "too many requests"})
		default:
			h.logger.Error("login failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": res.Token,
		"user": gin.H{
			"email":        res.User.Email,
			"subscription": res.User.Subscription,
		},
	})
}

// Logout maneja POST /auth/logout.
func (h *AuthHandler) Logout(c *gin.Context) {
	user, ok := GetAuthUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Not authorized"})
		return
	}
	if err := h.authSvc.Logout(c.Request.Context(), user.ID); err != nil {
		h.logger.Error("logout failed", zap.Error(err), zap.String("user_id", user.ID))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
		return
	}
	c.Status(http.StatusNoContent)
}

// VerifyEmail maneja GET /auth/verify/:verificationToken.
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	_, err := h.authSvc.VerifyEmail(c.Request.Context(), c.Param("verificationToken"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrVerificationNotFound):
			c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
		case errors.Is(err, service.ErrVerificationUpdate):
			h.logger.Error("verification update affected no record", zap.Error(err))
			c.String(http.StatusInternalServerError, "Internal server error")
		default:
			h.logger.Error("verify email failed", zap.Error(err))
			c.String(http.StatusInternalServerError, "Internal server error")
		}
		return
	}
	c.String(http.StatusOK, "Verification successful!")
}

// CurrentUser maneja GET /users/current.
func (h *AuthHandler) CurrentUser(c *gin.Context) {
	user, ok := GetAuthUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Not authorized"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"email":        user.Email,
		"subscription": user.Subscription,
	})
}
