package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"authgate/internal/avatar"
	"authgate/internal/config"
	"authgate/internal/db"
	"authgate/internal/email"
	apihttp "authgate/internal/http"
	"authgate/internal/repository"
	"authgate/internal/service"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		logger.Fatal("db migrate", zap.Error(err))
	}

	userRepo := repository.NewPgUserRepository(pool)

	emailSender := email.NewDisabledSender("email sender not configured")
	switch {
	case cfg.SendGridAPIKey != "":
		sender, err := email.NewSendGridSender(cfg.SendGridBaseURL, cfg.SendGridAPIKey, cfg.EmailFrom, cfg.EmailFromName)
		if err != nil {
			logger.Warn("sendgrid sender init failed", zap.Error(err))
		} else {
			emailSender = sender
		}
	case cfg.SMTPHost != "":
		sender, err := email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.EmailFrom, cfg.EmailFromName, cfg.SMTPUseTLS)
		if err != nil {
			logger.Warn("smtp sender init failed", zap.Error(err))
		} else {
			emailSender = sender
		}
	default:
		logger.Warn("no email provider configured; verification emails will not be sent")
	}

	loginLimiter := service.NewMemoryLoginLimiter(cfg.LoginRateWindow(), cfg.LoginRateMax)
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed", zap.Error(err))
		} else {
			loginLimiter = service.NewRedisLoginLimiter(redisClient, cfg.LoginRateWindow(), cfg.LoginRateMax)
		}
		cancel()
	}

	authSvc := service.NewAuthService(
		logger,
		userRepo,
		service.NewBcryptHasher(cfg.BcryptCost),
		service.NewJWTService(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL()),
		emailSender,
		avatar.NewGravatar(cfg.AvatarBaseURL),
		loginLimiter,
		service.AuthConfig{PublicBaseURL: cfg.PublicBaseURL},
	)
	authHandler := apihttp.NewAuthHandler(logger, authSvc)
	router := apihttp.NewRouter(logger, authSvc, authHandler, pool)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("starting server", zap.String("port", cfg.HTTPPort))

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}
}
