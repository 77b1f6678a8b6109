package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"authgate/internal/avatar"
	"authgate/internal/domain"
	"authgate/internal/email"
	"authgate/internal/repository"
)

var (
	ErrEmailInUse           = errors.New("email in use")
	ErrInvalidCredentials   = errors.New("email or password is wrong")
	ErrTokenNotFound        = errors.New("token not found")
	ErrNotAuthorized        = errors.New("not authorized")
	ErrVerificationNotFound = errors.New("user not found")
	ErrVerificationUpdate   = errors.New("verification update failed")
	ErrRateLimited          = errors.New("rate limited")
	ErrInvalidEmail         = errors.New("invalid email")
	ErrPasswordTooLong      = errors.New("password too long")
)

const bearerPrefix = "Bearer "

// dummyPassword se hashea al crear el servicio; ninguna cuenta lo usa.
const dummyPassword = "authgate-dummy-password"

// AuthConfig agrupa la configuracion que el servicio necesita en runtime.
type AuthConfig struct {
	PublicBaseURL string
}

// AuthService coordina registro, login, autorizacion y verificacion de email.
type AuthService struct {
	logger  *zap.Logger
	users   repository.UserRepository
	hasher  PasswordHasher
	tokens  TokenIssuer
	sender  email.Sender
	avatars avatar.Generator
	limiter LoginLimiter
	cfg     AuthConfig

	// dummyHash iguala el costo de un login con email desconocido.
	dummyHash string
}

func NewAuthService(
	logger *zap.Logger,
	users repository.UserRepository,
	hasher PasswordHasher,
	tokens TokenIssuer,
	sender email.Sender,
	avatars avatar.Generator,
	limiter LoginLimiter,
	cfg AuthConfig,
) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sender == nil {
		sender = email.NewDisabledSender("email sender not configured")
	}
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")
	var dummyHash string
	if hasher != nil {
		if h, err := hasher.Hash(dummyPassword); err == nil {
			dummyHash = h
		} else {
			logger.Warn("hash dummy password failed", zap.Error(err))
		}
	}
	return &AuthService{
		logger:  logger,
		users:   users,
		hasher:  hasher,
		tokens:  tokens,
		sender:  sender,
		avatars: avatars,
		limiter: limiter,
		cfg:     cfg,

		dummyHash: dummyHash,
	}
}

type RegisterInput struct {
	Email    string
	Password string
	Gender   string
}

// LoginResult contiene el token emitido y el usuario ya actualizado.
type LoginResult struct {
	Token string
	User  domain.User
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput) (domain.User, error) {
	emailAddr := normalizeEmail(input.Email)
	if emailAddr == "" {
		return domain.User{}, ErrInvalidEmail
	}
	gender := strings.TrimSpace(input.Gender)

	_, err := s.users.GetByEmail(ctx, emailAddr)
	if err == nil {
		return domain.User{}, ErrEmailInUse
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return domain.User{}, fmt.Errorf("lookup email: %w", err)
	}

	passwordHash, err := s.hasher.Hash(input.Password)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return domain.User{}, ErrPasswordTooLong
		}
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	var avatarURL string
	if s.avatars != nil {
		avatarURL, err = s.avatars.Generate(ctx, emailAddr)
		if err != nil {
			return domain.User{}, fmt.Errorf("generate avatar: %w", err)
		}
	}

	verificationToken := uuid.NewString()
	created, err := s.users.Create(ctx, domain.User{
		ID:                uuid.NewString(),
		Email:             emailAddr,
		PasswordHash:      passwordHash,
		Gender:            gender,
		AvatarURL:         avatarURL,
		Subscription:      domain.SubscriptionFree,
		VerificationToken: &verificationToken,
		CreatedAt:         time.Now().UTC(),
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return domain.User{}, ErrEmailInUse
		}
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}

	// El registro no falla si el correo no sale; queda registrado en el log.
	if err := s.sender.SendVerification(ctx, created.Email, s.VerificationLink(verificationToken)); err != nil {
		s.logger.Warn("send verification email failed",
			zap.Error(err),
			zap.String("user_id", created.ID),
			zap.String("email", created.Email),
		)
	}

	return created, nil
}

func (s *AuthService) Login(ctx context.Context, emailAddr, password string) (LoginResult, error) {
	emailAddr = normalizeEmail(emailAddr)
	if emailAddr == "" || password == "" {
		return LoginResult{}, ErrInvalidCredentials
	}
	if s.limiter != nil && !s.limiter.Allow(emailAddr) {
		return LoginResult{}, ErrRateLimited
	}

	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Mismo costo de bcrypt que con un email existente.
			_, _ = s.hasher.Compare(password, s.dummyHash)
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, fmt.Errorf("lookup email: %w", err)
	}

	ok, err := s.hasher.Compare(password, user.PasswordHash)
	if err != nil {
		return LoginResult{}, fmt.Errorf("compare password: %w", err)
	}
	if !ok {
		return LoginResult{}, ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return LoginResult{}, fmt.Errorf("issue token: %w", err)
	}

	// Sobrescribe cualquier sesion previa: la ultima escritura gana.
	updated, err := s.users.UpdateSessionToken(ctx, user.ID, &token)
	if err != nil {
		return LoginResult{}, fmt.Errorf("store session token: %w", err)
	}

	return LoginResult{Token: token, User: updated}, nil
}

// Authorize valida el header Authorization y devuelve el usuario y su token.
// Cualquier fallo corta la cadena antes de consultar al repositorio.
func (s *AuthService) Authorize(ctx context.Context, authHeader string) (domain.User, string, error) {
	if authHeader == "" {
		return domain.User{}, "", ErrTokenNotFound
	}
	token := strings.Replace(authHeader, bearerPrefix, "", 1)

	userID, err := s.tokens.Verify(token)
	if err != nil {
		return domain.User{}, "", ErrNotAuthorized
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.User{}, "", ErrNotAuthorized
		}
		return domain.User{}, "", fmt.Errorf("lookup user: %w", err)
	}
	if !user.HasSession(token) {
		return domain.User{}, "", ErrNotAuthorized
	}

	return user, token, nil
}

func (s *AuthService) Logout(ctx context.Context, userID string) error {
	if _, err := s.users.UpdateSessionToken(ctx, userID, nil); err != nil {
		return fmt.Errorf("clear session token: %w", err)
	}
	return nil
}

func (s *AuthService) VerifyEmail(ctx context.Context, verificationToken string) (domain.User, error) {
	if strings.TrimSpace(verificationToken) == "" {
		return domain.User{}, ErrVerificationNotFound
	}

	user, err := s.users.GetByVerificationToken(ctx, verificationToken)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.User{}, ErrVerificationNotFound
		}
		return domain.User{}, fmt.Errorf("lookup verification token: %w", err)
	}

	updated, err := s.users.ClearVerificationToken(ctx, user.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.User{}, ErrVerificationUpdate
		}
		return domain.User{}, fmt.Errorf("clear verification token: %w", err)
	}

	return updated, nil
}

// VerificationLink arma el enlace publico que consume GET /auth/verify/:token.
func (s *AuthService) VerificationLink(verificationToken string) string {
	return s.cfg.PublicBaseURL + "/auth/verify/" + url.PathEscape(verificationToken)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
