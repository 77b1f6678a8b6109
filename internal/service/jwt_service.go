package service

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenIssuer emite y valida tokens de sesion.
type TokenIssuer interface {
	Issue(userID string) (string, error)
	Verify(token string) (string, error)
}

// JWTService emite y valida tokens JWT firmados con HS256.
type JWTService struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

type Claims struct {
	UserID string `json:"uid"`
	jwt.RegisteredClaims
}

var (
	ErrJWTInvalid = errors.New("jwt invalid")
	ErrJWTExpired = errors.New("jwt expired")
)

// NewJWTService crea el servicio; ttl cero emite tokens sin expiracion.
func NewJWTService(secret, issuer string, ttl time.Duration) *JWTService {
	if issuer == "" {
		issuer = "authgate"
	}
	if ttl < 0 {
		ttl = 0
	}
	return &JWTService{
		secret: []byte(secret),
		ttl:    ttl,
		issuer: issuer,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *JWTService) Issue(userID string) (string, error) {
	if len(s.secret) == 0 || strings.TrimSpace(userID) == "" {
		return "", ErrJWTInvalid
	}
	now := s.now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       uuid.NewString(),
			Issuer:   s.issuer,
			Subject:  userID,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if s.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(s.ttl))
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Verify devuelve el id de usuario contenido en un token valido.
func (s *JWTService) Verify(tokenString string) (string, error) {
	if len(s.secret) == 0 {
		return "", ErrJWTInvalid
	}
	if strings.TrimSpace(tokenString) == "" {
		return "", ErrJWTInvalid
	}
	claims, err := s.parseToken(tokenString)
	if err != nil {
		return "", err
	}
	if !s.isValidClaims(claims) {
		return "", ErrJWTInvalid
	}
	return claims.UserID, nil
}

func (s *JWTService) parseToken(tokenString string) (Claims, error) {
	var claims Claims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	_, err := parser.ParseWithClaims(tokenString, &claims, func(_ *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrJWTExpired
		}
		return Claims{}, ErrJWTInvalid
	}
	return claims, nil
}

func (s *JWTService) isValidClaims(claims Claims) bool {
	if strings.TrimSpace(claims.UserID) == "" {
		return false
	}
	if claims.Subject != claims.UserID {
		return false
	}
	return strings.TrimSpace(claims.Issuer) == s.issuer
}
