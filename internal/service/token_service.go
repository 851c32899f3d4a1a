package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/qcom/phoneotp/internal/config"
	"github.com/qcom/phoneotp/internal/models"
	"github.com/sirupsen/logrus"
)

const tokenTypePhoneVerified = "phone_verified"

var ErrInvalidToken = errors.New("invalid verification token")

// TokenService signs and checks the short-lived token returned after a
// successful verification.
type TokenService struct {
	secretKey []byte
	ttl       time.Duration
	now       func() time.Time
	logger    *logrus.Logger
}

func NewTokenService(cfg *config.TokenConfig, logger *logrus.Logger) (*TokenService, error) {
	secretKey := []byte(cfg.Secret)
	if len(secretKey) < 32 {
		return nil, fmt.Errorf("secret key must be at least 32 bytes")
	}

	return &TokenService{
		secretKey: secretKey,
		ttl:       cfg.TTL,
		now:       time.Now,
		logger:    logger,
	}, nil
}

type Claims struct {
	Phone string `json:"phone"`
	Type  string `json:"type"`
	jwt.RegisteredClaims
}

func (s *TokenService) Issue(phoneNumber string) (*models.VerificationToken, error) {
	now := s.now()
	expiresAt := now.Add(s.ttl)

	claims := &Claims{
		Phone: phoneNumber,
		Type:  tokenTypePhoneVerified,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   phoneNumber,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.New().String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secretKey)
	if err != nil {
		s.logger.WithError(err).Error("Failed to sign verification token")
		return nil, fmt.Errorf("failed to sign verification token: %w", err)
	}

	return &models.VerificationToken{
		Token:     signed,
		TokenType: "Bearer",
		ExpiresAt: expiresAt,
	}, nil
}

func (s *TokenService) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secretKey, nil
	}, jwt.WithTimeFunc(s.now))

	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	if claims.Type != tokenTypePhoneVerified {
		return nil, fmt.Errorf("%w: unexpected type %q", ErrInvalidToken, claims.Type)
	}

	return claims, nil
}
