// File: internal/auth/service.go
package auth

import (
	"errors"
	"fmt"
	"time"

	"civicconnect_backend/internal/config"
	"civicconnect_backend/internal/platform/crypto"
	"civicconnect_backend/internal/shared"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// JWTService issues and validates HS256 access tokens.
type JWTService struct {
	secret []byte
	issuer string
	expiry time.Duration
	logger *zap.Logger
}

var _ shared.TokenService = (*JWTService)(nil)

// NewJWTService creates a new JWT service. Outside release mode a missing secret is replaced
// by a random per-process one, so tokens do not survive a restart.
func NewJWTService(cfg *config.Config, logger *zap.Logger) (*JWTService, error) {
	secret := cfg.JWTSecret
	if secret == "" {
		if cfg.IsRelease() {
			return nil, errors.New("JWT secret is required in release mode")
		}
		generated, err := crypto.GenerateSecureRandomString(32)
		if err != nil {
			return nil, fmt.Errorf("could not generate JWT secret: %w", err)
		}
		logger.Warn("JWT_SECRET not set; using a random secret for this process")
		secret = generated
	}
	return &JWTService{
		secret: []byte(secret),
		issuer: cfg.JWTIssuer,
		expiry: cfg.JWTAccessTokenExpiry,
		logger: logger.Named("JWTService"),
	}, nil
}

func (s *JWTService) GenerateAccessToken(userData shared.UserDataForToken) (string, time.Time, error) {
	now := time.Now()
	expirationTime := now.Add(s.expiry)

	claims := &shared.Claims{
		UserID: userData.GetID(),
		Email:  userData.GetEmail(),
		Role:   userData.GetRole(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			Subject:   userData.GetID().String(),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		s.logger.Error("Failed to sign access token", zap.Error(err))
		return "", time.Time{}, fmt.Errorf("could not sign access token: %w", err)
	}
	return tokenString, expirationTime, nil
}

// ValidateToken validates a JWT and returns its claims.
func (s *JWTService) ValidateToken(tokenString string) (*shared.Claims, error) {
	claims := &shared.Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(s.issuer))
	if err != nil {
		s.logger.Debug("Failed to validate token", zap.Error(err))
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if !token.Valid || claims.UserID == uuid.Nil {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}
