package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jwalitptl/claims-api/internal/model"
)

type JWTService interface {
	GenerateAccessToken(username, role string) (string, error)
	ValidateToken(token string) (*model.TokenClaims, error)
	Expiry() time.Duration
}

type jwtService struct {
	secret []byte
	issuer string
	expiry time.Duration
	now    func() time.Time
}

// NewJWTService signs HS256 access tokens.
func NewJWTService(secret, issuer string, expiry time.Duration) JWTService {
	if expiry <= 0 {
		expiry = 8 * time.Hour
	}
	return &jwtService{secret: []byte(secret), issuer: issuer, expiry: expiry, now: time.Now}
}

func (s *jwtService) Expiry() time.Duration {
	return s.expiry
}

func (s *jwtService) GenerateAccessToken(username, role string) (string, error) {
	now := s.now()
	claims := model.TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
		},
		Username: username,
		Role:     role,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func (s *jwtService) ValidateToken(token string) (*model.TokenClaims, error) {
	claims := &model.TokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, errors.Join(model.ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.Username == "" {
		return nil, model.ErrInvalidToken
	}
	return claims, nil
}
