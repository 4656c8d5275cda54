package service

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/bitlabs/talentstream-proctor/internal/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Common auth errors.
var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrMissingApplicant = errors.New("token carries no applicant")
)

// Claims is the bitLabs applicant token. The secret is shared with the
// backend so the same bearer token is valid on both sides.
type Claims struct {
	jwt.RegisteredClaims
	ApplicantID int `json:"applicant_id"`
}

// AuthService validates and issues applicant JWTs.
type AuthService struct {
	secret []byte
	expiry time.Duration
	now    func() time.Time
}

// NewAuthService creates a new AuthService.
func NewAuthService(cfg *config.Config) *AuthService {
	return &AuthService{
		secret: []byte(cfg.JWTSecret),
		expiry: cfg.JWTExpiry,
		now:    time.Now,
	}
}

// IssueToken signs a token for an applicant. Used by local tooling only.
func (s *AuthService) IssueToken(applicantID int) (string, error) {
	if applicantID <= 0 {
		return "", ErrMissingApplicant
	}
	now := s.now()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   strconv.Itoa(applicantID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
		},
		ApplicantID: applicantID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses and validates a JWT, returning the claims.
func (s *AuthService) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	// Older tokens only carry the id in sub.
	if claims.ApplicantID == 0 && claims.Subject != "" {
		if id, err := strconv.Atoi(claims.Subject); err == nil {
			claims.ApplicantID = id
		}
	}
	if claims.ApplicantID <= 0 {
		return nil, ErrMissingApplicant
	}
	return claims, nil
}
