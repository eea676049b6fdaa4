package tokens

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/fulljjb/server/internal/models"
)

var (
	// ErrExpired is returned when a token is well-formed and correctly
	// signed but past its expiry claim.
	ErrExpired = errors.New("token expired")
	// ErrInvalid covers every other verification failure.
	ErrInvalid = errors.New("invalid token")
)

// Claims is the single claim shape used by both the access and the
// refresh token.
type Claims struct {
	UserID uint   `json:"id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Service signs and verifies the token pair. Pure function of
// identity + secret + clock, no side effects.
type Service struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

func NewService(accessSecret, refreshSecret []byte) *Service {
	return &Service{
		AccessSecret:  accessSecret,
		RefreshSecret: refreshSecret,
		AccessTTL:     time.Hour,
		RefreshTTL:    7 * 24 * time.Hour,
	}
}

func (s *Service) IssueAccess(user *models.User) (string, error) {
	return sign(user, s.AccessSecret, s.AccessTTL, "")
}

func (s *Service) IssueRefresh(user *models.User) (string, error) {
	return sign(user, s.RefreshSecret, s.RefreshTTL, uuid.NewString())
}

func (s *Service) VerifyAccess(tokenStr string) (*Claims, error) {
	return verify(tokenStr, s.AccessSecret)
}

func (s *Service) VerifyRefresh(tokenStr string) (*Claims, error) {
	return verify(tokenStr, s.RefreshSecret)
}

func sign(user *models.User, secret []byte, ttl time.Duration, jti string) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: user.ID,
		Email:  user.Email,
		Name:   user.Name,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        jti,
		},
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(secret)
}

func verify(tokenStr string, secret []byte) (*Claims, error) {
	var claims Claims
	tkn, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected sign method")
		}
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, ErrInvalid
	}
	if !tkn.Valid {
		return nil, ErrInvalid
	}
	return &claims, nil
}

// Identity returns the user summary carried by the claims.
func (c *Claims) Identity() models.User {
	return models.User{
		ID:    c.UserID,
		Email: c.Email,
		Name:  c.Name,
		Role:  c.Role,
	}
}
