package services

import (
	"errors"
	"fmt"
	"time"

	"camlink/internal/core/domain"

	"github.com/golang-jwt/jwt/v5"
)

var ErrNotJWT = errors.New("token is not a JWT")

// TokenInfo is what the viewer can learn about a bearer token without the
// gateway's signing secret.
type TokenInfo struct {
	Subject   string
	ExpiresAt time.Time
	Expired   bool
}

type TokenService interface {
	Inspect(token string) (*TokenInfo, error)
	CheckProfile(profile *domain.Profile) error
}

type tokenService struct {
	now func() time.Time
}

// NewTokenService creates a service that inspects gateway bearer tokens.
// The claims are parsed without signature verification: the viewer only
// warns about expiry, the gateway still enforces validity.
func NewTokenService() TokenService {
	return &tokenService{now: time.Now}
}

func (s *tokenService) Inspect(token string) (*TokenInfo, error) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotJWT, err)
	}

	info := &TokenInfo{Subject: claims.Subject}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
		info.Expired = claims.ExpiresAt.Time.Before(s.now())
	}
	return info, nil
}

// CheckProfile reports domain.ErrTokenExpired when the profile carries a
// JWT whose expiry has passed. Opaque tokens pass the check: their
// lifetime is not observable on the client side.
func (s *tokenService) CheckProfile(profile *domain.Profile) error {
	if profile.Token == "" {
		return nil
	}
	info, err := s.Inspect(profile.Token)
	if errors.Is(err, ErrNotJWT) {
		return nil
	}
	if err != nil {
		return err
	}
	if info.Expired {
		return fmt.Errorf("%w: profile %q expired at %s",
			domain.ErrTokenExpired, profile.Name, info.ExpiresAt.Format(time.RFC3339))
	}
	return nil
}
