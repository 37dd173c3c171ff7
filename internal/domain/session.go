package domain

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Session holds the bearer credentials issued at login.
type Session struct {
	AccessToken  string
	RefreshToken string
}

// Check validates the session locally before any authenticated call. It
// does not verify signatures; the backend remains the authority.
func (s *Session) Check() error {
	if s == nil || strings.TrimSpace(s.AccessToken) == "" {
		return ErrUnauthenticated
	}
	if _, err := parseUnverified(s.AccessToken); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}
	return nil
}

// ExpiresAt returns the access token's exp claim, if it has one.
func (s *Session) ExpiresAt() (time.Time, bool) {
	if s == nil {
		return time.Time{}, false
	}
	claims, err := parseUnverified(s.AccessToken)
	if err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

func parseUnverified(token string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// KeyValueStore is the port for small persistent device-local values such
// as the session tokens. Get reports ok=false for absent keys.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
}

// Authenticator is the port for the backend's account endpoints.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (Session, error)
	Register(ctx context.Context, email, password string) error
	Refresh(ctx context.Context, refreshToken string) (accessToken string, err error)
}
