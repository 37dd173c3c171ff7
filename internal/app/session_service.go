// Package app holds the application services and business logic.
package app

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"nutrifacts/internal/domain"
)

// Store keys for the session tokens.
const (
	KeyAccessToken  = "access"
	KeyRefreshToken = "refresh"
)

// refreshSkew refreshes tokens slightly before they expire.
const refreshSkew = 30 * time.Second

var (
	// ErrFlowState indicates that a scan flow step was called out of order.
	ErrFlowState = errors.New("invalid scan flow state")
	// ErrRecordNotFound indicates that the requested history record is not loaded.
	ErrRecordNotFound = errors.New("record not found")
	// ErrNoImageSource indicates that the scan service was built without an image source.
	ErrNoImageSource = errors.New("no image source configured")
)

// SessionSource supplies the current session to the pipeline.
type SessionSource interface {
	Current(ctx context.Context) (domain.Session, error)
}

// SessionService owns the stored session tokens.
type SessionService struct {
	store domain.KeyValueStore
	auth  domain.Authenticator
	now   func() time.Time
}

var _ SessionSource = (*SessionService)(nil)

// NewSessionService creates a SessionService over store, using auth for
// the account endpoints.
func NewSessionService(store domain.KeyValueStore, auth domain.Authenticator) *SessionService {
	return &SessionService{store: store, auth: auth, now: time.Now}
}

// AccessToken returns the stored access token, if any.
func (s *SessionService) AccessToken(ctx context.Context) (string, bool, error) {
	tok, ok, err := s.store.Get(ctx, KeyAccessToken)
	if err != nil || !ok || strings.TrimSpace(tok) == "" {
		return "", false, err
	}
	return tok, true, nil
}

// Current returns the stored session. An absent token yields an empty
// session, which the pipeline rejects as unauthenticated.
func (s *SessionService) Current(ctx context.Context) (domain.Session, error) {
	access, _, err := s.AccessToken(ctx)
	if err != nil {
		return domain.Session{}, err
	}
	refresh, _, err := s.store.Get(ctx, KeyRefreshToken)
	if err != nil {
		return domain.Session{}, err
	}
	return domain.Session{AccessToken: access, RefreshToken: refresh}, nil
}

// Login authenticates and stores the issued tokens.
func (s *SessionService) Login(ctx context.Context, email, password string) (domain.Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return domain.Session{}, domain.Validationf("email and password are required")
	}
	sess, err := s.auth.Login(ctx, email, password)
	if err != nil {
		return domain.Session{}, err
	}
	if err := s.save(ctx, sess); err != nil {
		return domain.Session{}, err
	}
	return sess, nil
}

// Register creates an account without logging in.
func (s *SessionService) Register(ctx context.Context, email, password string) error {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return domain.Validationf("email and password are required")
	}
	return s.auth.Register(ctx, email, password)
}

// Logout forgets both tokens.
func (s *SessionService) Logout(ctx context.Context) error {
	return s.store.Delete(ctx, KeyAccessToken, KeyRefreshToken)
}

// Refresh trades the stored refresh token for a new access token.
func (s *SessionService) Refresh(ctx context.Context) (domain.Session, error) {
	sess, err := s.Current(ctx)
	if err != nil {
		return domain.Session{}, err
	}
	if strings.TrimSpace(sess.RefreshToken) == "" {
		return domain.Session{}, domain.ErrUnauthenticated
	}
	access, err := s.auth.Refresh(ctx, sess.RefreshToken)
	if err != nil {
		return domain.Session{}, err
	}
	sess.AccessToken = access
	if err := s.store.Set(ctx, KeyAccessToken, access); err != nil {
		return domain.Session{}, err
	}
	return sess, nil
}

// Fresh returns the current session, refreshing the access token first when
// it has expired. A failed refresh leaves the session as it was.
func (s *SessionService) Fresh(ctx context.Context) (domain.Session, error) {
	sess, err := s.Current(ctx)
	if err != nil || sess.AccessToken == "" || sess.RefreshToken == "" {
		return sess, err
	}
	exp, ok := sess.ExpiresAt()
	if !ok || s.now().Add(refreshSkew).Before(exp) {
		return sess, nil
	}
	refreshed, err := s.Refresh(ctx)
	if err != nil {
		log.Printf("warn: token refresh failed: %v", err)
		return sess, nil
	}
	return refreshed, nil
}

func (s *SessionService) save(ctx context.Context, sess domain.Session) error {
	if err := s.store.Set(ctx, KeyAccessToken, sess.AccessToken); err != nil {
		return err
	}
	if sess.RefreshToken == "" {
		return s.store.Delete(ctx, KeyRefreshToken)
	}
	return s.store.Set(ctx, KeyRefreshToken, sess.RefreshToken)
}
