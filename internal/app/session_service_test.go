package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"nutrifacts/internal/adapter/memory"
	"nutrifacts/internal/app"
	"nutrifacts/internal/domain"
)

func TestSessionService_LoginStoresTokens(t *testing.T) {
	store := memory.New()
	access := signedToken(t, time.Hour)
	auth := &mockAuth{
		loginFn: func(_ context.Context, email, password string) (domain.Session, error) {
			if email != "ana@example.com" || password != "pw" {
				t.Errorf("unexpected credentials %q/%q", email, password)
			}
			return domain.Session{AccessToken: access, RefreshToken: "r1"}, nil
		},
	}
	svc := app.NewSessionService(store, auth)
	ctx := context.Background()

	if _, err := svc.Login(ctx, " ana@example.com ", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	tok, ok, err := svc.AccessToken(ctx)
	if err != nil || !ok || tok != access {
		t.Fatalf("AccessToken = %q, %v, %v", tok, ok, err)
	}
	if v, _, _ := store.Get(ctx, app.KeyRefreshToken); v != "r1" {
		t.Errorf("refresh token not stored, got %q", v)
	}
}

func TestSessionService_LoginValidation(t *testing.T) {
	called := false
	svc := app.NewSessionService(memory.New(), &mockAuth{
		loginFn: func(context.Context, string, string) (domain.Session, error) {
			called = true
			return domain.Session{}, nil
		},
	})
	if _, err := svc.Login(context.Background(), "", "pw"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if called {
		t.Error("authenticator called with missing email")
	}
}

func TestSessionService_LoginFailureStoresNothing(t *testing.T) {
	store := memory.New()
	svc := app.NewSessionService(store, &mockAuth{
		loginFn: func(context.Context, string, string) (domain.Session, error) {
			return domain.Session{}, domain.ErrLoginRejected
		},
	})
	if _, err := svc.Login(context.Background(), "a@b.c", "bad"); !errors.Is(err, domain.ErrLoginRejected) {
		t.Fatalf("expected ErrLoginRejected, got %v", err)
	}
	if store.Len() != 0 {
		t.Error("expected empty store after failed login")
	}
}

func TestSessionService_AbsentToken(t *testing.T) {
	svc := app.NewSessionService(memory.New(), &mockAuth{})
	ctx := context.Background()

	if _, ok, err := svc.AccessToken(ctx); ok || err != nil {
		t.Fatalf("expected absent token, got ok=%v err=%v", ok, err)
	}
	sess, err := svc.Current(ctx)
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if err := sess.Check(); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestSessionService_Logout(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	_ = store.Set(ctx, app.KeyAccessToken, "a")
	_ = store.Set(ctx, app.KeyRefreshToken, "r")
	_ = store.Set(ctx, "theme", "dark")

	svc := app.NewSessionService(store, &mockAuth{})
	if err := svc.Logout(ctx); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, ok, _ := store.Get(ctx, app.KeyAccessToken); ok {
		t.Error("access token survived logout")
	}
	if _, ok, _ := store.Get(ctx, app.KeyRefreshToken); ok {
		t.Error("refresh token survived logout")
	}
	if _, ok, _ := store.Get(ctx, "theme"); !ok {
		t.Error("logout removed unrelated keys")
	}
}

func TestSessionService_Refresh(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	_ = store.Set(ctx, app.KeyAccessToken, signedToken(t, -time.Hour))
	_ = store.Set(ctx, app.KeyRefreshToken, "r1")
	fresh := signedToken(t, time.Hour)

	svc := app.NewSessionService(store, &mockAuth{
		refreshFn: func(_ context.Context, refresh string) (string, error) {
			if refresh != "r1" {
				t.Errorf("unexpected refresh token %q", refresh)
			}
			return fresh, nil
		},
	})
	sess, err := svc.Refresh(ctx)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if sess.AccessToken != fresh || sess.RefreshToken != "r1" {
		t.Fatalf("unexpected session %+v", sess)
	}
	if v, _, _ := store.Get(ctx, app.KeyAccessToken); v != fresh {
		t.Error("refreshed token not stored")
	}
}

func TestSessionService_RefreshWithoutToken(t *testing.T) {
	svc := app.NewSessionService(memory.New(), &mockAuth{})
	if _, err := svc.Refresh(context.Background()); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestSessionService_Fresh(t *testing.T) {
	ctx := context.Background()
	fresh := signedToken(t, time.Hour)

	tests := []struct {
		name        string
		access      string
		wantRefresh bool
	}{
		{"valid token kept", fresh, false},
		{"expired token refreshed", signedToken(t, -time.Minute), true},
		{"nearly expired token refreshed", signedToken(t, 5*time.Second), true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := memory.New()
			_ = store.Set(ctx, app.KeyAccessToken, tc.access)
			_ = store.Set(ctx, app.KeyRefreshToken, "r1")
			refreshed := false
			svc := app.NewSessionService(store, &mockAuth{
				refreshFn: func(context.Context, string) (string, error) {
					refreshed = true
					return fresh, nil
				},
			})

			sess, err := svc.Fresh(ctx)
			if err != nil {
				t.Fatalf("Fresh: %v", err)
			}
			if refreshed != tc.wantRefresh {
				t.Fatalf("refreshed = %v, want %v", refreshed, tc.wantRefresh)
			}
			if tc.wantRefresh && sess.AccessToken != fresh {
				t.Error("expected refreshed access token")
			}
		})
	}
}

func TestSessionService_FreshKeepsSessionWhenRefreshFails(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	stale := signedToken(t, -time.Minute)
	_ = store.Set(ctx, app.KeyAccessToken, stale)
	_ = store.Set(ctx, app.KeyRefreshToken, "r1")
	svc := app.NewSessionService(store, &mockAuth{
		refreshFn: func(context.Context, string) (string, error) { return "", domain.ErrUnauthenticated },
	})

	sess, err := svc.Fresh(ctx)
	if err != nil {
		t.Fatalf("Fresh: %v", err)
	}
	if sess.AccessToken != stale {
		t.Error("expected the stored token to be returned unchanged")
	}
}
