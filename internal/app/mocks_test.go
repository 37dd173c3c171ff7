package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"nutrifacts/internal/domain"
)

func signedToken(t *testing.T, ttl time.Duration) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": 7,
		"exp":     time.Now().Add(ttl).Unix(),
	}).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return tok
}

func validSession(t *testing.T) domain.Session {
	return domain.Session{AccessToken: signedToken(t, time.Hour), RefreshToken: "refresh-1"}
}

type mockRecognizer struct {
	calls       int
	recognizeFn func(ctx context.Context, sess domain.Session, img domain.CapturedImage) (domain.RawNutrition, error)
}

func (m *mockRecognizer) Recognize(ctx context.Context, sess domain.Session, img domain.CapturedImage) (domain.RawNutrition, error) {
	m.calls++
	if m.recognizeFn != nil {
		return m.recognizeFn(ctx, sess, img)
	}
	return oatBar(), nil
}

type mockHistoryRepo struct {
	saveCalls int
	listCalls int
	saveFn    func(ctx context.Context, sess domain.Session, rec domain.NewRecord) (*domain.HistoryRecord, error)
	listFn    func(ctx context.Context, sess domain.Session) ([]domain.HistoryRecord, error)
}

func (m *mockHistoryRepo) SaveRecord(ctx context.Context, sess domain.Session, rec domain.NewRecord) (*domain.HistoryRecord, error) {
	m.saveCalls++
	if m.saveFn != nil {
		return m.saveFn(ctx, sess, rec)
	}
	return &domain.HistoryRecord{ID: "1", ProductName: rec.ProductName, Raw: rec.Raw, Derived: rec.Derived}, nil
}

func (m *mockHistoryRepo) ListHistory(ctx context.Context, sess domain.Session) ([]domain.HistoryRecord, error) {
	m.listCalls++
	if m.listFn != nil {
		return m.listFn(ctx, sess)
	}
	return nil, nil
}

type mockImageSource struct {
	acquireFn func(ctx context.Context, src domain.Source) (domain.CapturedImage, error)
}

func (m *mockImageSource) Acquire(ctx context.Context, src domain.Source) (domain.CapturedImage, error) {
	if m.acquireFn != nil {
		return m.acquireFn(ctx, src)
	}
	return domain.CapturedImage{ID: "img-1", LocalURI: "/tmp/label.jpg", Source: src}, nil
}

type mockAuth struct {
	loginFn    func(ctx context.Context, email, password string) (domain.Session, error)
	registerFn func(ctx context.Context, email, password string) error
	refreshFn  func(ctx context.Context, refreshToken string) (string, error)
}

func (m *mockAuth) Login(ctx context.Context, email, password string) (domain.Session, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, email, password)
	}
	return domain.Session{}, nil
}

func (m *mockAuth) Register(ctx context.Context, email, password string) error {
	if m.registerFn != nil {
		return m.registerFn(ctx, email, password)
	}
	return nil
}

func (m *mockAuth) Refresh(ctx context.Context, refreshToken string) (string, error) {
	if m.refreshFn != nil {
		return m.refreshFn(ctx, refreshToken)
	}
	return "", nil
}

type staticSessions struct {
	sess domain.Session
	err  error
}

func (s staticSessions) Current(context.Context) (domain.Session, error) {
	return s.sess, s.err
}

func oatBar() domain.RawNutrition {
	return domain.RawNutrition{
		Fat: 15, SaturatedFat: 3, Carbohydrates: 60, Fiber: 7, Sugars: 20, Protein: 10,
		NutriScore: domain.NutriScoreC,
	}
}
