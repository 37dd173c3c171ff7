package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"nutrifacts/internal/domain"
)

// HistoryService reads the user's scan history.
type HistoryService struct {
	repo domain.HistoryRepository
}

// NewHistoryService creates a HistoryService backed by repo.
func NewHistoryService(repo domain.HistoryRepository) *HistoryService {
	return &HistoryService{repo: repo}
}

// List fetches the history, newest first. Failures match
// domain.ErrUnauthenticated or domain.ErrFetchFailed.
func (s *HistoryService) List(ctx context.Context, sess domain.Session) ([]domain.HistoryRecord, error) {
	if err := sess.Check(); err != nil {
		return nil, err
	}
	records, err := s.repo.ListHistory(ctx, sess)
	if err != nil {
		if errors.Is(err, domain.ErrFetchFailed) || errors.Is(err, domain.ErrUnauthenticated) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrFetchFailed, err)
	}
	return records, nil
}

// HistoryView is the browsable history: it re-fetches on every
// activation and filters locally.
type HistoryView struct {
	svc      *HistoryService
	sessions SessionSource

	mu      sync.Mutex
	records []domain.HistoryRecord
	loaded  bool
	query   string
	lastErr error
}

// NewHistoryView creates an empty HistoryView.
func NewHistoryView(svc *HistoryService, sessions SessionSource) *HistoryView {
	return &HistoryView{svc: svc, sessions: sessions}
}

// Activate fetches the history. When a fetch fails after an earlier one
// succeeded, the earlier records stay visible and Err reports the failure.
// A missing or rejected session clears them instead.
func (v *HistoryView) Activate(ctx context.Context) error {
	sess, err := v.sessions.Current(ctx)
	if err == nil {
		var records []domain.HistoryRecord
		records, err = v.svc.List(ctx, sess)
		if err == nil {
			v.mu.Lock()
			v.records = records
			v.loaded = true
			v.lastErr = nil
			v.mu.Unlock()
			return nil
		}
	}

	v.mu.Lock()
	v.lastErr = err
	if errors.Is(err, domain.ErrUnauthenticated) || errors.Is(err, domain.ErrInvalidCredential) {
		v.records = nil
		v.loaded = false
	}
	v.mu.Unlock()
	return err
}

// Err returns the failure of the last activation, or nil.
func (v *HistoryView) Err() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.lastErr
}

// Loaded reports whether any fetch has succeeded.
func (v *HistoryView) Loaded() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.loaded
}

// SetQuery sets the product-name filter.
func (v *HistoryView) SetQuery(q string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.query = q
}

// Visible returns the loaded records matching the filter.
func (v *HistoryView) Visible() []domain.HistoryRecord {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]domain.HistoryRecord(nil), domain.FilterHistory(v.records, v.query)...)
}

// Select returns the detail rows of a loaded record. It never fetches.
func (v *HistoryView) Select(id string) ([]domain.DetailRow, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, r := range v.records {
		if r.ID == id {
			return domain.Detail(r), nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
}
