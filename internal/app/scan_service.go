package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"nutrifacts/internal/async"
	"nutrifacts/internal/domain"
)

// DefaultScanTimeout bounds a recognition request.
const DefaultScanTimeout = 30 * time.Second

// Event is a step of a scan reported to the observer.
type Event int

// Scan events, in the order they can occur.
const (
	EventStarted Event = iota + 1
	EventRecognized
	EventSaved
	EventSaveFailed
	EventFailed
)

func (e Event) String() string {
	switch e {
	case EventStarted:
		return "started"
	case EventRecognized:
		return "recognized"
	case EventSaved:
		return "saved"
	case EventSaveFailed:
		return "save_failed"
	case EventFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ScanEvent is delivered to the observer as a scan progresses. Err is set
// for EventSaveFailed and EventFailed.
type ScanEvent struct {
	Kind   Event
	Result ScanResult
	Err    error
}

// Observer receives scan events. It is called synchronously.
type Observer func(ScanEvent)

// ScanResult is the outcome of a scan. Raw and Derived are valid whenever
// recognition succeeded, even if the save did not; SaveErr is then a
// warning for the user.
type ScanResult struct {
	Image   domain.CapturedImage
	Label   string
	Raw     domain.RawNutrition
	Derived domain.DerivedMetrics
	Record  *domain.HistoryRecord
	SaveErr error
}

// ScanService runs the scan-to-history pipeline.
type ScanService struct {
	recognizer domain.Recognizer
	history    domain.HistoryRepository
	images     domain.ImageSource
	timeout    time.Duration
	observe    Observer
}

// ScanOption configures a ScanService.
type ScanOption func(*ScanService)

// WithScanTimeout overrides DefaultScanTimeout.
func WithScanTimeout(d time.Duration) ScanOption {
	return func(s *ScanService) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithObserver registers o for scan events.
func WithObserver(o Observer) ScanOption {
	return func(s *ScanService) { s.observe = o }
}

// NewScanService creates a ScanService.
func NewScanService(rec domain.Recognizer, history domain.HistoryRepository, images domain.ImageSource, opts ...ScanOption) *ScanService {
	s := &ScanService{recognizer: rec, history: history, images: images, timeout: DefaultScanTimeout}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Acquire obtains a label image from src.
func (s *ScanService) Acquire(ctx context.Context, src domain.Source) (domain.CapturedImage, error) {
	if s.images == nil {
		return domain.CapturedImage{}, ErrNoImageSource
	}
	return s.images.Acquire(ctx, src)
}

// SubmitScan uploads img for recognition. It checks the label and the
// session before any network call, and gives up with domain.ErrTimeout
// once the scan timeout elapses; a response arriving later is dropped.
func (s *ScanService) SubmitScan(ctx context.Context, img domain.CapturedImage, label string, sess domain.Session) (domain.RawNutrition, error) {
	if strings.TrimSpace(label) == "" {
		return domain.RawNutrition{}, domain.Validationf("product name is required")
	}
	if err := sess.Check(); err != nil {
		return domain.RawNutrition{}, err
	}

	raw, err := async.Race(ctx, s.timeout, func(ctx context.Context) (domain.RawNutrition, error) {
		return s.recognizer.Recognize(ctx, sess, img)
	})
	if errors.Is(err, async.ErrTimedOut) {
		return domain.RawNutrition{}, fmt.Errorf("%w after %s", domain.ErrTimeout, s.timeout)
	}
	if err != nil {
		return domain.RawNutrition{}, err
	}
	return raw, nil
}

// SaveRecord archives a recognized scan. Every failure matches
// domain.ErrPersistenceFailed.
func (s *ScanService) SaveRecord(ctx context.Context, raw domain.RawNutrition, derived domain.DerivedMetrics, label string, sess domain.Session) (*domain.HistoryRecord, error) {
	rec, err := domain.PrepareRecord(raw, derived, label)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrPersistenceFailed, err)
	}
	if err := sess.Check(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrPersistenceFailed, err)
	}
	if len(rec.Filled) > 0 {
		log.Printf("warn: saving %q with defaults for %s", rec.ProductName, strings.Join(rec.Filled, ", "))
	}

	saved, err := s.history.SaveRecord(ctx, sess, rec)
	if err != nil {
		if errors.Is(err, domain.ErrPersistenceFailed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrPersistenceFailed, err)
	}
	return saved, nil
}

// Process runs a full scan: recognize, derive, then save. The returned
// error is set only when recognition failed; a failed save is reported in
// ScanResult.SaveErr.
func (s *ScanService) Process(ctx context.Context, img domain.CapturedImage, label string, sess domain.Session) (ScanResult, error) {
	res := ScanResult{Image: img, Label: strings.TrimSpace(label)}
	s.emit(EventStarted, res, nil)

	raw, err := s.SubmitScan(ctx, img, label, sess)
	if err != nil {
		s.emit(EventFailed, res, err)
		return res, err
	}
	res.Raw = raw
	res.Derived = domain.Derive(raw)
	s.emit(EventRecognized, res, nil)

	rec, err := s.SaveRecord(ctx, res.Raw, res.Derived, label, sess)
	if err != nil {
		log.Printf("warn: scan of %q recognized but not saved: %v", res.Label, err)
		res.SaveErr = err
		s.emit(EventSaveFailed, res, err)
		return res, nil
	}
	res.Record = rec
	s.emit(EventSaved, res, nil)
	return res, nil
}

func (s *ScanService) emit(kind Event, res ScanResult, err error) {
	if s.observe != nil {
		s.observe(ScanEvent{Kind: kind, Result: res, Err: err})
	}
}
