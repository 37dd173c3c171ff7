package app_test

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"nutrifacts/internal/app"
	"nutrifacts/internal/domain"
)

var testImage = domain.CapturedImage{ID: "img-1", LocalURI: "/tmp/label.jpg", Source: domain.SourceCamera}

func TestSubmitScan_Preconditions(t *testing.T) {
	tests := []struct {
		name  string
		label string
		sess  domain.Session
		want  error
	}{
		{"empty label", "", validSession(t), domain.ErrValidation},
		{"blank label", "   ", validSession(t), domain.ErrValidation},
		{"absent token", "Oat Bar", domain.Session{}, domain.ErrUnauthenticated},
		{"malformed token", "Oat Bar", domain.Session{AccessToken: "not-a-token"}, domain.ErrInvalidCredential},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := &mockRecognizer{}
			svc := app.NewScanService(rec, &mockHistoryRepo{}, nil)

			_, err := svc.SubmitScan(context.Background(), testImage, tc.label, tc.sess)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if rec.calls != 0 {
				t.Fatalf("expected no network call, got %d", rec.calls)
			}
		})
	}
}

func TestSubmitScan_Success(t *testing.T) {
	sess := validSession(t)
	rec := &mockRecognizer{
		recognizeFn: func(_ context.Context, got domain.Session, img domain.CapturedImage) (domain.RawNutrition, error) {
			if got.AccessToken != sess.AccessToken || img.ID != testImage.ID {
				t.Errorf("unexpected arguments %+v %+v", got, img)
			}
			return oatBar(), nil
		},
	}
	svc := app.NewScanService(rec, &mockHistoryRepo{}, nil)

	raw, err := svc.SubmitScan(context.Background(), testImage, "Oat Bar", sess)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(raw, oatBar()) {
		t.Fatalf("unexpected profile %+v", raw)
	}
	if rec.calls != 1 {
		t.Fatalf("expected exactly one call, got %d", rec.calls)
	}
}

func TestSubmitScan_Timeout(t *testing.T) {
	late := make(chan struct{})
	rec := &mockRecognizer{
		recognizeFn: func(ctx context.Context, _ domain.Session, _ domain.CapturedImage) (domain.RawNutrition, error) {
			<-ctx.Done()
			close(late)
			return oatBar(), nil
		},
	}
	svc := app.NewScanService(rec, &mockHistoryRepo{}, nil, app.WithScanTimeout(20*time.Millisecond))

	raw, err := svc.SubmitScan(context.Background(), testImage, "Oat Bar", validSession(t))
	if !errors.Is(err, domain.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if !reflect.DeepEqual(raw, domain.RawNutrition{}) {
		t.Fatalf("late result leaked: %+v", raw)
	}
	select {
	case <-late:
	case <-time.After(time.Second):
		t.Fatal("in-flight request was not abandoned")
	}
}

func TestSubmitScan_RecognitionFailure(t *testing.T) {
	rec := &mockRecognizer{
		recognizeFn: func(context.Context, domain.Session, domain.CapturedImage) (domain.RawNutrition, error) {
			return domain.RawNutrition{}, &domain.RemoteError{Kind: domain.ErrRecognitionFailed, Status: 404, Message: "No text detected"}
		},
	}
	svc := app.NewScanService(rec, &mockHistoryRepo{}, nil)
	if _, err := svc.SubmitScan(context.Background(), testImage, "Oat Bar", validSession(t)); !errors.Is(err, domain.ErrRecognitionFailed) {
		t.Fatalf("expected ErrRecognitionFailed, got %v", err)
	}
}

func TestSaveRecord(t *testing.T) {
	var sent domain.NewRecord
	repo := &mockHistoryRepo{
		saveFn: func(_ context.Context, _ domain.Session, rec domain.NewRecord) (*domain.HistoryRecord, error) {
			sent = rec
			return &domain.HistoryRecord{ID: "9", ProductName: rec.ProductName}, nil
		},
	}
	svc := app.NewScanService(&mockRecognizer{}, repo, nil)
	raw := oatBar()
	raw.NutriScore = ""
	raw.Missing = []string{domain.FieldSodium, domain.FieldNutriScore}

	got, err := svc.SaveRecord(context.Background(), raw, domain.Derive(raw), " Oat Bar ", validSession(t))
	if err != nil {
		t.Fatalf("SaveRecord: %v", err)
	}
	if got.ID != "9" {
		t.Errorf("unexpected record %+v", got)
	}
	if sent.ProductName != "Oat Bar" || sent.Raw.NutriScore != domain.DefaultNutriScore || sent.Brand != domain.PlaceholderBrand {
		t.Errorf("unexpected payload %+v", sent)
	}
	if len(sent.Filled) != 2 {
		t.Errorf("expected filled fields to be recorded, got %v", sent.Filled)
	}
}

func TestSaveRecord_Failures(t *testing.T) {
	tests := []struct {
		name      string
		label     string
		sess      domain.Session
		repoErr   error
		wantCalls int
		alsoIs    error
	}{
		{"empty label", "", validSession(t), nil, 0, domain.ErrValidation},
		{"absent token", "Oat Bar", domain.Session{}, nil, 0, domain.ErrUnauthenticated},
		{"backend refused", "Oat Bar", validSession(t), &domain.RemoteError{Kind: domain.ErrPersistenceFailed, Status: 500}, 1, nil},
		{"session expired", "Oat Bar", validSession(t), &domain.RemoteError{Kind: domain.ErrUnauthenticated, Status: 401}, 1, domain.ErrUnauthenticated},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			repo := &mockHistoryRepo{
				saveFn: func(context.Context, domain.Session, domain.NewRecord) (*domain.HistoryRecord, error) {
					return nil, tc.repoErr
				},
			}
			svc := app.NewScanService(&mockRecognizer{}, repo, nil)

			_, err := svc.SaveRecord(context.Background(), oatBar(), domain.Derive(oatBar()), tc.label, tc.sess)
			if !errors.Is(err, domain.ErrPersistenceFailed) {
				t.Fatalf("expected ErrPersistenceFailed, got %v", err)
			}
			if tc.alsoIs != nil && !errors.Is(err, tc.alsoIs) {
				t.Errorf("expected %v to be preserved, got %v", tc.alsoIs, err)
			}
			if repo.saveCalls != tc.wantCalls {
				t.Errorf("expected %d save calls, got %d", tc.wantCalls, repo.saveCalls)
			}
		})
	}
}

func TestProcess_OatBar(t *testing.T) {
	var events []app.Event
	repo := &mockHistoryRepo{}
	svc := app.NewScanService(&mockRecognizer{}, repo, nil,
		app.WithObserver(func(ev app.ScanEvent) { events = append(events, ev.Kind) }))

	res, err := svc.Process(context.Background(), testImage, "Oat Bar", validSession(t))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.Derived.Calories != 415 || res.Derived.WaterGrams != 11 {
		t.Errorf("unexpected derived metrics %+v", res.Derived)
	}
	if res.Record == nil || res.SaveErr != nil || repo.saveCalls != 1 {
		t.Errorf("expected record to be saved: %+v", res)
	}
	want := []app.Event{app.EventStarted, app.EventRecognized, app.EventSaved}
	if len(events) != len(want) {
		t.Fatalf("events = %v, want %v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("events = %v, want %v", events, want)
		}
	}
}

func TestProcess_TimeoutSkipsSave(t *testing.T) {
	rec := &mockRecognizer{
		recognizeFn: func(ctx context.Context, _ domain.Session, _ domain.CapturedImage) (domain.RawNutrition, error) {
			<-ctx.Done()
			return domain.RawNutrition{}, ctx.Err()
		},
	}
	repo := &mockHistoryRepo{}
	var last app.ScanEvent
	svc := app.NewScanService(rec, repo, nil,
		app.WithScanTimeout(10*time.Millisecond),
		app.WithObserver(func(ev app.ScanEvent) { last = ev }))

	if _, err := svc.Process(context.Background(), testImage, "Oat Bar", validSession(t)); !errors.Is(err, domain.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if repo.saveCalls != 0 {
		t.Fatalf("expected no save attempt, got %d", repo.saveCalls)
	}
	if last.Kind != app.EventFailed || !errors.Is(last.Err, domain.ErrTimeout) {
		t.Errorf("unexpected last event %+v", last)
	}
}

func TestProcess_SaveFailureKeepsScan(t *testing.T) {
	repo := &mockHistoryRepo{
		saveFn: func(context.Context, domain.Session, domain.NewRecord) (*domain.HistoryRecord, error) {
			return nil, &domain.RemoteError{Kind: domain.ErrPersistenceFailed, Status: 500, Message: "db down"}
		},
	}
	var kinds []app.Event
	svc := app.NewScanService(&mockRecognizer{}, repo, nil,
		app.WithObserver(func(ev app.ScanEvent) { kinds = append(kinds, ev.Kind) }))

	res, err := svc.Process(context.Background(), testImage, "Oat Bar", validSession(t))
	if err != nil {
		t.Fatalf("save failure must not fail the scan: %v", err)
	}
	if !errors.Is(res.SaveErr, domain.ErrPersistenceFailed) {
		t.Fatalf("expected save warning, got %v", res.SaveErr)
	}
	if !reflect.DeepEqual(res.Raw, oatBar()) || res.Derived.Calories != 415 {
		t.Errorf("scan data lost: %+v", res)
	}
	if res.Record != nil {
		t.Error("expected no record")
	}
	if kinds[len(kinds)-1] != app.EventSaveFailed {
		t.Errorf("expected last event save_failed, got %v", kinds)
	}
}

func TestEvent_String(t *testing.T) {
	if app.EventSaveFailed.String() != "save_failed" || app.Event(99).String() != "unknown" {
		t.Fatal("unexpected event names")
	}
}

func TestAcquire_NoImageSource(t *testing.T) {
	svc := app.NewScanService(&mockRecognizer{}, &mockHistoryRepo{}, nil)
	_, err := svc.Acquire(context.Background(), domain.SourceCamera)
	if !errors.Is(err, app.ErrNoImageSource) {
		t.Fatalf("expected ErrNoImageSource, got %v", err)
	}
	if errors.Is(err, domain.ErrPermissionDenied) {
		t.Errorf("missing source reported as a refused permission: %v", err)
	}
}
