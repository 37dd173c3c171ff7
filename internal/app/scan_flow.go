package app

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"nutrifacts/internal/domain"
)

// FlowState is a step of the interactive scan flow.
type FlowState int

// Scan flow states.
const (
	FlowIdle FlowState = iota
	FlowLabeling
	FlowProcessing
	FlowDone
)

func (s FlowState) String() string {
	switch s {
	case FlowIdle:
		return "idle"
	case FlowLabeling:
		return "labeling"
	case FlowProcessing:
		return "processing"
	case FlowDone:
		return "done"
	default:
		return "unknown"
	}
}

// ScanFlow drives one scan at a time: acquire an image, name the product,
// submit. A failed submission returns to labeling with the image kept, so
// the user can retry.
type ScanFlow struct {
	svc      *ScanService
	sessions SessionSource

	mu     sync.Mutex
	state  FlowState
	image  domain.CapturedImage
	label  string
	result *ScanResult
}

// NewScanFlow creates an idle ScanFlow.
func NewScanFlow(svc *ScanService, sessions SessionSource) *ScanFlow {
	return &ScanFlow{svc: svc, sessions: sessions}
}

// State returns the current step.
func (f *ScanFlow) State() FlowState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Image returns the image being labelled, if any.
func (f *ScanFlow) Image() (domain.CapturedImage, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.image, f.state == FlowLabeling || f.state == FlowProcessing
}

// Result returns the outcome of the last successful submission.
func (f *ScanFlow) Result() (ScanResult, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.result == nil {
		return ScanResult{}, false
	}
	return *f.result, true
}

// Start acquires an image from src and enters labeling. On failure the
// flow stays idle.
func (f *ScanFlow) Start(ctx context.Context, src domain.Source) (domain.CapturedImage, error) {
	f.mu.Lock()
	if f.state == FlowLabeling || f.state == FlowProcessing {
		f.mu.Unlock()
		return domain.CapturedImage{}, fmt.Errorf("%w: start while %s", ErrFlowState, f.state)
	}
	f.state = FlowIdle
	f.result = nil
	f.mu.Unlock()

	img, err := f.svc.Acquire(ctx, src)
	if err != nil {
		return domain.CapturedImage{}, err
	}
	f.Use(img)
	return img, nil
}

// Use enters labeling with an image acquired elsewhere.
func (f *ScanFlow) Use(img domain.CapturedImage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = FlowLabeling
	f.image = img
	f.label = ""
	f.result = nil
}

// SetLabel sets the product name for the image being labelled.
func (f *ScanFlow) SetLabel(label string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != FlowLabeling {
		return fmt.Errorf("%w: label while %s", ErrFlowState, f.state)
	}
	f.label = label
	return nil
}

// Submit runs the pipeline for the labelled image. An empty label is
// rejected without leaving labeling.
func (f *ScanFlow) Submit(ctx context.Context) (ScanResult, error) {
	f.mu.Lock()
	if f.state != FlowLabeling {
		f.mu.Unlock()
		return ScanResult{}, fmt.Errorf("%w: submit while %s", ErrFlowState, f.state)
	}
	if strings.TrimSpace(f.label) == "" {
		f.mu.Unlock()
		return ScanResult{}, domain.Validationf("product name is required")
	}
	f.state = FlowProcessing
	img, label := f.image, f.label
	f.mu.Unlock()

	res, err := f.run(ctx, img, label)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != FlowProcessing {
		// Reset while the request was in flight.
		return res, err
	}
	if err != nil {
		f.state = FlowLabeling
		return res, err
	}
	f.state = FlowDone
	f.result = &res
	return res, nil
}

func (f *ScanFlow) run(ctx context.Context, img domain.CapturedImage, label string) (ScanResult, error) {
	sess, err := f.sessions.Current(ctx)
	if err != nil {
		return ScanResult{Image: img, Label: label}, err
	}
	return f.svc.Process(ctx, img, label, sess)
}

// Reset discards the image and label and returns to idle. It does not
// cancel a submission in flight; its result is dropped.
func (f *ScanFlow) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = FlowIdle
	f.image = domain.CapturedImage{}
	f.label = ""
	f.result = nil
}
