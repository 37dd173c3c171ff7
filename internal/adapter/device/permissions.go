// Package device acquires label images from the camera or the gallery and
// copies them into the user's photo album.
package device

import (
	"context"
	"fmt"
	"sync"

	"nutrifacts/internal/domain"
)

// Prompter asks the user to let the app use src. It returns false when the
// user refuses.
type Prompter func(ctx context.Context, src domain.Source) (bool, error)

// Permissions remembers grants for the life of the process. Denials are not
// remembered, so the next request prompts again.
type Permissions struct {
	mu      sync.Mutex
	granted map[domain.Source]bool
	prompt  Prompter
}

// NewPermissions returns a gate that asks prompt. A nil prompt grants
// every request.
func NewPermissions(prompt Prompter) *Permissions {
	return &Permissions{granted: make(map[domain.Source]bool), prompt: prompt}
}

// Request returns nil when src may be used, domain.ErrPermissionDenied when
// the user refused.
func (p *Permissions) Request(ctx context.Context, src domain.Source) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.granted[src] {
		return nil
	}
	if p.prompt != nil {
		ok, err := p.prompt(ctx, src)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s access refused", domain.ErrPermissionDenied, src)
		}
	}
	p.granted[src] = true
	return nil
}
