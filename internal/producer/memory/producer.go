// Package memory contains a scripted text producer for development and tests.
package memory

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

// Producer replays scripted deltas with optional per-delta delay and failure
// injection. FailAfter counts deltas emitted before Err is returned; a value
// at or past the script length fails after the final delta.
type Producer struct {
	Deltas    []string
	Delay     time.Duration
	Err       error
	FailAfter int

	mu         sync.Mutex
	lastPrompt string
}

// New returns a Producer that replays the given deltas.
func New(deltas ...string) *Producer {
	return &Producer{Deltas: deltas}
}

// Produce emits the scripted deltas in order and returns their
// concatenation.
func (p *Producer) Produce(ctx context.Context, prompt string, emit func(delta string) error) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", errors.New("produce: prompt required")
	}

	p.mu.Lock()
	p.lastPrompt = prompt
	p.mu.Unlock()

	var full strings.Builder
	for i, delta := range p.Deltas {
		if p.Err != nil && i >= p.FailAfter {
			return "", p.Err
		}
		if p.Delay > 0 {
			timer := time.NewTimer(p.Delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return "", ctx.Err()
			case <-timer.C:
			}
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}
		full.WriteString(delta)
		if emit != nil {
			if err := emit(delta); err != nil {
				return "", err
			}
		}
	}
	if p.Err != nil && p.FailAfter >= len(p.Deltas) {
		return "", p.Err
	}
	return full.String(), nil
}

// LastPrompt returns the prompt from the most recent Produce call.
func (p *Producer) LastPrompt() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastPrompt
}
