package headless

import (
	"context"

	"github.com/Sjdjdiejdrirhdkjej/YouTube-video-summariser-sub000/internal/summary"
)

// Noop implements Fetcher but always reports unavailability, for builds and
// deployments where rendering is disabled.
type Noop struct{}

// NewNoop creates a new Noop fetcher.
func NewNoop() *Noop {
	return &Noop{}
}

// Fetch returns an error since this is a stub implementation.
func (Noop) Fetch(_ context.Context, _ summary.FetchRequest) (summary.FetchResponse, error) {
	return summary.FetchResponse{}, &summary.FetchError{Reason: "headless fetcher not configured"}
}
