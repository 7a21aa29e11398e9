// Package memory provides an in-memory SummaryStore for development/testing.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/Sjdjdiejdrirhdkjej/YouTube-video-summariser-sub000/internal/summary"
)

// Store keeps summaries in a map guarded by an RWMutex. Writes are
// last-writer-wins per video ID; no cross-key guarantees.
type Store struct {
	mu        sync.RWMutex
	summaries map[string]summary.StoredSummary
}

// New constructs an empty Store.
func New() *Store {
	return &Store{summaries: make(map[string]summary.StoredSummary)}
}

// Save stores the summary, replacing any previous entry for the video.
func (s *Store) Save(_ context.Context, sum summary.StoredSummary) error {
	if sum.VideoID == "" {
		return errors.New("video id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sum.Sources = append([]string(nil), sum.Sources...)
	s.summaries[sum.VideoID] = sum
	return nil
}

// Get fetches a summary by video ID.
func (s *Store) Get(_ context.Context, videoID string) (summary.StoredSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sum, ok := s.summaries[videoID]
	if !ok {
		return summary.StoredSummary{}, summary.ErrNotFound
	}
	sum.Sources = append([]string(nil), sum.Sources...)
	return sum, nil
}

// Delete removes the summary for the video. Deleting a missing key is a
// no-op so the operation stays idempotent.
func (s *Store) Delete(_ context.Context, videoID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.summaries, videoID)
	return nil
}

// Len reports the number of stored summaries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.summaries)
}
