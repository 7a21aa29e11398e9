// Package progress defines the event structures emitted by the summary pipeline.
package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageSessionStart Stage = "SESSION_START"
	StageSessionDone  Stage = "SESSION_DONE"
	StageSessionError Stage = "SESSION_ERROR"
	StageGatherDone   Stage = "GATHER_DONE"
	StageSourceDone   Stage = "SOURCE_DONE"
	StageSourceError  Stage = "SOURCE_ERROR"
	StagePromptBuilt  Stage = "PROMPT_BUILT"
	StageProduceDone  Stage = "PRODUCE_DONE"
	StageArchiveDone  Stage = "ARCHIVE_DONE"
	StageArchiveError Stage = "ARCHIVE_ERROR"
)

// Event captures a single milestone of a summarization session. Events feed
// observability sinks only; they are never persisted and never written to
// the SSE stream.
type Event struct {
	// SessionID uniquely identifies a streaming session using the 16-byte UUID form.
	SessionID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which pipeline milestone occurred.
	Stage Stage
	// VideoID optionally scopes the event to the video being summarized.
	VideoID string
	// Source names the signal source for SOURCE_DONE and SOURCE_ERROR events.
	Source string
	// Note lets emitters attach low-volume debug context (e.g. error text).
	Note string
	// Dur captures execution latency for source settlements and stage completions.
	Dur time.Duration
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.SessionID == [16]byte{} {
		return errors.New("session id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageSessionStart, StageSessionDone, StageSessionError:
	case StageGatherDone, StagePromptBuilt, StageProduceDone:
	case StageArchiveDone, StageArchiveError:
	case StageSourceDone, StageSourceError:
		if e.Source == "" {
			return fmt.Errorf("%s requires source", e.Stage)
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// SessionUUID converts the binary session ID back to uuid.UUID for logging.
func (e Event) SessionUUID() uuid.UUID {
	return uuid.UUID(e.SessionID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}
