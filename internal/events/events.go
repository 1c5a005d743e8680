package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types emitted by the attempt lifecycle.
const (
	AttemptStarted   = "assessment.attempt.started"
	AttemptFinalized = "assessment.attempt.finalized"
)

// EventSource identifies this service in event envelopes.
const EventSource = "assessment-core"

// EventVersion is the envelope schema version.
const EventVersion = "1.0"

// Envelope is the wire format shared by every event. Data holds the
// type-specific payload.
type Envelope struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Source    string          `json:"source"`
	Version   string          `json:"version"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// NewEnvelope wraps a payload in a fresh envelope.
func NewEnvelope(eventType string, occurredAt time.Time, payload interface{}) (*Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Envelope{
		ID:        uuid.NewString(),
		Type:      eventType,
		Source:    EventSource,
		Version:   EventVersion,
		Timestamp: occurredAt,
		Data:      data,
	}, nil
}

// AttemptStartedEvent announces a new attempt.
type AttemptStartedEvent struct {
	AttemptID     uint       `json:"attempt_id"`
	UserID        string     `json:"user_id"`
	AssessmentID  uint       `json:"assessment_id"`
	AttemptNumber int        `json:"attempt_number"`
	StartedAt     *time.Time `json:"started_at"`
}

// AttemptFinalizedEvent carries the outcome of a finalized attempt for
// analytics consumers. Emitted exactly once per attempt, after commit.
type AttemptFinalizedEvent struct {
	AttemptID    uint       `json:"attempt_id"`
	UserID       string     `json:"user_id"`
	AssessmentID uint       `json:"assessment_id"`
	Score        int        `json:"score"`
	MaxScore     int        `json:"max_score"`
	IsPassed     bool       `json:"is_passed"`
	EndReason    string     `json:"end_reason"`
	CompletedAt  *time.Time `json:"completed_at"`
}
