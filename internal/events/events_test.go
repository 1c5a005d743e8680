package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEnvelope(t *testing.T) {
	occurredAt := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
	payload := AttemptFinalizedEvent{
		AttemptID:    42,
		UserID:       "student-1",
		AssessmentID: 7,
		Score:        8,
		MaxScore:     10,
		IsPassed:     true,
		EndReason:    "completed",
		CompletedAt:  &occurredAt,
	}

	envelope, err := NewEnvelope(AttemptFinalized, occurredAt, payload)
	require.NoError(t, err)
	assert.NotEmpty(t, envelope.ID)
	assert.Equal(t, AttemptFinalized, envelope.Type)
	assert.Equal(t, EventSource, envelope.Source)
	assert.Equal(t, EventVersion, envelope.Version)
	assert.Equal(t, occurredAt, envelope.Timestamp)

	// The payload survives the envelope round trip.
	var decoded AttemptFinalizedEvent
	require.NoError(t, json.Unmarshal(envelope.Data, &decoded))
	assert.Equal(t, payload.AttemptID, decoded.AttemptID)
	assert.Equal(t, payload.Score, decoded.Score)
	assert.True(t, decoded.IsPassed)
}

func TestEnvelopeWireFormat(t *testing.T) {
	occurredAt := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
	envelope, err := NewEnvelope(AttemptStarted, occurredAt, AttemptStartedEvent{AttemptID: 1})
	require.NoError(t, err)

	body, err := json.Marshal(envelope)
	require.NoError(t, err)

	var wire map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(body, &wire))
	for _, key := range []string{"id", "type", "source", "version", "timestamp", "data"} {
		assert.Contains(t, wire, key)
	}
}

func TestMemoryPublisher(t *testing.T) {
	p := NewMemoryPublisher()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, p.Publish(ctx, AttemptStarted, now, AttemptStartedEvent{AttemptID: 1}))
	require.NoError(t, p.Publish(ctx, AttemptFinalized, now, AttemptFinalizedEvent{AttemptID: 1}))
	require.NoError(t, p.Publish(ctx, AttemptFinalized, now, AttemptFinalizedEvent{AttemptID: 2}))

	assert.Len(t, p.Envelopes(), 3)
	assert.Len(t, p.ByType(AttemptFinalized), 2)
	assert.Len(t, p.ByType(AttemptStarted), 1)
	assert.NoError(t, p.Close())
}
