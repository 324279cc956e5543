package event

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestType_IsValid(t *testing.T) {
	tests := []struct {
		eventType Type
		want      bool
	}{
		{TypeExpenseSubmitted, true},
		{TypeDecisionRecorded, true},
		{TypeExpenseFinalized, true},
		{TypeExpenseOverridden, true},
		{Type("instance.created"), false},
		{Type(""), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.eventType), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.eventType.IsValid())
		})
	}
}

func TestNewEvent(t *testing.T) {
	evt := NewEvent(TypeExpenseSubmitted, 42, 7, map[string]interface{}{"submitter_id": "u1"})

	_, err := uuid.Parse(evt.ID)
	require.NoError(t, err)
	_, err = uuid.Parse(evt.CorrelationID)
	require.NoError(t, err)
	assert.NotEqual(t, evt.ID, evt.CorrelationID)
	assert.Equal(t, int64(42), evt.ExpenseID)
	assert.Equal(t, int64(7), evt.CompanyID)
	assert.Equal(t, "u1", evt.Payload["submitter_id"])
	assert.False(t, evt.Timestamp.IsZero())
}

func TestNewEvent_NilPayload(t *testing.T) {
	evt := NewEvent(TypeExpenseFinalized, 1, 1, nil)
	require.NotNil(t, evt.Payload)
	assert.Empty(t, evt.Payload)
}

func TestNewEventWithCorrelation(t *testing.T) {
	evt := NewEventWithCorrelation(TypeExpenseFinalized, 1, 1, nil, "corr-1")
	assert.Equal(t, "corr-1", evt.CorrelationID)
}
