package model

import (
	"encoding/json"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boardpilot/itemagent/internal/catalog"
)

func TestMergeValuesOverwritesAndGrows(t *testing.T) {
	s := &ConversationState{}

	s.MergeValues(map[string]any{"Summary": "vacation"})
	require.Equal(t, map[string]any{"Summary": "vacation"}, s.PendingValues)

	s.MergeValues(map[string]any{"Summary": "sick leave", "Start_Date": "2026-09-01"})
	assert.Equal(t, "sick leave", s.PendingValues["Summary"])
	assert.Equal(t, "2026-09-01", s.PendingValues["Start_Date"])
	assert.Len(t, s.PendingValues, 2)
}

func TestMergeValuesEmptyIsNoop(t *testing.T) {
	s := &ConversationState{}
	s.MergeValues(nil)
	assert.Nil(t, s.PendingValues)
}

func TestMissingRequiredFollowsCatalogOrder(t *testing.T) {
	s := &ConversationState{
		Catalog: []catalog.Field{
			{ID: "Summary", Required: true},
			{ID: "End_Date"},
			{ID: "Start_Date", Required: true},
		},
	}

	assert.Equal(t, []string{"Summary", "Start_Date"}, s.MissingRequired())

	s.MergeValues(map[string]any{"Summary": "vacation"})
	assert.Equal(t, []string{"Start_Date"}, s.MissingRequired())

	s.MergeValues(map[string]any{"Start_Date": "2026-09-01"})
	assert.Empty(t, s.MissingRequired())
}

func TestClearAttemptKeepsAccumulatedState(t *testing.T) {
	s := &ConversationState{
		PendingValues:    map[string]any{"Summary": "vacation"},
		LastPayload:      `{"Summary": "vacation"}`,
		ValidationErrors: []string{"boom"},
		ToolIterations:   2,
		RetryFromScratch: true,
	}

	s.ClearAttempt()

	assert.Empty(t, s.ValidationErrors)
	assert.Empty(t, s.LastPayload)
	assert.Equal(t, map[string]any{"Summary": "vacation"}, s.PendingValues)
	assert.Equal(t, 2, s.ToolIterations)
	assert.True(t, s.RetryFromScratch)
}

func TestNextToolCallIDSequence(t *testing.T) {
	s := &ConversationState{}
	assert.Equal(t, "call_1", s.NextToolCallID())
	assert.Equal(t, "call_2", s.NextToolCallID())
}

func TestStateCheckpointRoundTrip(t *testing.T) {
	s := &ConversationState{
		ThreadID:  "t-1",
		Flow:      "Leave management",
		Operation: "create",
		Transcript: []*schema.Message{
			schema.SystemMessage("instructions"),
			schema.UserMessage("book my vacation"),
		},
		Catalog:          []catalog.Field{{ID: "Summary", Required: true}},
		PendingValues:    map[string]any{"Summary": "vacation"},
		ValidationErrors: []string{"Missing required fields: Start_Date"},
		RetryCount:       1,
		RetryFromScratch: true,
		Suspend: &SuspendRecord{
			Question:      "Please provide values for the missing required fields: Start_Date",
			MissingFields: []string{"Start_Date"},
			Origin:        "item_creator",
		},
		Resuming:      true,
		ToolCallIDSeq: 3,
	}

	raw, err := json.Marshal(s)
	require.NoError(t, err)

	var restored ConversationState
	require.NoError(t, json.Unmarshal(raw, &restored))

	assert.Equal(t, s.ThreadID, restored.ThreadID)
	assert.Equal(t, s.PendingValues, restored.PendingValues)
	assert.Equal(t, s.RetryCount, restored.RetryCount)
	assert.True(t, restored.RetryFromScratch)
	require.NotNil(t, restored.Suspend)
	assert.Equal(t, []string{"Start_Date"}, restored.Suspend.MissingFields)
	require.Len(t, restored.Transcript, 2)
	assert.Equal(t, schema.User, restored.Transcript[1].Role)

	// Run-local fields never travel through a checkpoint.
	assert.False(t, restored.Resuming)
	assert.Zero(t, restored.ToolCallIDSeq)
}
