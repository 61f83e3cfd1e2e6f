package model

import (
	"fmt"

	"github.com/cloudwego/eino/schema"

	"github.com/boardpilot/itemagent/internal/catalog"
)

// ConversationState stores per-invocation state for the Eino Graph.
// Concurrency model:
//   - This struct is registered as Graph Local State via compose.WithGenLocalState.
//   - All reads/writes happen only inside Eino state handlers:
//     WithStatePreHandler, WithStatePostHandler, or compose.ProcessState.
//   - Eino serializes access to state within these handlers, so no additional
//     mutex/atomic is required as long as you never touch it outside handlers.
//   - Do not access ConversationState directly from outside handlers. For
//     persistence, use repositories (e.g., CheckpointRepository).
//
// The struct is JSON-serializable so a suspended run can be checkpointed and
// resumed in a later process.
type ConversationState struct {
	ThreadID          string `json:"thread_id"`
	Flow              string `json:"flow"`
	Operation         string `json:"operation"`
	CurrentUserID     string `json:"current_user_id,omitempty"`
	AdditionalContext string `json:"additional_context,omitempty"`

	Transcript []*schema.Message `json:"transcript"`
	Catalog    []catalog.Field   `json:"catalog"`

	// PendingValues accumulates field values across attempts. Merging only
	// grows or overwrites entries, it never drops them.
	PendingValues    map[string]any `json:"pending_values,omitempty"`
	LastPayload      string         `json:"last_payload,omitempty"`
	ValidationErrors []string       `json:"validation_errors,omitempty"`
	RetryCount       int            `json:"retry_count"`
	ToolIterations   int            `json:"tool_iterations"`
	RetryFromScratch bool           `json:"retry_from_scratch,omitempty"`
	Suspend          *SuspendRecord `json:"suspend,omitempty"`

	Resuming      bool `json:"-"` // set by ingest when continuing from a checkpoint
	ToolCallIDSeq int  `json:"-"` // local sequence to synthesize tool_call_id when provider omits

	// Accumulated total LLM cost (USD) across model invocations for this run
	TotalCostUSD float64 `json:"total_cost_usd,omitempty"`
}

// SuspendRecord captures why a run was paused and what to ask the user.
type SuspendRecord struct {
	Question      string   `json:"question"`
	MissingFields []string `json:"missing_fields"`
	Origin        string   `json:"origin"`
}

// MergeValues folds newly extracted values into the pending set. Later values
// overwrite earlier ones for the same field id.
func (s *ConversationState) MergeValues(values map[string]any) {
	if len(values) == 0 {
		return
	}
	if s.PendingValues == nil {
		s.PendingValues = make(map[string]any, len(values))
	}
	for k, v := range values {
		s.PendingValues[k] = v
	}
}

// MissingRequired returns the ids of required catalog fields with no pending
// value yet, in catalog order.
func (s *ConversationState) MissingRequired() []string {
	var missing []string
	for _, f := range s.Catalog {
		if !f.Required {
			continue
		}
		if _, ok := s.PendingValues[f.ID]; !ok {
			missing = append(missing, f.ID)
		}
	}
	return missing
}

// AddValidationError records a failure for the current attempt.
func (s *ConversationState) AddValidationError(msg string) {
	s.ValidationErrors = append(s.ValidationErrors, msg)
}

// ClearAttempt resets the per-attempt fields before the next pass.
func (s *ConversationState) ClearAttempt() {
	s.ValidationErrors = nil
	s.LastPayload = ""
}

// NextToolCallID synthesizes a stable tool call id for providers that omit one.
func (s *ConversationState) NextToolCallID() string {
	s.ToolCallIDSeq++
	return fmt.Sprintf("call_%d", s.ToolCallIDSeq)
}

// Operations an item machine can be parameterized with.
const (
	OperationCreate = "create"
	OperationUpdate = "update"
)

// Specialist identifiers. They double as supervisor routing targets and as
// the origin recorded in suspend records, so a resumed thread can be handed
// back to the machine that paused it.
const (
	SpecialistCreator = "item_creator"
	SpecialistUpdater = "item_updater"
)

// QueryInput represents the input for one run of an item machine.
type QueryInput struct {
	ThreadID          string `json:"thread_id"`
	Query             string `json:"query"`
	Flow              string `json:"flow"`
	CurrentUserID     string `json:"current_user_id,omitempty"`
	AdditionalContext string `json:"additional_context,omitempty"`

	// Resume continues a suspended run: Query carries the user's answer and
	// state is restored from the thread checkpoint.
	Resume bool `json:"resume,omitempty"`
}
