package model

// OutcomeStatus is the closed set of terminal results for a machine run.
type OutcomeStatus string

const (
	OutcomeCompleted OutcomeStatus = "completed"
	OutcomeSuspended OutcomeStatus = "suspended"
	OutcomeFailed    OutcomeStatus = "failed"
)

// Outcome is the terminal result of one machine run. Exactly one of the
// variant sections is populated depending on Status.
type Outcome struct {
	Status   OutcomeStatus `json:"status"`
	ThreadID string        `json:"thread_id"`

	// Completed
	Result string         `json:"result,omitempty"`
	Values map[string]any `json:"values,omitempty"`

	// Suspended
	Question      string   `json:"question,omitempty"`
	MissingFields []string `json:"missing_fields,omitempty"`

	// Failed
	Errors []string `json:"errors,omitempty"`

	RetryCount int     `json:"retry_count"`
	CostUSD    float64 `json:"cost_usd,omitempty"`
}
