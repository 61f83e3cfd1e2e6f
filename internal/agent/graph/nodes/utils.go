package nodes

import (
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"
)

// Default budgets for the generation loop.
const (
	DefaultMaxRetries        = 3
	DefaultMaxToolIterations = 5
)

// ===== Small helpers to keep handlers simple/readable =====

// normalizeMaxRetries returns a sane default when the provided value is invalid.
func normalizeMaxRetries(n int) int {
	if n <= 0 {
		return DefaultMaxRetries
	}
	return n
}

// normalizeMaxToolIterations returns a sane default when the provided value is invalid.
func normalizeMaxToolIterations(n int) int {
	if n <= 0 {
		return DefaultMaxToolIterations
	}
	return n
}

// firstNonSystem returns the index of the first message that is not a system
// message, or -1 when there is none.
func firstNonSystem(messages []*schema.Message) int {
	for i, m := range messages {
		if m == nil || m.Role == schema.System {
			continue
		}
		return i
	}
	return -1
}

// missingFieldsQuestion renders the clarification prompt raised when required
// fields still have no value.
func missingFieldsQuestion(missing []string) string {
	return fmt.Sprintf("Please provide values for the missing required fields: %s", strings.Join(missing, ", "))
}

// retryFeedback renders the corrective user message appended after a failed
// validation pass.
func retryFeedback(errs []string) string {
	return fmt.Sprintf(
		"Previous attempt failed with errors: %s. Please return a valid JSON object mapping field ids to values.",
		strings.Join(errs, ", "),
	)
}
