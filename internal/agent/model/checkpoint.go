package model

import (
	"context"
	"time"
)

// Checkpoint is a durable snapshot of a suspended run, keyed by thread id.
type Checkpoint struct {
	ThreadID  string             `json:"thread_id"`
	Flow      string             `json:"flow"`
	Operation string             `json:"operation"`
	State     *ConversationState `json:"state"`
	UpdatedAt time.Time          `json:"updated_at"`
}

type CheckpointRepository interface {
	// Save persists the checkpoint, replacing any previous one for the thread
	Save(ctx context.Context, checkpoint *Checkpoint) error

	// Load retrieves the checkpoint for a thread. Missing checkpoints are
	// reported as a not-found error
	Load(ctx context.Context, threadID string) (*Checkpoint, error)

	// Delete removes the checkpoint for a thread once the run terminates
	Delete(ctx context.Context, threadID string) error
}
