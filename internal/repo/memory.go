package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/boardpilot/itemagent/internal/agent/model"
	errx "github.com/boardpilot/itemagent/internal/core/error"
)

// MemoryCheckpointRepository keeps checkpoints in process memory. Snapshots
// are stored marshaled so callers never share mutable state with the
// repository. Useful for tests and single-process runs without Redis.
type MemoryCheckpointRepository struct {
	mu sync.RWMutex
	m  map[string][]byte
}

func NewMemoryCheckpointRepository() *MemoryCheckpointRepository {
	return &MemoryCheckpointRepository{m: map[string][]byte{}}
}

func (r *MemoryCheckpointRepository) Save(ctx context.Context, checkpoint *model.Checkpoint) error {
	checkpoint.UpdatedAt = time.Now().UTC()

	b, err := json.Marshal(checkpoint)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	r.mu.Lock()
	r.m[checkpoint.ThreadID] = b
	r.mu.Unlock()
	return nil
}

func (r *MemoryCheckpointRepository) Load(ctx context.Context, threadID string) (*model.Checkpoint, error) {
	r.mu.RLock()
	b, ok := r.m[threadID]
	r.mu.RUnlock()

	if !ok {
		return nil, errx.New(fmt.Errorf("checkpoint %s: not found", threadID), http.StatusNotFound, errx.CheckpointNotFoundMessage)
	}

	var cp model.Checkpoint
	if err := json.Unmarshal(b, &cp); err != nil {
		return nil, fmt.Errorf("unmarshal checkpoint: %w", err)
	}
	return &cp, nil
}

func (r *MemoryCheckpointRepository) Delete(ctx context.Context, threadID string) error {
	r.mu.Lock()
	delete(r.m, threadID)
	r.mu.Unlock()
	return nil
}

var _ model.CheckpointRepository = (*MemoryCheckpointRepository)(nil)

// MemoryConversationRepository keeps thread histories in process memory, same
// snapshot discipline as the checkpoint counterpart.
type MemoryConversationRepository struct {
	mu sync.RWMutex
	m  map[string][][]byte
}

func NewMemoryConversationRepository() *MemoryConversationRepository {
	return &MemoryConversationRepository{m: map[string][][]byte{}}
}

func (r *MemoryConversationRepository) AddMessage(ctx context.Context, threadID string, message *schema.Message) error {
	b, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	r.mu.Lock()
	r.m[threadID] = append(r.m[threadID], b)
	r.mu.Unlock()
	return nil
}

func (r *MemoryConversationRepository) LoadHistory(ctx context.Context, threadID string) (*model.ConversationHistory, error) {
	r.mu.RLock()
	rows := r.m[threadID]
	r.mu.RUnlock()

	msgs := make([]*schema.Message, 0, len(rows))
	for i, b := range rows {
		var m schema.Message
		if err := json.Unmarshal(b, &m); err != nil {
			return nil, fmt.Errorf("unmarshal message at index %d: %w", i, err)
		}
		msgs = append(msgs, &m)
	}
	return &model.ConversationHistory{ThreadID: threadID, Messages: msgs}, nil
}

func (r *MemoryConversationRepository) ClearHistory(ctx context.Context, threadID string) error {
	r.mu.Lock()
	delete(r.m, threadID)
	r.mu.Unlock()
	return nil
}

func (r *MemoryConversationRepository) GetMessageCount(ctx context.Context, threadID string) (int, error) {
	r.mu.RLock()
	n := len(r.m[threadID])
	r.mu.RUnlock()
	return n, nil
}

var _ model.ConversationRepository = (*MemoryConversationRepository)(nil)
