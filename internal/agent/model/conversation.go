package model

import (
	"context"

	"github.com/cloudwego/eino/schema"
)

type ConversationRepository interface {
	// AddMessage adds a message to the conversation history for the given thread
	AddMessage(ctx context.Context, threadID string, message *schema.Message) error

	// LoadHistory retrieves the conversation history for a thread
	LoadHistory(ctx context.Context, threadID string) (*ConversationHistory, error)

	// ClearHistory removes all conversation history for a thread
	ClearHistory(ctx context.Context, threadID string) error

	// GetMessageCount returns the number of messages in the thread
	GetMessageCount(ctx context.Context, threadID string) (int, error)
}

// ConversationHistory represents loaded conversation data with metadata.
type ConversationHistory struct {
	ThreadID string
	Messages []*schema.Message
}
