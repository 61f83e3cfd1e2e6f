package conversations

import (
	"context"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/boardpilot/itemagent/internal/agent/model"
)

// ThreadManager records the user-visible turns of a thread and renders the
// recent ones as context for a fresh machine run.
type ThreadManager struct {
	conversationRepo model.ConversationRepository
	historyMaxTurns  int
}

func NewThreadManager(conversationRepo model.ConversationRepository, config model.ThreadConfig) *ThreadManager {
	return &ThreadManager{
		conversationRepo: conversationRepo,
		historyMaxTurns:  config.History.MaxTurns,
	}
}

// RecordUserMessage appends the raw user turn to the thread history.
func (tm *ThreadManager) RecordUserMessage(ctx context.Context, threadID string, query string) error {
	return tm.conversationRepo.AddMessage(ctx, threadID, schema.UserMessage(query))
}

// RecordAssistantMessage appends the reply shown to the user, so follow-up
// runs can see what was already asked or confirmed.
func (tm *ThreadManager) RecordAssistantMessage(ctx context.Context, threadID string, content string) error {
	return tm.conversationRepo.AddMessage(ctx, threadID, schema.AssistantMessage(content, nil))
}

// BuildRecentContext renders the last turns as a compact block a machine can
// carry as additional context. Empty when the thread has no usable history.
func (tm *ThreadManager) BuildRecentContext(ctx context.Context, threadID string) (string, error) {
	history, err := tm.conversationRepo.LoadHistory(ctx, threadID)
	if err != nil {
		return "", err
	}

	recentMessages := trimTail(history.Messages, tm.historyMaxTurns)

	var contextBuilder strings.Builder
	wrote := false
	for _, msg := range recentMessages {
		if msg == nil || msg.Content == "" {
			continue
		}
		switch msg.Role {
		case schema.User:
			contextBuilder.WriteString("UserMessage(" + msg.Content + ")\n")
			wrote = true
		case schema.Assistant:
			contextBuilder.WriteString("AssistantMessage(" + msg.Content + ")\n")
			wrote = true
		}
	}
	if !wrote {
		return "", nil
	}
	return "<conversation_context>\n" + contextBuilder.String() + "</conversation_context>", nil
}

// ====================== Helper function ======================
func trimTail(messages []*schema.Message, maxTurns int) []*schema.Message {
	if len(messages) <= maxTurns {
		result := make([]*schema.Message, len(messages))
		copy(result, messages)
		return result
	}
	source := messages[len(messages)-maxTurns:]
	result := make([]*schema.Message, len(source))
	copy(result, source)
	return result
}
