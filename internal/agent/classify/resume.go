package classify

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	einoModel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/boardpilot/itemagent/internal/agent/graph/prompts"
	errx "github.com/boardpilot/itemagent/internal/core/error"
	logx "github.com/boardpilot/itemagent/pkg/logger"
)

// Relations between a new user message and the question a suspended run asked.
const (
	RelationAnswer          = "answer"
	RelationContinuation    = "continuation"
	RelationNewConversation = "new_conversation"
)

// ResumeDecision is the verdict on how a new message relates to the pending
// question of a suspended thread.
type ResumeDecision struct {
	Relation string `json:"relation" jsonschema:"required,enum=answer,enum=continuation,enum=new_conversation,description=How the new message relates to the pending question"`
}

// ResumeClassifier relates a user's new message to the question a suspended
// run asked, so the orchestrator knows whether to resume, re-ask, or start
// over.
type ResumeClassifier struct {
	chain *Chain[ResumeDecision]
}

func NewResumeClassifier(cm einoModel.ToolCallingChatModel) (*ResumeClassifier, error) {
	chain, err := NewChain[ResumeDecision](cm,
		"classify_reply",
		"Classify how the user's new message relates to the pending question.",
	)
	if err != nil {
		return nil, err
	}
	return &ResumeClassifier{chain: chain}, nil
}

// Classify returns one of the Relation constants for message, given the
// question previously asked on the thread.
func (c *ResumeClassifier) Classify(ctx context.Context, previous, message string) (string, error) {
	system, err := prompts.RenderResumeSystem(ctx)
	if err != nil {
		return "", err
	}

	decision, err := c.chain.Invoke(ctx, []*schema.Message{
		schema.SystemMessage(system),
		schema.UserMessage(fmt.Sprintf("previous: %s\nnew message: %s", previous, message)),
	})
	if err != nil {
		logx.Error().Err(err).Msg("Resume classification failed")
		return "", errx.New(err, http.StatusBadGateway, errx.ClassificationFailedMessage)
	}

	relation := strings.ToLower(strings.TrimSpace(decision.Relation))
	switch relation {
	case RelationAnswer, RelationContinuation, RelationNewConversation:
		logx.Debug().Str("relation", relation).Msg("Classified resume message")
		return relation, nil
	default:
		err := fmt.Errorf("unexpected relation %q", decision.Relation)
		logx.Error().Err(err).Msg("Resume classification failed")
		return "", errx.New(err, http.StatusBadGateway, errx.ClassificationFailedMessage)
	}
}
