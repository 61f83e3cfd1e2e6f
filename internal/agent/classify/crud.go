package classify

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	einoModel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/boardpilot/itemagent/internal/agent/graph/prompts"
	"github.com/boardpilot/itemagent/internal/agent/model"
	errx "github.com/boardpilot/itemagent/internal/core/error"
	logx "github.com/boardpilot/itemagent/pkg/logger"
)

// CrudDecision is the supervisor's routing verdict for one user request.
type CrudDecision struct {
	Next   string `json:"next" jsonschema:"required,enum=item_creator,enum=item_updater,description=The specialist agent that should handle the request"`
	Reason string `json:"reason,omitempty" jsonschema:"description=Brief reason for the routing decision"`
}

// CrudClassifier decides whether a user request is an item creation or an
// item update. An unusable verdict is a hard error; callers never retry it.
type CrudClassifier struct {
	chain *Chain[CrudDecision]
}

func NewCrudClassifier(cm einoModel.ToolCallingChatModel) (*CrudClassifier, error) {
	chain, err := NewChain[CrudDecision](cm,
		"route_request",
		"Select the specialist agent that should handle the user's request.",
	)
	if err != nil {
		return nil, err
	}
	return &CrudClassifier{chain: chain}, nil
}

// Classify returns the specialist that should handle message, either
// model.SpecialistCreator or model.SpecialistUpdater.
func (c *CrudClassifier) Classify(ctx context.Context, message string) (string, error) {
	system, err := prompts.RenderSupervisorSystem(ctx)
	if err != nil {
		return "", err
	}

	decision, err := c.chain.Invoke(ctx, []*schema.Message{
		schema.SystemMessage(system),
		schema.UserMessage(message),
	})
	if err != nil {
		logx.Error().Err(err).Msg("CRUD classification failed")
		return "", errx.New(err, http.StatusBadGateway, errx.ClassificationFailedMessage)
	}

	next := strings.ToLower(strings.TrimSpace(decision.Next))
	switch next {
	case model.SpecialistCreator, model.SpecialistUpdater:
		logx.Debug().
			Str("next", next).
			Str("reason", decision.Reason).
			Msg("Routed user request")
		return next, nil
	default:
		err := fmt.Errorf("unexpected route %q", decision.Next)
		logx.Error().Err(err).Msg("CRUD classification failed")
		return "", errx.New(err, http.StatusBadGateway, errx.ClassificationFailedMessage)
	}
}
