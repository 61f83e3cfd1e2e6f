// Package classify holds the model-backed classifiers that route user
// messages: the CRUD supervisor and the resume-relation classifier.
package classify

import (
	"context"
	"fmt"

	"github.com/bytedance/sonic"
	einoModel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"
)

// Chain produces one structured decision per call. It binds a single tool
// whose schema is derived from T and forces the model to call it, then
// decodes the call arguments into T. Keeping the output behind a tool schema
// is far more reliable than asking for raw JSON in the prompt.
type Chain[T any] struct {
	model    einoModel.ToolCallingChatModel
	toolInfo *schema.ToolInfo
}

// NewChain derives the tool schema from T's json/jsonschema struct tags.
func NewChain[T any](cm einoModel.ToolCallingChatModel, toolName, toolDesc string) (*Chain[T], error) {
	if cm == nil {
		return nil, fmt.Errorf("chat model is nil")
	}
	toolInfo, err := utils.GoStruct2ToolInfo[T](toolName, toolDesc)
	if err != nil {
		return nil, fmt.Errorf("convert tool info failed: %w", err)
	}
	return &Chain[T]{model: cm, toolInfo: toolInfo}, nil
}

// Invoke runs one classification over the prepared messages.
func (c *Chain[T]) Invoke(ctx context.Context, messages []*schema.Message) (*T, error) {
	response, err := c.model.Generate(ctx, messages,
		einoModel.WithTools([]*schema.ToolInfo{c.toolInfo}),
		einoModel.WithToolChoice(schema.ToolChoiceForced),
	)
	if err != nil {
		return nil, fmt.Errorf("call model failed: %w", err)
	}
	if len(response.ToolCalls) == 0 {
		return nil, fmt.Errorf("no tool call in model response: %s", response.Content)
	}

	var result T
	if err := sonic.UnmarshalString(response.ToolCalls[0].Function.Arguments, &result); err != nil {
		return nil, fmt.Errorf("parse tool call arguments failed: %w", err)
	}
	return &result, nil
}
