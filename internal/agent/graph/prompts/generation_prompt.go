package prompts

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/boardpilot/itemagent/internal/agent/model"
	"github.com/boardpilot/itemagent/internal/catalog"
)

//go:embed template/creation_prompt.txt
var creationSystemPrompt string

//go:embed template/update_prompt.txt
var updateSystemPrompt string

// RenderGenerationSystem renders the instruction prompt for an item machine
// via the Eino prompt component. This triggers Prompt callbacks and returns
// the final system prompt string.
func RenderGenerationSystem(ctx context.Context, operation string) (string, error) {
	var content string
	switch operation {
	case model.OperationCreate:
		content = creationSystemPrompt
	case model.OperationUpdate:
		content = updateSystemPrompt
	default:
		return "", fmt.Errorf("unknown operation %q", operation)
	}
	return renderStatic(ctx, "generation", content)
}

// BuildFieldContext renders the catalog block appended below the instruction
// prompt. One line per field: "- <name>: <type> (id: <id>)". The block is
// empty when the catalog is empty and no extra context was supplied.
func BuildFieldContext(fields []catalog.Field, additionalContext string) string {
	var parts []string
	if len(fields) > 0 {
		parts = append(parts, "Available Fields:")
		for _, f := range fields {
			parts = append(parts, fmt.Sprintf("- %s: %s (id: %s)", f.Name, f.Type, f.ID))
		}
	}
	if additionalContext != "" {
		parts = append(parts, "\nAdditional Context: "+additionalContext)
	}
	return strings.Join(parts, "\n")
}

// renderStatic wraps a fixed prompt through the Eino prompt component using a
// messages placeholder, so Prompt callbacks fire without FString touching any
// braces inside the template.
func renderStatic(ctx context.Context, name, content string) (string, error) {
	tpl := prompt.FromMessages(
		schema.FString,
		schema.MessagesPlaceholder("system_messages", false),
	)
	msgs, err := tpl.Format(ctx, map[string]any{
		"system_messages": []*schema.Message{schema.SystemMessage(content)},
	})
	if err != nil {
		return "", fmt.Errorf("%s prompt callbacks: %w", name, err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("%s prompt callbacks: empty result", name)
	}
	return msgs[0].Content, nil
}
