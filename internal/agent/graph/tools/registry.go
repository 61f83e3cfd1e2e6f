package tools

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/boardpilot/itemagent/internal/catalog"
	"github.com/boardpilot/itemagent/internal/fields"
)

const (
	ToolGetFieldDetails = "get_field_details"
	ToolGetFieldValues  = "get_field_values"
)

// StateSource yields the field catalog and current user for the run the tool
// executes inside. The graph wires this to its local state so every tool call
// sees the same catalog the machine was started with.
type StateSource func(ctx context.Context) ([]catalog.Field, string, error)

// Deps carries the collaborators the field tools need at execution time.
type Deps struct {
	Source StateSource
	Values *fields.LookupClient
}

// GetFieldTools returns the tools bound to the generation model.
func GetFieldTools(deps Deps) []tool.BaseTool {
	return []tool.BaseTool{
		createGetFieldDetailsTool(deps),
		createGetFieldValuesTool(deps),
	}
}

// GetToolInfos extracts the ToolInfo of each tool for model binding.
func GetToolInfos(ctx context.Context, ts []tool.BaseTool) ([]*schema.ToolInfo, error) {
	infos := make([]*schema.ToolInfo, 0, len(ts))
	for _, t := range ts {
		info, err := t.Info(ctx)
		if err != nil {
			return nil, fmt.Errorf("get tool info: %w", err)
		}
		infos = append(infos, info)
	}
	return infos, nil
}
