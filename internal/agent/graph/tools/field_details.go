package tools

import (
	"context"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"

	"github.com/boardpilot/itemagent/internal/agent/model"
	"github.com/boardpilot/itemagent/internal/fields"
	logx "github.com/boardpilot/itemagent/pkg/logger"
)

// ===================================
// Field Details Tool
// ===================================

func createGetFieldDetailsTool(deps Deps) tool.BaseTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name: ToolGetFieldDetails,
			Desc: "Retrieve metadata of multiple fields using their unique identifiers. Provides full details about each field, including its type and is_use_list_values. Always expects a list of field_ids to reduce the number of tool calls. Failed lookups come back as per-field error records in the same position.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"field_ids": {
					Type:     "array",
					Desc:     "Field IDs to retrieve metadata for (even for a single field, pass as [field_id])",
					ElemInfo: &schema.ParameterInfo{Type: "string"},
					Required: true,
				},
			}),
		},
		func(ctx context.Context, in *model.FieldDetailsArgs) ([]fields.Detail, error) {
			catalogFields, _, err := deps.Source(ctx)
			if err != nil {
				// degrade to not-found records rather than failing the run
				logx.Warn().Err(err).Msg("field catalog unavailable for detail lookup")
			}
			return fields.Details(catalogFields, in.FieldIDs), nil
		},
	)
}
