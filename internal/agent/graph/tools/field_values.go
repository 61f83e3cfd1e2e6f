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
// Field Values Tool
// ===================================

func createGetFieldValuesTool(deps Deps) tool.BaseTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name: ToolGetFieldValues,
			Desc: "Retrieves values for a selectable field like dropdowns, user pickers, or references. Useful for identifying possible values when the field uses a predefined value list. For each field with is_use_list_values=true, call this tool to retrieve its values.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"field_id": {
					Type:     "string",
					Desc:     "The ID of the form field to fetch values for",
					Required: true,
				},
				"search_string": {
					Type: "string",
					Desc: "Optional fuzzy search query to narrow value results",
				},
			}),
		},
		func(ctx context.Context, in *model.FieldValuesArgs) (*fields.ValuesResult, error) {
			catalogFields, currentUser, err := deps.Source(ctx)
			if err != nil {
				logx.Warn().Err(err).Str("field_id", in.FieldID).Msg("field catalog unavailable for value lookup")
			}
			res := deps.Values.Lookup(ctx, catalogFields, currentUser, in.FieldID, in.SearchString)
			return &res, nil
		},
	)
}
