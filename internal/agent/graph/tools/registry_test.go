package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/cloudwego/eino/components/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boardpilot/itemagent/internal/catalog"
	"github.com/boardpilot/itemagent/internal/fields"
)

func testDeps() Deps {
	cat := []catalog.Field{
		{ID: "Summary", Name: "Reason for leave", Type: "Text", Required: true},
		{ID: "_status_name", Name: "Status", Type: "Text", IsSystemField: true},
		{ID: "AssignedTo", Name: "Assignee", Type: "User"},
	}
	return Deps{
		Source: func(ctx context.Context) ([]catalog.Field, string, error) {
			return cat, "u-7", nil
		},
		Values: fields.NewLookupClient(fields.LookupConfig{}),
	}
}

func invokable(t *testing.T, bt tool.BaseTool) tool.InvokableTool {
	t.Helper()
	it, ok := bt.(tool.InvokableTool)
	require.True(t, ok)
	return it
}

func TestGetFieldToolsExposesBothTools(t *testing.T) {
	ts := GetFieldTools(testDeps())
	require.Len(t, ts, 2)

	infos, err := GetToolInfos(context.Background(), ts)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, ToolGetFieldDetails, infos[0].Name)
	assert.Equal(t, ToolGetFieldValues, infos[1].Name)
}

func TestFieldDetailsToolReturnsRecordPerID(t *testing.T) {
	ts := GetFieldTools(testDeps())
	out, err := invokable(t, ts[0]).InvokableRun(context.Background(), `{"field_ids":["Summary","Nope"]}`)
	require.NoError(t, err)

	var details []fields.Detail
	require.NoError(t, json.Unmarshal([]byte(out), &details))
	require.Len(t, details, 2)

	assert.Equal(t, "Summary", details[0].ID)
	assert.Equal(t, "String", details[0].DBType)
	assert.True(t, details[0].Required)

	assert.Empty(t, details[1].ID)
	assert.Contains(t, details[1].Error, "not found in the provided field list")
}

func TestFieldValuesToolServesMockValues(t *testing.T) {
	ts := GetFieldTools(testDeps())
	out, err := invokable(t, ts[1]).InvokableRun(context.Background(), `{"field_id":"_status_name"}`)
	require.NoError(t, err)

	var res fields.ValuesResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "success", res.Status)
	assert.Equal(t, "_status_name", res.FieldID)
	assert.True(t, res.IsMock)
	assert.Equal(t, 3, res.Count)
}

func TestFieldValuesToolCarriesCurrentUser(t *testing.T) {
	ts := GetFieldTools(testDeps())
	out, err := invokable(t, ts[1]).InvokableRun(context.Background(), `{"field_id":"AssignedTo"}`)
	require.NoError(t, err)

	var res fields.ValuesResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Equal(t, 3, res.Count)
	assert.Equal(t, "u-7", res.Values[2]["_id"])
}

func TestFieldToolsDegradeWhenSourceFails(t *testing.T) {
	deps := testDeps()
	deps.Source = func(ctx context.Context) ([]catalog.Field, string, error) {
		return nil, "", assert.AnError
	}

	ts := GetFieldTools(deps)

	out, err := invokable(t, ts[0]).InvokableRun(context.Background(), `{"field_ids":["Summary"]}`)
	require.NoError(t, err)
	var details []fields.Detail
	require.NoError(t, json.Unmarshal([]byte(out), &details))
	require.Len(t, details, 1)
	assert.NotEmpty(t, details[0].Error)

	out, err = invokable(t, ts[1]).InvokableRun(context.Background(), `{"field_id":"Summary"}`)
	require.NoError(t, err)
	var res fields.ValuesResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	// unknown field falls back to generic sample values
	assert.Equal(t, "success", res.Status)
	assert.True(t, res.IsMock)
}
