package fields

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/boardpilot/itemagent/internal/catalog"
	logx "github.com/boardpilot/itemagent/pkg/logger"
)

// LookupConfig configures the remote value endpoint. When URLTemplate is empty
// the client serves deterministic mock values instead of calling out.
type LookupConfig struct {
	// URLTemplate is the endpoint for list values with a {field_id}
	// placeholder, e.g. https://boards.example.com/fields/{field_id}/values
	URLTemplate     string `envconfig:"VALUES_API_URL"`
	AccessKeyID     string `envconfig:"VALUES_API_KEY_ID"`
	AccessKeySecret string `envconfig:"VALUES_API_KEY_SECRET"`
	TimeoutSeconds  int    `envconfig:"VALUES_API_TIMEOUT_SECONDS" default:"10"`
}

// ValuesResult is the outcome of one value lookup. Failed lookups carry Error
// and nothing else, so the record stays self-describing when handed to the
// model as tool output.
type ValuesResult struct {
	Status  string           `json:"status,omitempty"`
	FieldID string           `json:"field_id,omitempty"`
	Values  []map[string]any `json:"values,omitempty"`
	Count   int              `json:"count,omitempty"`
	IsMock  bool             `json:"is_mock,omitempty"`
	Error   string           `json:"error,omitempty"`
}

// LookupClient resolves candidate values for list-backed fields.
type LookupClient struct {
	cfg    LookupConfig
	client *http.Client
}

func NewLookupClient(cfg LookupConfig) *LookupClient {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &LookupClient{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

// Lookup fetches values for fieldID, optionally narrowed by search. It never
// returns a Go error: failures become error records in the result.
func (c *LookupClient) Lookup(ctx context.Context, fields []catalog.Field, currentUserID, fieldID, search string) ValuesResult {
	if c.cfg.URLTemplate == "" {
		return c.mockValues(fields, currentUserID, fieldID)
	}
	return c.fetchRemote(ctx, fieldID, search)
}

func (c *LookupClient) fetchRemote(ctx context.Context, fieldID, search string) ValuesResult {
	endpoint := strings.ReplaceAll(c.cfg.URLTemplate, "{field_id}", url.PathEscape(fieldID))
	if search != "" {
		endpoint = endpoint + "?q=" + url.QueryEscape(search)
	}

	failed := ValuesResult{Error: fmt.Sprintf("Failed to fetch values for field ID '%s'.", fieldID)}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		logx.Error().Err(err).Str("field_id", fieldID).Msg("build value lookup request")
		return failed
	}
	req.Header.Set("X-Access-Key-Id", c.cfg.AccessKeyID)
	req.Header.Set("X-Access-Key-Secret", c.cfg.AccessKeySecret)

	resp, err := c.client.Do(req)
	if err != nil {
		logx.Error().Err(err).Str("field_id", fieldID).Msg("value lookup request failed")
		return failed
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logx.Error().Int("status", resp.StatusCode).Str("field_id", fieldID).Msg("value lookup returned non-success status")
		return failed
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		logx.Error().Err(err).Str("field_id", fieldID).Msg("read value lookup response")
		return failed
	}

	var out ValuesResult
	if err := sonic.Unmarshal(body, &out); err != nil {
		logx.Error().Err(err).Str("field_id", fieldID).Msg("decode value lookup response")
		return failed
	}
	if out.Status == "" && out.Error == "" {
		out.Status = "success"
	}
	if out.FieldID == "" {
		out.FieldID = fieldID
	}
	if out.Count == 0 {
		out.Count = len(out.Values)
	}
	logx.Debug().Str("field_id", fieldID).Int("count", out.Count).Msg("value lookup succeeded")
	return out
}

// mockValues derives a plausible value list from the field shape so the agent
// remains usable without the board API.
func (c *LookupClient) mockValues(fields []catalog.Field, currentUserID, fieldID string) ValuesResult {
	f, _ := catalog.FieldByID(fields, fieldID)
	name := strings.ToLower(f.Name)
	widget := f.Type
	if currentUserID == "" {
		currentUserID = "current_user"
	}

	var values []map[string]any
	switch {
	case strings.Contains(name, "status") || fieldID == "_status_name":
		values = options("Open", "Closed", "In Progress")
	case strings.Contains(name, "priority") || fieldID == "_priority_name":
		values = options("High", "Medium", "Low")
	case widget == "Boolean":
		values = []map[string]any{
			{"value": true, "label": "Yes"},
			{"value": false, "label": "No"},
		}
	case widget == "User" || widget == "MultiUser":
		values = []map[string]any{
			{"_id": "user1", "Name": "John Doe", "Email": "john@example.com"},
			{"_id": "user2", "Name": "Jane Smith", "Email": "jane@example.com"},
			{"_id": currentUserID, "Name": "Current User", "Email": "current@example.com"},
		}
	case widget == "Select" || widget == "Multiselect":
		values = options("Option 1", "Option 2", "Option 3")
	default:
		values = options("Sample Value 1", "Sample Value 2")
	}

	return ValuesResult{
		Status:  "success",
		FieldID: fieldID,
		Values:  values,
		Count:   len(values),
		IsMock:  true,
	}
}

func options(vals ...string) []map[string]any {
	out := make([]map[string]any, 0, len(vals))
	for _, v := range vals {
		out = append(out, map[string]any{"value": v, "label": v})
	}
	return out
}
