package parsers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	errx "github.com/boardpilot/itemagent/internal/core/error"
	logx "github.com/boardpilot/itemagent/pkg/logger"
)

const (
	fenceJSON   = "```json"
	fencePython = "```python"
	fence       = "```"
)

// basic safety limits to avoid pathological inputs
const (
	maxPayloadLen = 64 * 1024 // 64KB
	maxFieldCount = 200       // maximum number of field entries
	maxErrSnippet = 200       // limit error snippet size
)

// CleanPayload strips markdown code-fence wrapping from a model response.
// Only the outermost fence is removed, inner backticks are left alone.
func CleanPayload(payload string) string {
	payload = strings.TrimSpace(payload)

	switch {
	case strings.HasPrefix(payload, fenceJSON):
		payload = strings.TrimSpace(payload[len(fenceJSON):])
	case strings.HasPrefix(payload, fencePython):
		payload = strings.TrimSpace(payload[len(fencePython):])
	case strings.HasPrefix(payload, fence):
		payload = strings.TrimSpace(payload[len(fence):])
	}

	if strings.HasSuffix(payload, fence) {
		payload = strings.TrimSpace(payload[:len(payload)-len(fence)])
	}
	return payload
}

// ParseFieldValues extracts the field-id to value mapping from a generated
// payload. The payload may be fenced; it must decode to a JSON object.
func ParseFieldValues(payload string) (values map[string]any, err error) {
	// panic safety
	defer func() {
		if r := recover(); r != nil {
			logx.Error().Str("component", "payload_parser").Msgf("panic recovered: %v", r)
			err = errx.New(fmt.Errorf("payload parser panic"), http.StatusInternalServerError, errx.SystemErrorMessage)
			values = nil
		}
	}()

	// content length guard
	if len(payload) > maxPayloadLen {
		logx.Warn().
			Str("component", "payload_parser").
			Int("max_len", maxPayloadLen).
			Int("orig_len", len(payload)).
			Msg("payload truncated due to size limit")
		payload = payload[:maxPayloadLen]
	}

	cleaned := CleanPayload(payload)
	if cleaned == "" {
		return nil, fmt.Errorf("empty payload")
	}
	if !strings.HasPrefix(cleaned, "{") || !strings.HasSuffix(cleaned, "}") {
		return nil, fmt.Errorf("payload is not a JSON object: %s", safeSnippet(cleaned))
	}

	var m map[string]any
	if err := json.Unmarshal([]byte(cleaned), &m); err != nil {
		return nil, fmt.Errorf("invalid JSON payload: %w", err)
	}
	if len(m) > maxFieldCount {
		return nil, fmt.Errorf("too many field entries: %d", len(m))
	}
	return m, nil
}

func safeSnippet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxErrSnippet {
		return s
	}
	return s[:maxErrSnippet]
}
