package fields

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boardpilot/itemagent/internal/catalog"
)

func TestLookupMockStatusValues(t *testing.T) {
	c := NewLookupClient(LookupConfig{})

	res := c.Lookup(context.Background(), testCatalog(), "", "_status_name", "")

	assert.Equal(t, "success", res.Status)
	assert.Equal(t, "_status_name", res.FieldID)
	assert.True(t, res.IsMock)
	require.Equal(t, 3, res.Count)
	assert.Equal(t, "Open", res.Values[0]["value"])
	assert.Equal(t, "In Progress", res.Values[2]["label"])
}

func TestLookupMockUserValuesCarryCurrentUser(t *testing.T) {
	c := NewLookupClient(LookupConfig{})

	res := c.Lookup(context.Background(), testCatalog(), "u-42", "AssignedTo", "")

	require.Equal(t, 3, res.Count)
	assert.Equal(t, "John Doe", res.Values[0]["Name"])
	assert.Equal(t, "u-42", res.Values[2]["_id"])
	assert.Equal(t, "current@example.com", res.Values[2]["Email"])
}

func TestLookupMockBooleanValues(t *testing.T) {
	cat := []catalog.Field{{ID: "Approved", Name: "Approved", Type: "Boolean"}}
	c := NewLookupClient(LookupConfig{})

	res := c.Lookup(context.Background(), cat, "", "Approved", "")

	require.Equal(t, 2, res.Count)
	assert.Equal(t, true, res.Values[0]["value"])
	assert.Equal(t, "Yes", res.Values[0]["label"])
	assert.Equal(t, false, res.Values[1]["value"])
}

func TestLookupMockDefaultsForUnknownField(t *testing.T) {
	c := NewLookupClient(LookupConfig{})

	res := c.Lookup(context.Background(), testCatalog(), "", "Mystery", "")

	assert.Equal(t, "success", res.Status)
	require.Equal(t, 2, res.Count)
	assert.Equal(t, "Sample Value 1", res.Values[0]["value"])
}

func TestLookupRemote(t *testing.T) {
	var capturedPath, capturedQuery, capturedKeyID, capturedSecret string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedPath = r.URL.Path
		capturedQuery = r.URL.Query().Get("q")
		capturedKeyID = r.Header.Get("X-Access-Key-Id")
		capturedSecret = r.Header.Get("X-Access-Key-Secret")
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"status":"success","field_id":"Tags","values":[{"value":"Urgent","label":"Urgent"}],"count":1}`)
	}))
	defer server.Close()

	c := NewLookupClient(LookupConfig{
		URLTemplate:     server.URL + "/fields/{field_id}/values",
		AccessKeyID:     "key-id",
		AccessKeySecret: "key-secret",
	})

	res := c.Lookup(context.Background(), testCatalog(), "", "Tags", "urg")

	assert.Equal(t, "/fields/Tags/values", capturedPath)
	assert.Equal(t, "urg", capturedQuery)
	assert.Equal(t, "key-id", capturedKeyID)
	assert.Equal(t, "key-secret", capturedSecret)

	assert.Empty(t, res.Error)
	assert.Equal(t, "success", res.Status)
	assert.False(t, res.IsMock)
	require.Equal(t, 1, res.Count)
	assert.Equal(t, "Urgent", res.Values[0]["value"])
}

func TestLookupRemoteOmitsQueryWithoutSearch(t *testing.T) {
	var capturedRawQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedRawQuery = r.URL.RawQuery
		io.WriteString(w, `{"values":[]}`)
	}))
	defer server.Close()

	c := NewLookupClient(LookupConfig{URLTemplate: server.URL + "/fields/{field_id}/values"})
	res := c.Lookup(context.Background(), testCatalog(), "", "Tags", "")

	assert.Empty(t, capturedRawQuery)
	assert.Equal(t, "success", res.Status)
	assert.Equal(t, "Tags", res.FieldID)
}

func TestLookupRemoteFailureBecomesErrorRecord(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	c := NewLookupClient(LookupConfig{URLTemplate: server.URL + "/fields/{field_id}/values"})
	res := c.Lookup(context.Background(), testCatalog(), "", "Tags", "")

	assert.Equal(t, "Failed to fetch values for field ID 'Tags'.", res.Error)
	assert.Empty(t, res.Values)
}

func TestLookupRemoteBadJSONBecomesErrorRecord(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `not json`)
	}))
	defer server.Close()

	c := NewLookupClient(LookupConfig{URLTemplate: server.URL + "/fields/{field_id}/values"})
	res := c.Lookup(context.Background(), testCatalog(), "", "Tags", "")

	assert.Equal(t, "Failed to fetch values for field ID 'Tags'.", res.Error)
}
