package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warden-mail/warden/internal/dispatch"
	"github.com/warden-mail/warden/internal/mailbox"
	"github.com/warden-mail/warden/internal/protocol"
	"github.com/warden-mail/warden/internal/registry"
	"github.com/warden-mail/warden/internal/tools"
)

// staticGateway answers every tool with the same result.
type staticGateway struct {
	result mailbox.Result
}

func (g *staticGateway) ListEmails(ctx context.Context, params *tools.ListEmailsParams) mailbox.Result {
	return g.result
}

func (g *staticGateway) GetEmailDetails(ctx context.Context, params *tools.GetEmailDetailsParams) mailbox.Result {
	return g.result
}

func (g *staticGateway) TrashEmails(ctx context.Context, params *tools.TrashEmailsParams) mailbox.Result {
	return g.result
}

func (g *staticGateway) LabelEmails(ctx context.Context, params *tools.LabelEmailsParams) mailbox.Result {
	return g.result
}

func (g *staticGateway) MarkEmails(ctx context.Context, params *tools.MarkEmailsParams) mailbox.Result {
	return g.result
}

func (g *staticGateway) ApplyRules(ctx context.Context, params *tools.ApplyRulesParams) mailbox.Result {
	return g.result
}

func (g *staticGateway) ListRules(ctx context.Context) mailbox.Result {
	return g.result
}

func (g *staticGateway) AddRule(ctx context.Context, params *tools.AddRuleParams) mailbox.Result {
	return g.result
}

func (g *staticGateway) DeleteRule(ctx context.Context, params *tools.DeleteRuleParams) mailbox.Result {
	return g.result
}

func (g *staticGateway) DeleteEmailsPermanently(ctx context.Context, params *tools.DeleteEmailsPermanentlyParams) mailbox.Result {
	return g.result
}

func newTestServer(t *testing.T, apiKey string) *httptest.Server {
	t.Helper()
	engine := dispatch.NewEngine(dispatch.Config{
		Registry:      registry.New(),
		Gateway:       &staticGateway{result: mailbox.OK(tools.ListRulesOutput{Rules: []map[string]any{}})},
		SessionTTL:    time.Hour,
		DefaultUserID: "tester",
	})
	srv, err := New(Config{Addr: ":0", APIKey: apiKey, Engine: engine})
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func executeTool(t *testing.T, ts *httptest.Server, apiKey string, body []byte) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, ts.URL+ExecuteToolPath, bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set(APIKeyHeader, apiKey)
	}
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	return resp
}

func decodeEnvelope(t *testing.T, resp *http.Response) protocol.ToolResponse {
	t.Helper()
	defer resp.Body.Close()
	var envelope protocol.ToolResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	return envelope
}

func TestServer_AuthStatuses(t *testing.T) {
	ts := newTestServer(t, "sekrit")

	t.Run("missing key", func(t *testing.T) {
		resp := executeTool(t, ts, "", []byte(`{}`))
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("wrong key", func(t *testing.T) {
		resp := executeTool(t, ts, "not-it", []byte(`{}`))
		defer resp.Body.Close()
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("right key", func(t *testing.T) {
		resp := executeTool(t, ts, "sekrit", []byte(`{"tool_name":"warden_list_rules"}`))
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		envelope := decodeEnvelope(t, resp)
		assert.False(t, envelope.IsError)
	})
}

func TestServer_UnconfiguredKeyIsServerError(t *testing.T) {
	ts := newTestServer(t, "")

	resp := executeTool(t, ts, "anything", []byte(`{}`))
	defer resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestServer_ToolErrorStaysHTTP200(t *testing.T) {
	ts := newTestServer(t, "sekrit")

	resp := executeTool(t, ts, "sekrit", []byte(`{"tool_name":"warden_unknown"}`))
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	envelope := decodeEnvelope(t, resp)
	assert.True(t, envelope.IsError)
	assert.Contains(t, envelope.ErrorMessage, "warden_unknown")
	assert.NotEmpty(t, envelope.ToolResultID)
}

func TestServer_MalformedBody(t *testing.T) {
	ts := newTestServer(t, "sekrit")

	resp := executeTool(t, ts, "sekrit", []byte(`{not json`))
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	envelope := decodeEnvelope(t, resp)
	assert.True(t, envelope.IsError)
	assert.Contains(t, envelope.ErrorMessage, "Malformed request body")
}

func TestServer_ListTools(t *testing.T) {
	ts := newTestServer(t, "sekrit")

	req, err := http.NewRequest(http.MethodGet, ts.URL+ListToolsPath, nil)
	require.NoError(t, err)
	req.Header.Set(APIKeyHeader, "sekrit")
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var catalog []dispatch.ToolDescriptor
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&catalog))
	assert.Len(t, catalog, 10)
	assert.Equal(t, "warden_list_emails", catalog[0].Name)
}

func TestServer_ListToolsRequiresAuth(t *testing.T) {
	ts := newTestServer(t, "sekrit")

	resp, err := ts.Client().Get(ts.URL + ListToolsPath)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestServer_HealthSkipsAuth(t *testing.T) {
	ts := newTestServer(t, "sekrit")

	resp, err := ts.Client().Get(ts.URL + HealthPath)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var health HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health.Status)
}
