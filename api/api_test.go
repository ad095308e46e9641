package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"argus/config"
	"argus/core"
	"argus/detect"
	"argus/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Rules.Backend = config.BackendFile
	cfg.API.Host = "127.0.0.1"
	cfg.API.Port = 8080
	cfg.API.MaxBodyBytes = 1 << 20
	cfg.API.RateLimit.RequestsPerSecond = 1000
	cfg.API.RateLimit.Burst = 1000
	cfg.Matcher.MaxTestEvents = 1000
	cfg.Matcher.PredicateCacheSize = 64
	cfg.Logging.Level = "info"
	return cfg
}

func newTestAPI(t *testing.T) *API {
	t.Helper()
	logger := zap.NewNop().Sugar()
	store, err := storage.NewFileRuleStore(t.TempDir(), logger)
	require.NoError(t, err)
	cache, err := detect.NewPredicateCache(64)
	require.NoError(t, err)
	a := NewAPI(store, cache, testConfig(), logger)
	t.Cleanup(func() { close(a.stopCh) })
	return a
}

func bruteForceDefinition(id string) core.RuleDefinition {
	return core.RuleDefinition{
		ID:            id,
		Name:          "SSH brute force followed by success",
		By:            []string{"agent.id", "data.srcip"},
		WithinSeconds: 300,
		Sequence: []core.StepDefinition{
			{As: "fail", Where: `rule.id == "5710"`},
			{As: "success", Where: `rule.id == "5715"`},
		},
		Output: core.OutputDefinition{
			TimestampRef: "success",
			Format:       "brute force from {data.srcip}",
		},
	}
}

func doJSON(t *testing.T, a *API, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)
	return rec
}

func TestAPI_Health(t *testing.T) {
	a := newTestAPI(t)
	rec := doJSON(t, a, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestAPI_RuleCRUD(t *testing.T) {
	a := newTestAPI(t)

	rec := doJSON(t, a, http.MethodPost, "/api/v1/rules", bruteForceDefinition("seq-001"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, a, http.MethodGet, "/api/v1/rules/seq-001", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var def core.RuleDefinition
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &def))
	assert.Equal(t, "seq-001", def.ID)

	rec = doJSON(t, a, http.MethodGet, "/api/v1/rules", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var defs []core.RuleDefinition
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &defs))
	assert.Len(t, defs, 1)

	updated := bruteForceDefinition("seq-001")
	updated.Name = "renamed"
	rec = doJSON(t, a, http.MethodPut, "/api/v1/rules/seq-001", updated)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, a, http.MethodDelete, "/api/v1/rules/seq-001", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, a, http.MethodGet, "/api/v1/rules/seq-001", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_CreateDuplicateConflicts(t *testing.T) {
	a := newTestAPI(t)

	rec := doJSON(t, a, http.MethodPost, "/api/v1/rules", bruteForceDefinition("seq-001"))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, a, http.MethodPost, "/api/v1/rules", bruteForceDefinition("seq-001"))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAPI_CreateInvalidRuleListsViolations(t *testing.T) {
	a := newTestAPI(t)

	def := bruteForceDefinition("seq-001")
	def.Sequence = def.Sequence[:1]
	def.Output.TimestampRef = "missing"

	rec := doJSON(t, a, http.MethodPost, "/api/v1/rules", def)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Violations, 2)
}

func TestAPI_UpdateMissingRule(t *testing.T) {
	a := newTestAPI(t)
	rec := doJSON(t, a, http.MethodPut, "/api/v1/rules/nope", bruteForceDefinition("nope"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_DeleteMissingRule(t *testing.T) {
	a := newTestAPI(t)
	rec := doJSON(t, a, http.MethodDelete, "/api/v1/rules/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_TestRule(t *testing.T) {
	a := newTestAPI(t)

	def := bruteForceDefinition("seq-001")
	events := `{"timestamp": "2025-12-06T22:17:00Z", "rule": {"id": "5710"}, "agent": {"id": "agent-1"}, "data": {"srcip": "192.168.1.100"}}
{"timestamp": "2025-12-06T22:17:30Z", "rule": {"id": "5715"}, "agent": {"id": "agent-1"}, "data": {"srcip": "192.168.1.100"}}`

	rec := doJSON(t, a, http.MethodPost, "/api/v1/rules/test", RuleTestRequest{Rule: &def, Events: events})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp RuleTestResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "seq-001", resp.RuleID)
	assert.Equal(t, 2, resp.TotalEvents)
	require.Equal(t, 1, resp.MatchCount)
	assert.Equal(t, "brute force from 192.168.1.100", resp.Matches[0].Message)
}

func TestAPI_TestRuleRequiresRuleAndEvents(t *testing.T) {
	a := newTestAPI(t)

	rec := doJSON(t, a, http.MethodPost, "/api/v1/rules/test", map[string]interface{}{"events": "{}"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_TestRuleRejectsMalformedEvents(t *testing.T) {
	a := newTestAPI(t)

	def := bruteForceDefinition("seq-001")
	rec := doJSON(t, a, http.MethodPost, "/api/v1/rules/test", RuleTestRequest{Rule: &def, Events: "not json"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Error, "line 1")
}

func TestAPI_TestStoredRule(t *testing.T) {
	a := newTestAPI(t)

	rec := doJSON(t, a, http.MethodPost, "/api/v1/rules", bruteForceDefinition("seq-001"))
	require.Equal(t, http.StatusCreated, rec.Code)

	events := `{"timestamp": "2025-12-06T22:17:00Z", "rule": {"id": "5710"}, "agent": {"id": "a"}, "data": {"srcip": "10.0.0.1"}}
{"timestamp": "2025-12-06T22:17:10Z", "rule": {"id": "5715"}, "agent": {"id": "a"}, "data": {"srcip": "10.0.0.1"}}`

	rec = doJSON(t, a, http.MethodPost, "/api/v1/rules/seq-001/test", StoredRuleTestRequest{Events: events})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp RuleTestResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.MatchCount)

	rec = doJSON(t, a, http.MethodPost, "/api/v1/rules/absent/test", StoredRuleTestRequest{Events: events})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_BodyLimit(t *testing.T) {
	a := newTestAPI(t)
	a.config.API.MaxBodyBytes = 64

	big := bruteForceDefinition("seq-001")
	rec := doJSON(t, a, http.MethodPost, "/api/v1/rules", big)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_RateLimit(t *testing.T) {
	a := newTestAPI(t)
	a.config.API.RateLimit.RequestsPerSecond = 1
	a.config.API.RateLimit.Burst = 2

	codes := make(map[int]int)
	for i := 0; i < 5; i++ {
		rec := doJSON(t, a, http.MethodGet, "/health", nil)
		codes[rec.Code]++
	}
	assert.Equal(t, 2, codes[http.StatusOK])
	assert.Equal(t, 3, codes[http.StatusTooManyRequests])
}
