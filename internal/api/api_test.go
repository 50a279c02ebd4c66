package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agent-pump/internal/address"
	"agent-pump/internal/engine"
	"agent-pump/internal/ledger"
	"agent-pump/internal/storage"
	"agent-pump/internal/storage/memory"
)

func newTestServer(t *testing.T, limiter *RateLimiter) *httptest.Server {
	t.Helper()

	deriver, err := address.NewDeriver(address.DefaultProgramID)
	require.NoError(t, err)

	curves := memory.NewCurveStore()
	l := ledger.New(ledger.Options{
		Agents:  memory.NewAgentStore(),
		Curves:  curves,
		Deriver: deriver,
	})
	e, err := engine.New(engine.Options{
		Curves:  curves,
		Fills:   memory.NewFillStore(),
		Ledger:  l,
		Deriver: deriver,
	})
	require.NoError(t, err)

	srv := httptest.NewServer(NewRouter(Config{Engine: e, RateLimiter: limiter}))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path string, body any) (int, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func doList(t *testing.T, srv *httptest.Server, path string) (int, []map[string]any) {
	t.Helper()

	resp, err := srv.Client().Get(srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func launchBody() map[string]any {
	return map[string]any{
		"name":     "Agent Token",
		"symbol":   "AGT",
		"agent_id": "agent-001",
		"curve": map[string]any{
			"type":                "linear",
			"base_price":          "1",
			"slope":               "0.001",
			"max_supply":          1000000,
			"migration_threshold": 500000,
		},
		"metadata": map[string]any{"description": "test token"},
	}
}

func setupToken(t *testing.T, srv *httptest.Server) string {
	t.Helper()

	code, _ := do(t, srv, http.MethodPost, "/agents", map[string]any{"id": "agent-001", "owner": "owner", "name": "Agent"})
	require.Equal(t, http.StatusCreated, code)

	code, body := do(t, srv, http.MethodPost, "/tokens", launchBody())
	require.Equal(t, http.StatusCreated, code, "body: %v", body)
	mint, ok := body["mint"].(string)
	require.True(t, ok)
	return mint
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, nil)

	code, body := do(t, srv, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
}

func TestLaunchAndTrade(t *testing.T) {
	srv := newTestServer(t, nil)
	mint := setupToken(t, srv)

	code, info := do(t, srv, http.MethodGet, "/tokens/"+mint, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "AGT", info["symbol"])
	assert.Equal(t, "1.0005", info["price"])
	assert.NotEmpty(t, info["curve_address"])

	code, quote := do(t, srv, http.MethodGet, "/tokens/"+mint+"/quote?side=buy&amount=1000", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "1500", quote["total_price"])
	assert.Equal(t, "1575", quote["limit_price"])

	code, res := do(t, srv, http.MethodPost, "/tokens/"+mint+"/buy", map[string]any{"amount": 1000, "auto_limit": true})
	require.Equal(t, http.StatusOK, code, "body: %v", res)
	assert.Equal(t, "1500", res["total_price"])
	assert.EqualValues(t, 1000, res["new_supply"])

	code, res = do(t, srv, http.MethodPost, "/tokens/"+mint+"/sell", map[string]any{"amount": 500, "limit_price": "2000"})
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "SLIPPAGE_EXCEEDED", res["kind"])

	code, res = do(t, srv, http.MethodPost, "/tokens/"+mint+"/sell", map[string]any{"amount": 500})
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 500, res["new_supply"])

	code, fills := doList(t, srv, "/tokens/"+mint+"/fills")
	require.Equal(t, http.StatusOK, code)
	require.Len(t, fills, 2)
	assert.Equal(t, "buy", fills[0]["side"])
	assert.Equal(t, "sell", fills[1]["side"])

	now := time.Now().UnixMilli()
	code, buckets := doList(t, srv, "/tokens/"+mint+"/volume?interval=3600")
	require.Equal(t, http.StatusOK, code)
	require.NotEmpty(t, buckets)
	assert.LessOrEqual(t, buckets[len(buckets)-1]["timestamp_ms"].(float64), float64(now))

	code, agent := do(t, srv, http.MethodGet, "/agents/agent-001", nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, agent["total_launches"])
}

func TestErrorMapping(t *testing.T) {
	srv := newTestServer(t, nil)
	mint := setupToken(t, srv)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		kind   string
	}{
		{"unknown token", http.MethodGet, "/tokens/missing", nil, http.StatusNotFound, ""},
		{"unknown agent", http.MethodGet, "/agents/ghost", nil, http.StatusNotFound, ""},
		{"zero amount", http.MethodPost, "/tokens/" + mint + "/buy", map[string]any{"amount": 0}, http.StatusBadRequest, "INVALID_AMOUNT"},
		{"over max supply", http.MethodPost, "/tokens/" + mint + "/buy", map[string]any{"amount": 1000001}, http.StatusUnprocessableEntity, "SUPPLY_EXCEEDED"},
		{"sell empty curve", http.MethodPost, "/tokens/" + mint + "/sell", map[string]any{"amount": 1}, http.StatusUnprocessableEntity, "INSUFFICIENT_SUPPLY"},
		{"bad amount param", http.MethodGet, "/tokens/" + mint + "/quote?amount=abc", nil, http.StatusBadRequest, ""},
		{"unknown field", http.MethodPost, "/tokens/" + mint + "/buy", map[string]any{"qty": 1}, http.StatusBadRequest, ""},
		{"duplicate agent", http.MethodPost, "/agents", map[string]any{"id": "agent-001", "owner": "o", "name": "n"}, http.StatusConflict, ""},
		{"invalid agent", http.MethodPost, "/agents", map[string]any{"id": "", "owner": "o", "name": "n"}, http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := do(t, srv, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, code, "body: %v", body)
			if tt.kind != "" {
				assert.Equal(t, tt.kind, body["kind"])
			}
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestLaunch_InvalidCurve(t *testing.T) {
	srv := newTestServer(t, nil)
	_ = setupToken(t, srv)

	body := launchBody()
	body["curve"].(map[string]any)["migration_threshold"] = 2000000

	code, res := do(t, srv, http.MethodPost, "/tokens", body)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "INVALID_CURVE_PARAMS", res["kind"])
}

func TestMigratedCurveConflict(t *testing.T) {
	srv := newTestServer(t, nil)
	mint := setupToken(t, srv)

	code, res := do(t, srv, http.MethodPost, "/tokens/"+mint+"/buy", map[string]any{"amount": 500000})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, res["migrated"])

	code, res = do(t, srv, http.MethodPost, "/tokens/"+mint+"/buy", map[string]any{"amount": 1})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "CURVE_MIGRATED", res["kind"])
}

func TestListings(t *testing.T) {
	srv := newTestServer(t, nil)
	mint := setupToken(t, srv)

	code, res := do(t, srv, http.MethodPost, "/tokens/"+mint+"/buy", map[string]any{"amount": 3000})
	require.Equal(t, http.StatusOK, code, "body: %v", res)

	code, trending := doList(t, srv, "/tokens/trending?limit=5")
	require.Equal(t, http.StatusOK, code)
	require.Len(t, trending, 1)
	assert.Equal(t, mint, trending[0]["mint"])

	code, featured := doList(t, srv, "/agents/featured")
	require.Equal(t, http.StatusOK, code)
	require.Len(t, featured, 1)

	code, featured = doList(t, srv, "/agents/featured?min=100000")
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, featured)

	code, tokens := doList(t, srv, "/agents/agent-001/tokens")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, tokens, 1)

	code, agent := do(t, srv, http.MethodPost, "/agents/agent-001/verify", map[string]any{"verified": true})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, agent["is_verified"])
}

func TestRateLimiter(t *testing.T) {
	limiter := NewRateLimiter(RateLimit{RequestsPerMinute: 1, Burst: 2})
	t.Cleanup(limiter.Close)
	srv := newTestServer(t, limiter)

	for i := 0; i < 2; i++ {
		code, _ := do(t, srv, http.MethodGet, "/agents/ghost", nil)
		assert.Equal(t, http.StatusNotFound, code)
	}
	code, _ := do(t, srv, http.MethodGet, "/agents/ghost", nil)
	assert.Equal(t, http.StatusTooManyRequests, code)

	code, _ = do(t, srv, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, code, "health is not rate limited")
}

func TestClientID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5000"
	assert.Equal(t, "10.0.0.1", clientID(req))

	req.Header.Set("X-Forwarded-For", "192.168.1.1, 10.0.0.2")
	assert.Equal(t, "192.168.1.1", clientID(req))

	req.Header.Set("X-Real-IP", "172.16.0.1")
	assert.Equal(t, "172.16.0.1", clientID(req))
}

func TestStatusFor_StorageErrors(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{storage.ErrNotFound, http.StatusNotFound},
		{storage.ErrDuplicateKey, http.StatusConflict},
		{fmt.Errorf("%w: lock_timeout", storage.ErrConflict), http.StatusConflict},
		{storage.ErrInvalidInput, http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), "%v", tt.err)
	}
}
