package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"semsql/internal/domain"
	"semsql/internal/middleware"
	"semsql/internal/ratelimit"
	"semsql/internal/service/generator"
	"semsql/internal/service/semantic"
)

const revenueByStatus = `{
  "query_json": {"metrics": ["total_revenue"], "dimensions": ["status"], "filters": []},
  "semantic_layer_json": {
    "metrics": [{"name": "total_revenue", "sql": "SUM(sale_price)", "table": "order_items"}],
    "dimensions": [{"name": "status", "sql": "status", "table": "orders"}],
    "joins": [{"one": "orders", "many": "order_items", "join": "order_items.order_id = orders.order_id"}]
  }
}`

const revenueByStatusSQL = "SELECT SUM(order_items.sale_price) AS total_revenue, orders.status AS status\n" +
	"FROM order_items\n" +
	"JOIN orders ON order_items.order_id = orders.order_id\n" +
	"GROUP BY orders.status"

// === Fakes ===

type fakeWarehouse struct {
	lastSQL string
	err     error
}

func (f *fakeWarehouse) Execute(_ context.Context, sqlQuery string) (*domain.QueryResult, error) {
	f.lastSQL = sqlQuery
	if f.err != nil {
		return nil, f.err
	}
	return &domain.QueryResult{
		Columns:   []string{"total_revenue", "status"},
		Rows:      [][]interface{}{{1180.0, "Complete"}},
		TotalRows: 1,
	}, nil
}

type fakeGeneration struct {
	answerFn func(q generator.Question) (*generator.Answer, error)
	batchFn  func(qs []generator.Question) ([]generator.BatchResult, error)
}

func (f *fakeGeneration) Answer(_ context.Context, q generator.Question) (*generator.Answer, error) {
	if f.answerFn == nil {
		panic("fakeGeneration.Answer called but not configured")
	}
	return f.answerFn(q)
}

func (f *fakeGeneration) AnswerAll(_ context.Context, qs []generator.Question) ([]generator.BatchResult, error) {
	if f.batchFn == nil {
		panic("fakeGeneration.AnswerAll called but not configured")
	}
	return f.batchFn(qs)
}

// === Helpers ===

func newTestServer(t *testing.T, gen generationService, wh domain.Warehouse, cfg RouterConfig) *httptest.Server {
	t.Helper()
	svc := semantic.NewService(nil)
	if wh != nil {
		svc.SetWarehouse(wh)
	}
	h := NewHandler(svc, gen, nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	srv := httptest.NewServer(NewRouter(ctx, h, cfg, nil))
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, srv *httptest.Server, path, body string, headers ...string) (*http.Response, map[string]interface{}) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck

	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

// === Tests ===

func TestHealth(t *testing.T) {
	srv := newTestServer(t, nil, nil, RouterConfig{})

	resp, err := srv.Client().Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(middleware.RequestIDHeader))
}

func TestCompile(t *testing.T) {
	srv := newTestServer(t, nil, nil, RouterConfig{})

	resp, body := post(t, srv, "/v1/compile", revenueByStatus)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, revenueByStatusSQL, body["sql"])
}

func TestExplain(t *testing.T) {
	srv := newTestServer(t, nil, nil, RouterConfig{})

	resp, body := post(t, srv, "/v1/explain", revenueByStatus)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, revenueByStatusSQL, body["sql"])
	assert.Equal(t, "order_items", body["anchor"])
	joins, ok := body["join_path"].([]interface{})
	require.True(t, ok)
	assert.Len(t, joins, 1)
}

func TestCompile_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantKind   string
	}{
		{
			name:       "unknown metric",
			body:       `{"query_json": {"metrics": ["profit"]}, "semantic_layer_json": {"metrics": [], "dimensions": [], "joins": []}}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantKind:   "unknown_metric",
		},
		{
			name: "missing join",
			body: `{"query_json": {"metrics": ["m"], "dimensions": ["d"]}, "semantic_layer_json": {
				"metrics": [{"name": "m", "sql": "COUNT(*)", "table": "a"}],
				"dimensions": [{"name": "d", "sql": "x", "table": "b"}], "joins": []}}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantKind:   "missing_join",
		},
		{
			name:       "no tables",
			body:       `{"query_json": {}, "semantic_layer_json": {}}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantKind:   "no_tables",
		},
		{
			name:       "malformed json",
			body:       `{"query_json": `,
			wantStatus: http.StatusBadRequest,
			wantKind:   "validation",
		},
		{
			name:       "unknown field",
			body:       `{"query": {}}`,
			wantStatus: http.StatusBadRequest,
			wantKind:   "validation",
		},
		{
			name:       "empty body",
			body:       ``,
			wantStatus: http.StatusBadRequest,
			wantKind:   "validation",
		},
	}

	srv := newTestServer(t, nil, nil, RouterConfig{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := post(t, srv, "/v1/compile", tt.body)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.InDelta(t, float64(tt.wantStatus), body["code"], 0)
			assert.Equal(t, tt.wantKind, body["kind"])
			assert.NotEmpty(t, body["message"])
		})
	}
}

func TestRun(t *testing.T) {
	t.Run("executes compiled sql", func(t *testing.T) {
		wh := &fakeWarehouse{}
		srv := newTestServer(t, nil, wh, RouterConfig{})

		resp, body := post(t, srv, "/v1/run", revenueByStatus)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, revenueByStatusSQL, wh.lastSQL)
		assert.Equal(t, revenueByStatusSQL, body["sql"])
		assert.InDelta(t, 1, body["total_rows"], 0)
		assert.Equal(t, []interface{}{"total_revenue", "status"}, body["columns"])
	})

	t.Run("no warehouse", func(t *testing.T) {
		srv := newTestServer(t, nil, nil, RouterConfig{})

		resp, body := post(t, srv, "/v1/run", revenueByStatus)
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		assert.Equal(t, "not_configured", body["kind"])
	})

	t.Run("warehouse failure hides details", func(t *testing.T) {
		srv := newTestServer(t, nil, &fakeWarehouse{err: errors.New("catalog exploded")}, RouterConfig{})

		resp, body := post(t, srv, "/v1/run", revenueByStatus)
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		assert.Equal(t, "internal error", body["message"])
		assert.Equal(t, "internal", body["kind"])
	})
}

func TestGenerate(t *testing.T) {
	gen := &fakeGeneration{answerFn: func(q generator.Question) (*generator.Answer, error) {
		switch q.Text {
		case "":
			return nil, domain.ErrValidation("question is required")
		case "uncached":
			return nil, fmt.Errorf("generate: %w", domain.ErrNotConfigured("generator"))
		case "flaky":
			return nil, fmt.Errorf("generate: %w", &ratelimit.ExhaustedError{Target: "gpt-4o", Attempts: 5, Last: errors.New("503")})
		case "bad layer":
			return nil, &domain.UnknownDimensionError{Name: "region"}
		}
		return &generator.Answer{QuestionID: "q1", Question: q.Text, Model: "gpt-4o", Cached: true, SQL: revenueByStatusSQL}, nil
	}}
	srv := newTestServer(t, gen, nil, RouterConfig{})

	tests := []struct {
		name       string
		question   string
		wantStatus int
		wantKind   string
	}{
		{name: "answered", question: "revenue by status", wantStatus: http.StatusOK},
		{name: "empty question", question: "", wantStatus: http.StatusBadRequest, wantKind: "validation"},
		{name: "no generator on miss", question: "uncached", wantStatus: http.StatusServiceUnavailable, wantKind: "not_configured"},
		{name: "retries exhausted", question: "flaky", wantStatus: http.StatusBadGateway, wantKind: "upstream_exhausted"},
		{name: "compile error", question: "bad layer", wantStatus: http.StatusUnprocessableEntity, wantKind: "unknown_dimension"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := json.Marshal(generator.Question{Text: tt.question})
			require.NoError(t, err)
			resp, body := post(t, srv, "/v1/generate", string(payload))
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			if tt.wantKind != "" {
				assert.Equal(t, tt.wantKind, body["kind"])
				return
			}
			assert.Equal(t, revenueByStatusSQL, body["sql"])
			assert.Equal(t, true, body["cached"])
		})
	}
}

func TestGenerate_NotConfigured(t *testing.T) {
	srv := newTestServer(t, nil, nil, RouterConfig{})

	resp, body := post(t, srv, "/v1/generate", `{"question": "revenue"}`)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "not_configured", body["kind"])
}

func TestGenerateBatch(t *testing.T) {
	gen := &fakeGeneration{batchFn: func(qs []generator.Question) ([]generator.BatchResult, error) {
		out := make([]generator.BatchResult, len(qs))
		for i, q := range qs {
			out[i] = generator.BatchResult{QuestionID: q.ID, Status: http.StatusOK}
		}
		return out, nil
	}}
	srv := newTestServer(t, gen, nil, RouterConfig{})

	resp, body := post(t, srv, "/v1/generate/batch",
		`{"questions": [{"question_id": "a", "question": "x"}, {"question_id": "b", "question": "y"}]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	results, ok := body["results"].([]interface{})
	require.True(t, ok)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].(map[string]interface{})["question_id"])
	assert.Equal(t, "b", results[1].(map[string]interface{})["question_id"])

	resp, body = post(t, srv, "/v1/generate/batch", `{"questions": []}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "validation", body["kind"])
}

func TestRouter_APIKeyAuth(t *testing.T) {
	srv := newTestServer(t, nil, nil, RouterConfig{APIKeys: map[string]string{"ci": "secret"}})

	resp, body := post(t, srv, "/v1/compile", revenueByStatus)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "unauthorized", body["kind"])

	resp, body = post(t, srv, "/v1/compile", revenueByStatus, middleware.APIKeyHeader, "secret")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, revenueByStatusSQL, body["sql"])

	health, err := srv.Client().Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer health.Body.Close() //nolint:errcheck
	assert.Equal(t, http.StatusOK, health.StatusCode, "health check stays public")
}

func TestRouter_RateLimit(t *testing.T) {
	srv := newTestServer(t, nil, nil, RouterConfig{
		RateLimit: middleware.RateLimitConfig{RequestsPerSecond: 1, Burst: 1},
	})

	resp, _ := post(t, srv, "/v1/compile", revenueByStatus)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, body := post(t, srv, "/v1/compile", revenueByStatus)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "rate_limited", body["kind"])
}

func TestRouter_NotFound(t *testing.T) {
	srv := newTestServer(t, nil, nil, RouterConfig{})

	resp, body := post(t, srv, "/v1/nope", `{}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", body["kind"])
}

func TestRouter_CORSPreflight(t *testing.T) {
	srv := newTestServer(t, nil, nil, RouterConfig{CORSAllowedOrigins: []string{"https://app.example"}})

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/v1/compile", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck

	assert.Equal(t, "https://app.example", resp.Header.Get("Access-Control-Allow-Origin"))
}
