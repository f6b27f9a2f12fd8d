package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"libu-backend/internal/handlers"
	"libu-backend/internal/logger"
	"libu-backend/internal/middleware"
	"libu-backend/internal/models"
	"libu-backend/internal/repository"
	"libu-backend/internal/services"
	"libu-backend/internal/session"
	"libu-backend/internal/websocket"
)

type fakeAnalyzer struct{}

func (fakeAnalyzer) Analyze(context.Context, models.Module, services.AnalysisRequest) (json.RawMessage, error) {
	return json.RawMessage(`{"gapScore":30,"sources":[]}`), nil
}

type fakeExtractor struct{}

func (fakeExtractor) Extract(context.Context, string, models.ContentType) models.ExtractResult {
	return models.ExtractResult{Success: true, Title: "t", Text: "본문"}
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	log := logger.Nop()
	jwtAuth := middleware.NewJWTAuth("test-secret")
	hub := websocket.NewHub(nil, jwtAuth, "*", log)
	mgr := session.NewManager(repository.NewMemoryStore(), hub, log)

	h := New(ctx, log, jwtAuth,
		handlers.NewAuthHandler(jwtAuth, log),
		handlers.NewSessionHandler(mgr, log),
		handlers.NewModuleHandler(mgr, fakeAnalyzer{}, log),
		handlers.NewLibraryHandler(mgr, log),
		handlers.NewExtractHandler(fakeExtractor{}),
		hub, "*", 2,
	)
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path, token string, body interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func guestToken(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	resp := do(t, srv, http.MethodPost, "/api/v1/auth/guest", "", nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected status %d, got %d", http.StatusCreated, resp.StatusCode)
	}
	var body struct {
		AccessToken string `json:"access_token"`
	}
	json.NewDecoder(resp.Body).Decode(&body)
	return body.AccessToken
}

func TestRouter_Health(t *testing.T) {
	srv := newTestServer(t)
	resp := do(t, srv, http.MethodGet, "/health", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatalf("expected a request id header")
	}
}

func TestRouter_RequiresToken(t *testing.T) {
	srv := newTestServer(t)
	resp := do(t, srv, http.MethodGet, "/api/v1/session", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, resp.StatusCode)
	}
}

func TestRouter_SessionFlow(t *testing.T) {
	srv := newTestServer(t)
	token := guestToken(t, srv)

	resp := do(t, srv, http.MethodPut, "/api/v1/session/content", token, map[string]string{
		"title": "기사", "type": "news",
		"text": "이 기사는 지역 경제 정책의 효과와 한계를 여러 전문가의 시각에서 자세히 설명하고 있다.",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("save content: expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}

	resp = do(t, srv, http.MethodPost, "/api/v1/modules/summary/analyze", token, map[string]interface{}{
		"inputs": map[string]string{"summary": "요약"},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("analyze: expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}

	resp = do(t, srv, http.MethodGet, "/api/v1/report", token, nil)
	var report session.Report
	json.NewDecoder(resp.Body).Decode(&report)
	if report.Competency.Overall != 70 || report.Progress.TotalRecords != 1 {
		t.Fatalf("unexpected report %+v", report)
	}

	resp = do(t, srv, http.MethodDelete, "/api/v1/session", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reset: expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}

	resp = do(t, srv, http.MethodGet, "/api/v1/library", token, nil)
	var lib struct {
		Total int `json:"total"`
	}
	json.NewDecoder(resp.Body).Decode(&lib)
	if lib.Total != 1 {
		t.Fatalf("expected 1 archived session, got %d", lib.Total)
	}
}

func TestRouter_AnalyzeRateLimited(t *testing.T) {
	srv := newTestServer(t)
	token := guestToken(t, srv)

	var last int
	for i := 0; i < 3; i++ {
		last = do(t, srv, http.MethodPost, "/api/v1/modules/summary/analyze", token, map[string]interface{}{}).StatusCode
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("expected the third call to be rate limited, got %d", last)
	}
}
