package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"libu-backend/internal/logger"
	"libu-backend/internal/middleware"
	"libu-backend/internal/models"
	"libu-backend/internal/repository"
	"libu-backend/internal/services"
	"libu-backend/internal/session"
)

const longText = "언론 보도는 사실과 의견을 구분해서 읽어야 한다. 이 기사는 새 정책의 효과를 여러 관점에서 다룬다."

type stubAnalyzer struct {
	result json.RawMessage
	err    error
	calls  int
	last   services.AnalysisRequest
}

func (s *stubAnalyzer) Analyze(_ context.Context, _ models.Module, req services.AnalysisRequest) (json.RawMessage, error) {
	s.calls++
	s.last = req
	return s.result, s.err
}

type stubExtractor struct {
	result  models.ExtractResult
	lastURL string
}

func (s *stubExtractor) Extract(_ context.Context, rawURL string, _ models.ContentType) models.ExtractResult {
	s.lastURL = rawURL
	return s.result
}

func newRequest(method, target string, body interface{}, learner uuid.UUID, params map[string]string) *http.Request {
	var buf bytes.Buffer
	if s, ok := body.(string); ok {
		buf.WriteString(s)
	} else if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}

	req := httptest.NewRequest(method, target, &buf)
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	req = req.WithContext(context.WithValue(req.Context(), middleware.LearnerIDKey, learner))
	return req
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
}

func saveContent(t *testing.T, h *SessionHandler, learner uuid.UUID, title string) setContentResponse {
	t.Helper()
	rr := httptest.NewRecorder()
	h.SetContent(rr, newRequest(http.MethodPut, "/api/v1/session/content", map[string]string{
		"title": title, "type": "news", "text": longText,
	}, learner, nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rr.Code, rr.Body.String())
	}
	var resp setContentResponse
	decodeBody(t, rr, &resp)
	return resp
}

func TestAuthHandler_Guest(t *testing.T) {
	auth := middleware.NewJWTAuth("secret")
	h := NewAuthHandler(auth, nil)

	rr := httptest.NewRecorder()
	h.Guest(rr, httptest.NewRequest(http.MethodPost, "/api/v1/auth/guest", nil))

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d", http.StatusCreated, rr.Code)
	}
	var resp guestResponse
	decodeBody(t, rr, &resp)
	parsed, err := auth.ParseToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("issued token does not parse: %v", err)
	}
	if parsed.String() != resp.LearnerID {
		t.Fatalf("token learner %s does not match %s", parsed, resp.LearnerID)
	}
	if resp.ExpiresIn <= 0 {
		t.Fatalf("expected positive expires_in, got %d", resp.ExpiresIn)
	}
}

func TestSessionHandler_SetContentValidation(t *testing.T) {
	h := NewSessionHandler(session.NewManager(repository.NewMemoryStore(), nil, nil), nil)

	rr := httptest.NewRecorder()
	h.SetContent(rr, newRequest(http.MethodPut, "/api/v1/session/content", map[string]string{
		"title": "  ", "type": "podcast", "text": "too short",
	}, uuid.New(), nil))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rr.Code)
	}
	var resp models.ErrorResponse
	decodeBody(t, rr, &resp)
	for _, field := range []string{"title", "type", "text"} {
		if _, ok := resp.Error.Fields[field]; !ok {
			t.Fatalf("expected a %s field error, got %v", field, resp.Error.Fields)
		}
	}
}

func TestSessionHandler_InvalidBody(t *testing.T) {
	h := NewSessionHandler(session.NewManager(repository.NewMemoryStore(), nil, nil), nil)

	rr := httptest.NewRecorder()
	h.SetContent(rr, newRequest(http.MethodPut, "/api/v1/session/content", "{not json", uuid.New(), nil))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rr.Code)
	}
}

func TestSessionHandler_ReplacingContentArchives(t *testing.T) {
	mgr := session.NewManager(repository.NewMemoryStore(), nil, nil)
	h := NewSessionHandler(mgr, nil)
	learner := uuid.New()

	first := saveContent(t, h, learner, "첫 번째 기사")
	if first.Archived != nil {
		t.Fatalf("first content should not archive anything")
	}

	rr := httptest.NewRecorder()
	h.AddRecord(rr, newRequest(http.MethodPost, "/api/v1/session/records", map[string]interface{}{
		"tabName":      "summary",
		"contentId":    first.Content.ID,
		"contentTitle": first.Content.Title,
		"scores":       map[string]float64{"gapScore": 70},
	}, learner, nil))
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rr.Code, rr.Body.String())
	}
	var added addRecordResponse
	decodeBody(t, rr, &added)
	if added.Record.ID == "" || added.Record.Timestamp.IsZero() {
		t.Fatalf("expected id and timestamp to be filled, got %+v", added.Record)
	}
	if added.Competency.Overall != 70 {
		t.Fatalf("expected overall 70, got %d", added.Competency.Overall)
	}

	second := saveContent(t, h, learner, "두 번째 기사")
	if second.Archived == nil {
		t.Fatalf("replacing content with records should archive it")
	}
	if second.Archived.Content.ID != first.Content.ID || len(second.Archived.Records) != 1 {
		t.Fatalf("unexpected archive %+v", second.Archived)
	}
}

func TestSessionHandler_AddRecordRequiresTabName(t *testing.T) {
	h := NewSessionHandler(session.NewManager(repository.NewMemoryStore(), nil, nil), nil)

	rr := httptest.NewRecorder()
	h.AddRecord(rr, newRequest(http.MethodPost, "/api/v1/session/records", map[string]interface{}{
		"scores": map[string]float64{"x": 1},
	}, uuid.New(), nil))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rr.Code)
	}
}

func TestSessionHandler_ResetAndGet(t *testing.T) {
	mgr := session.NewManager(repository.NewMemoryStore(), nil, nil)
	h := NewSessionHandler(mgr, nil)
	learner := uuid.New()
	saveContent(t, h, learner, "기사")

	rr := httptest.NewRecorder()
	h.Reset(rr, newRequest(http.MethodDelete, "/api/v1/session", nil, learner, nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	var reset resetResponse
	decodeBody(t, rr, &reset)
	if reset.Archived != nil {
		t.Fatalf("a session without records should not be archived")
	}

	rr = httptest.NewRecorder()
	h.Get(rr, newRequest(http.MethodGet, "/api/v1/session", nil, learner, nil))
	var snap session.Snapshot
	decodeBody(t, rr, &snap)
	if snap.ActiveContent != nil || len(snap.Records) != 0 {
		t.Fatalf("expected empty session after reset, got %+v", snap)
	}
}

func TestModuleHandler_Analyze(t *testing.T) {
	mgr := session.NewManager(repository.NewMemoryStore(), nil, nil)
	sh := NewSessionHandler(mgr, nil)
	learner := uuid.New()
	saved := saveContent(t, sh, learner, "정책 기사")

	ai := &stubAnalyzer{result: json.RawMessage(`{"feedback":"좋아요","confidenceScore":80,"sources":[]}`)}
	h := NewModuleHandler(mgr, ai, nil)

	rr := httptest.NewRecorder()
	h.Analyze(rr, newRequest(http.MethodPost, "/api/v1/modules/inference/analyze", map[string]interface{}{
		"inputs": map[string]string{"interpretation": "정책의 숨은 의도"},
	}, learner, map[string]string{"module": "inference"}))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rr.Code, rr.Body.String())
	}
	var resp analyzeResponse
	decodeBody(t, rr, &resp)
	if resp.Record.ContentID != saved.Content.ID || resp.Record.TabName != models.ModuleInference {
		t.Fatalf("record not stamped with the active content: %+v", resp.Record)
	}
	if resp.Competency.Overall != 80 {
		t.Fatalf("expected overall 80, got %d", resp.Competency.Overall)
	}
	if ai.last.ContentText != longText {
		t.Fatalf("analysis should receive the active content text")
	}
}

func TestModuleHandler_AnalyzeErrors(t *testing.T) {
	tests := []struct {
		name       string
		module     string
		withActive bool
		err        error
		wantStatus int
		wantCode   string
	}{
		{"unknown module", "astrology", true, nil, http.StatusNotFound, "NOT_FOUND"},
		{"no active content", "summary", false, nil, http.StatusConflict, "NO_ACTIVE_CONTENT"},
		{"missing input", "summary", true, &services.InputError{Field: "summary", Message: "required"}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"ai unavailable", "summary", true, services.ErrAIUnavailable, http.StatusServiceUnavailable, "AI_UNAVAILABLE"},
		{"bad ai answer", "summary", true, services.ErrAIResponse, http.StatusBadGateway, "AI_ERROR"},
		{"upstream failure", "summary", true, errors.New("connection reset"), http.StatusBadGateway, "AI_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mgr := session.NewManager(repository.NewMemoryStore(), nil, nil)
			learner := uuid.New()
			if tt.withActive {
				saveContent(t, NewSessionHandler(mgr, nil), learner, "기사")
			}
			h := NewModuleHandler(mgr, &stubAnalyzer{result: json.RawMessage(`{}`), err: tt.err}, nil)

			rr := httptest.NewRecorder()
			h.Analyze(rr, newRequest(http.MethodPost, "/api/v1/modules/"+tt.module+"/analyze",
				map[string]interface{}{"inputs": map[string]string{}}, learner, map[string]string{"module": tt.module}))

			if rr.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d: %s", tt.wantStatus, rr.Code, rr.Body.String())
			}
			var resp models.ErrorResponse
			decodeBody(t, rr, &resp)
			if resp.Error.Code != tt.wantCode {
				t.Fatalf("expected code %s, got %s", tt.wantCode, resp.Error.Code)
			}

			snap, _ := mgr.Snapshot(context.Background(), learner.String())
			if len(snap.Records) != 0 {
				t.Fatalf("failed analysis must not record anything")
			}
		})
	}
}

func TestLibraryHandler(t *testing.T) {
	mgr := session.NewManager(repository.NewMemoryStore(), nil, nil)
	sh := NewSessionHandler(mgr, nil)
	lh := NewLibraryHandler(mgr, nil)
	learner := uuid.New()

	saved := saveContent(t, sh, learner, "보관할 기사")
	rr := httptest.NewRecorder()
	sh.AddRecord(rr, newRequest(http.MethodPost, "/api/v1/session/records", map[string]interface{}{
		"tabName": "critical", "contentId": saved.Content.ID, "scores": map[string]float64{"diversity": 90},
	}, learner, nil))
	rr = httptest.NewRecorder()
	sh.Reset(rr, newRequest(http.MethodDelete, "/api/v1/session", nil, learner, nil))
	var reset resetResponse
	decodeBody(t, rr, &reset)
	if reset.Archived == nil {
		t.Fatalf("expected the session to be archived")
	}
	id := reset.Archived.ID

	rr = httptest.NewRecorder()
	lh.List(rr, newRequest(http.MethodGet, "/api/v1/library", nil, learner, nil))
	if !strings.Contains(rr.Body.String(), id) {
		t.Fatalf("library list should contain %s: %s", id, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	lh.Get(rr, newRequest(http.MethodGet, "/api/v1/library/"+id, nil, learner, map[string]string{"id": id}))
	var item libraryItemResponse
	decodeBody(t, rr, &item)
	if item.Competency.Overall != 90 {
		t.Fatalf("expected archived overall 90, got %d", item.Competency.Overall)
	}

	rr = httptest.NewRecorder()
	lh.Get(rr, newRequest(http.MethodGet, "/api/v1/library/missing", nil, learner, map[string]string{"id": "missing"}))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, rr.Code)
	}

	rr = httptest.NewRecorder()
	lh.BulkDelete(rr, newRequest(http.MethodPost, "/api/v1/library/bulk-delete",
		map[string][]string{"ids": {id, "missing"}}, learner, nil))
	var removed map[string]int
	decodeBody(t, rr, &removed)
	if removed["removed"] != 1 {
		t.Fatalf("expected 1 removed, got %d", removed["removed"])
	}

	rr = httptest.NewRecorder()
	lh.Delete(rr, newRequest(http.MethodDelete, "/api/v1/library/"+id, nil, learner, map[string]string{"id": id}))
	if rr.Code != http.StatusOK {
		t.Fatalf("deleting an absent item should still succeed, got %d", rr.Code)
	}
}

func TestLibraryHandler_BulkDeleteRequiresIDs(t *testing.T) {
	lh := NewLibraryHandler(session.NewManager(repository.NewMemoryStore(), nil, nil), nil)

	rr := httptest.NewRecorder()
	lh.BulkDelete(rr, newRequest(http.MethodPost, "/api/v1/library/bulk-delete", map[string][]string{"ids": {}}, uuid.New(), nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rr.Code)
	}
}

func TestExtractHandler(t *testing.T) {
	ex := &stubExtractor{result: models.ExtractResult{Success: false, Error: "본문이 너무 짧습니다"}}
	h := NewExtractHandler(ex)

	rr := httptest.NewRecorder()
	h.Extract(rr, newRequest(http.MethodPost, "/api/v1/content/extract",
		map[string]string{"url": " https://example.com/a ", "type": "news"}, uuid.New(), nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("in-band failures should still be 200, got %d", rr.Code)
	}
	if ex.lastURL != "https://example.com/a" {
		t.Fatalf("url should be trimmed, got %q", ex.lastURL)
	}
	var result models.ExtractResult
	decodeBody(t, rr, &result)
	if result.Success || result.Error == "" {
		t.Fatalf("expected in-band failure, got %+v", result)
	}

	rr = httptest.NewRecorder()
	h.Extract(rr, newRequest(http.MethodPost, "/api/v1/content/extract", map[string]string{"url": ""}, uuid.New(), nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rr.Code)
	}
}

func TestHandleServiceError_Corrupt(t *testing.T) {
	rr := httptest.NewRecorder()
	handleServiceError(rr, httptest.NewRequest(http.MethodGet, "/", nil), logger.Nop(), repository.ErrCorrupt)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, rr.Code)
	}
}
