package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"libu-backend/internal/logger"
	"libu-backend/internal/models"
	"libu-backend/internal/modules"
	"libu-backend/internal/scoring"
	"libu-backend/internal/services"
)

type analyzer interface {
	Analyze(ctx context.Context, module models.Module, req services.AnalysisRequest) (json.RawMessage, error)
}

type ModuleHandler struct {
	sessions sessionService
	analyzer analyzer
	log      *logger.Logger
	now      func() time.Time
}

func NewModuleHandler(sessions sessionService, analyzer analyzer, log *logger.Logger) *ModuleHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &ModuleHandler{sessions: sessions, analyzer: analyzer, log: log, now: time.Now}
}

type analyzeResponse struct {
	Result     json.RawMessage       `json:"result"`
	Record     models.LearningRecord `json:"record"`
	Competency scoring.Competency    `json:"competency"`
}

// Analyze runs one module against the active content and records the outcome.
func (h *ModuleHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	module := models.Module(chi.URLParam(r, "module"))
	if !module.Valid() {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Unknown module", r))
		return
	}

	var req models.AnalyzeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	learner := learnerID(r)
	content, err := h.sessions.ActiveContent(r.Context(), learner)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	result, err := h.analyzer.Analyze(r.Context(), module, services.AnalysisRequest{
		Inputs:       req.Inputs,
		ContentTitle: content.Title,
		ContentText:  content.Text,
		ContentURL:   content.URL,
	})
	if err != nil {
		var inputErr *services.InputError
		if errors.As(err, &inputErr) || errors.Is(err, services.ErrAIUnavailable) || errors.Is(err, services.ErrAIResponse) {
			handleServiceError(w, r, h.log, err)
			return
		}
		h.log.Warn("module analysis failed", "module", string(module), "learner_id", learner, "error", err)
		writeJSON(w, http.StatusBadGateway, errorResp("AI_ERROR", "Analysis failed, please try again", r))
		return
	}

	rec, err := modules.NewRecord(content, module, req.Inputs, result, req.StartedAt, h.now().UTC())
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	c, err := h.sessions.AddRecord(r.Context(), learner, rec)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, analyzeResponse{Result: result, Record: rec, Competency: c})
}
