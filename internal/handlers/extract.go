package handlers

import (
	"context"
	"net/http"
	"strings"

	"libu-backend/internal/models"
)

type extractor interface {
	Extract(ctx context.Context, rawURL string, contentType models.ContentType) models.ExtractResult
}

type ExtractHandler struct {
	extractor extractor
}

func NewExtractHandler(extractor extractor) *ExtractHandler {
	return &ExtractHandler{extractor: extractor}
}

// Extract reports extraction failures in-band; only malformed requests get an error status.
func (h *ExtractHandler) Extract(w http.ResponseWriter, r *http.Request) {
	var req models.ExtractRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	req.URL = strings.TrimSpace(req.URL)
	if req.URL == "" {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
			map[string]string{"url": "URL is required"}, r))
		return
	}
	if req.Type != "" && !req.Type.Valid() {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
			map[string]string{"type": "Unknown content type"}, r))
		return
	}

	writeJSON(w, http.StatusOK, h.extractor.Extract(r.Context(), req.URL, req.Type))
}

// Health is the unauthenticated liveness probe.
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
