package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"libu-backend/internal/logger"
	"libu-backend/internal/models"
	"libu-backend/internal/repository"
	"libu-backend/internal/services"
	"libu-backend/internal/session"
)

type tokenIssuer interface {
	GenerateAccessToken(learnerID uuid.UUID) (string, int, error)
}

type AuthHandler struct {
	tokens tokenIssuer
	log    *logger.Logger
}

func NewAuthHandler(tokens tokenIssuer, log *logger.Logger) *AuthHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &AuthHandler{tokens: tokens, log: log}
}

type guestResponse struct {
	LearnerID   string `json:"learner_id"`
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// Guest issues a token for a fresh anonymous learner.
func (h *AuthHandler) Guest(w http.ResponseWriter, r *http.Request) {
	learnerID := uuid.New()
	token, expiresIn, err := h.tokens.GenerateAccessToken(learnerID)
	if err != nil {
		h.log.Error("issue guest token", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to issue token", r))
		return
	}

	writeJSON(w, http.StatusCreated, guestResponse{
		LearnerID:   learnerID.String(),
		AccessToken: token,
		ExpiresIn:   expiresIn,
	})
}

// Shared helpers

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func errorResp(code, message string, r *http.Request) models.ErrorResponse {
	return models.ErrorResponse{
		Error: models.APIError{
			Code:      code,
			Message:   message,
			RequestID: r.Header.Get("X-Request-ID"),
		},
	}
}

func errorRespWithFields(code, message string, fields map[string]string, r *http.Request) models.ErrorResponse {
	return models.ErrorResponse{
		Error: models.APIError{
			Code:      code,
			Message:   message,
			Fields:    fields,
			RequestID: r.Header.Get("X-Request-ID"),
		},
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return false
	}
	return true
}

func handleServiceError(w http.ResponseWriter, r *http.Request, log *logger.Logger, err error) {
	var inputErr *services.InputError
	switch {
	case errors.As(err, &inputErr):
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
			map[string]string{inputErr.Field: inputErr.Message}, r))
	case errors.Is(err, repository.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Not found", r))
	case errors.Is(err, session.ErrNoActiveContent):
		writeJSON(w, http.StatusConflict, errorResp("NO_ACTIVE_CONTENT", "Save a content before starting a module", r))
	case errors.Is(err, services.ErrAIUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, errorResp("AI_UNAVAILABLE", "Analysis is not configured", r))
	case errors.Is(err, services.ErrAIResponse):
		writeJSON(w, http.StatusBadGateway, errorResp("AI_ERROR", "Analysis returned an unusable answer", r))
	case errors.Is(err, repository.ErrCorrupt):
		log.Error("stored session data unreadable", "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResp("STORAGE_CORRUPT", "Stored session data is unreadable", r))
	default:
		log.Error("request failed", "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "An unexpected error occurred", r))
	}
}
