package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"libu-backend/internal/logger"
	"libu-backend/internal/models"
	"libu-backend/internal/scoring"
)

type libraryService interface {
	Library(ctx context.Context, learnerID string) []models.LibrarySummary
	LibraryItem(ctx context.Context, learnerID, id string) (*models.LibraryItem, scoring.Competency, error)
	RemoveLibraryItem(ctx context.Context, learnerID, id string) (bool, error)
	RemoveLibraryItems(ctx context.Context, learnerID string, ids []string) (int, error)
}

type LibraryHandler struct {
	library libraryService
	log     *logger.Logger
}

func NewLibraryHandler(library libraryService, log *logger.Logger) *LibraryHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &LibraryHandler{library: library, log: log}
}

func (h *LibraryHandler) List(w http.ResponseWriter, r *http.Request) {
	items := h.library.Library(r.Context(), learnerID(r))
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": items, "total": len(items)})
}

type libraryItemResponse struct {
	Item       *models.LibraryItem `json:"item"`
	Competency scoring.Competency  `json:"competency"`
}

func (h *LibraryHandler) Get(w http.ResponseWriter, r *http.Request) {
	item, c, err := h.library.LibraryItem(r.Context(), learnerID(r), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, libraryItemResponse{Item: item, Competency: c})
}

// Delete is idempotent: removing an unknown id still succeeds.
func (h *LibraryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	removed, err := h.library.RemoveLibraryItem(r.Context(), learnerID(r), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"removed": removed})
}

func (h *LibraryHandler) BulkDelete(w http.ResponseWriter, r *http.Request) {
	var req models.BulkDeleteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.IDs) == 0 {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
			map[string]string{"ids": "At least one id is required"}, r))
		return
	}

	removed, err := h.library.RemoveLibraryItems(r.Context(), learnerID(r), req.IDs)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}
