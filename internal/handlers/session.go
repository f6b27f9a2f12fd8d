package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"libu-backend/internal/logger"
	"libu-backend/internal/middleware"
	"libu-backend/internal/models"
	"libu-backend/internal/scoring"
	"libu-backend/internal/session"
)

type sessionService interface {
	NewContent(req models.SaveContentRequest) *models.ActiveContent
	SetActiveContent(ctx context.Context, learnerID string, next *models.ActiveContent) (*models.LibraryItem, error)
	ClearSession(ctx context.Context, learnerID string) (*models.LibraryItem, error)
	AddRecord(ctx context.Context, learnerID string, rec models.LearningRecord) (scoring.Competency, error)
	ClearRecords(ctx context.Context, learnerID string) error
	ActiveContent(ctx context.Context, learnerID string) (*models.ActiveContent, error)
	Snapshot(ctx context.Context, learnerID string) (session.Snapshot, error)
	Report(ctx context.Context, learnerID string) (session.Report, error)
}

type SessionHandler struct {
	sessions sessionService
	log      *logger.Logger
}

func NewSessionHandler(sessions sessionService, log *logger.Logger) *SessionHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &SessionHandler{sessions: sessions, log: log}
}

func learnerID(r *http.Request) string {
	return middleware.GetLearnerID(r.Context()).String()
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	snap, err := h.sessions.Snapshot(r.Context(), learnerID(r))
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type setContentResponse struct {
	Content  *models.ActiveContent `json:"content"`
	Archived *models.LibraryItem   `json:"archived"`
}

// SetContent starts a session on new content, archiving the previous one when it has records.
func (h *SessionHandler) SetContent(w http.ResponseWriter, r *http.Request) {
	var req models.SaveContentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	req.Normalize()
	if fields := req.Validate(); len(fields) > 0 {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed", fields, r))
		return
	}

	content := h.sessions.NewContent(req)
	archived, err := h.sessions.SetActiveContent(r.Context(), learnerID(r), content)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, setContentResponse{Content: content, Archived: archived})
}

type resetResponse struct {
	Archived *models.LibraryItem `json:"archived"`
}

func (h *SessionHandler) Reset(w http.ResponseWriter, r *http.Request) {
	archived, err := h.sessions.ClearSession(r.Context(), learnerID(r))
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, resetResponse{Archived: archived})
}

type addRecordResponse struct {
	Record     models.LearningRecord `json:"record"`
	Competency scoring.Competency    `json:"competency"`
}

// AddRecord appends a client-built record. Unknown tab names are stored but never scored.
func (h *SessionHandler) AddRecord(w http.ResponseWriter, r *http.Request) {
	var rec models.LearningRecord
	if !decodeJSON(w, r, &rec) {
		return
	}

	rec.TabName = models.Module(strings.TrimSpace(string(rec.TabName)))
	if rec.TabName == "" {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
			map[string]string{"tabName": "tabName is required"}, r))
		return
	}
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	if rec.Scores == nil {
		rec.Scores = models.Scores{}
	}
	if rec.DurationSec < 0 {
		rec.DurationSec = 0
	}

	c, err := h.sessions.AddRecord(r.Context(), learnerID(r), rec)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, addRecordResponse{Record: rec, Competency: c})
}

func (h *SessionHandler) ClearRecords(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.ClearRecords(r.Context(), learnerID(r)); err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Records cleared"})
}

func (h *SessionHandler) Report(w http.ResponseWriter, r *http.Request) {
	report, err := h.sessions.Report(r.Context(), learnerID(r))
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
