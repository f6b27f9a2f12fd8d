// Package session owns the active-content lifecycle of each learner: the single
// active slot, the records collected against it, and archival into the library.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"libu-backend/internal/logger"
	"libu-backend/internal/models"
	"libu-backend/internal/repository"
	"libu-backend/internal/scoring"
)

// ErrNoActiveContent is returned when an operation needs an active content and there is none.
var ErrNoActiveContent = errors.New("no active content")

// Publisher delivers realtime session events to a learner's connections.
type Publisher interface {
	Publish(ctx context.Context, learnerID string, msg models.WSMessage) error
}

type Manager struct {
	store   repository.Store
	content *repository.ContentRepo
	records *repository.RecordRepo
	library *repository.LibraryRepo
	events  Publisher
	log     *logger.Logger
	locks   *keyedMutex
	now     func() time.Time
}

// NewManager wires the repositories over store. events may be nil.
func NewManager(store repository.Store, events Publisher, log *logger.Logger) *Manager {
	if log == nil {
		log = logger.Nop()
	}
	return &Manager{
		store:   store,
		content: repository.NewContentRepo(store),
		records: repository.NewRecordRepo(store),
		library: repository.NewLibraryRepo(store),
		events:  events,
		log:     log,
		locks:   newKeyedMutex(),
		now:     time.Now,
	}
}

// NewContent stamps a fresh id and start time on a validated request.
func (m *Manager) NewContent(req models.SaveContentRequest) *models.ActiveContent {
	return &models.ActiveContent{
		ID:        uuid.New().String(),
		Title:     req.Title,
		Type:      req.Type,
		Text:      req.Text,
		URL:       req.URL,
		StartTime: m.now(),
	}
}

// SetActiveContent replaces the active slot with next (nil clears it). When the current
// content is being replaced and has records, they are archived into a new library item
// before the slot changes. The archived item, if any, is returned.
func (m *Manager) SetActiveContent(ctx context.Context, learnerID string, next *models.ActiveContent) (*models.LibraryItem, error) {
	unlock := m.locks.Lock(learnerID)
	defer unlock()

	return m.transition(ctx, learnerID, next, false)
}

// ClearSession archives the current session if eligible, then clears both the
// active slot and the record list.
func (m *Manager) ClearSession(ctx context.Context, learnerID string) (*models.LibraryItem, error) {
	unlock := m.locks.Lock(learnerID)
	defer unlock()

	item, err := m.transition(ctx, learnerID, nil, true)
	if err != nil {
		return nil, err
	}

	ev := models.SessionResetEvent{}
	if item != nil {
		ev.ArchivedID = item.ID
	}
	m.publish(ctx, learnerID, models.EventSessionReset, ev)
	return item, nil
}

func (m *Manager) transition(ctx context.Context, learnerID string, next *models.ActiveContent, clearRecords bool) (*models.LibraryItem, error) {
	current, err := m.content.Get(ctx, learnerID)
	if err != nil {
		return nil, fmt.Errorf("load active content: %w", err)
	}

	var writes []repository.Write
	var archived *models.LibraryItem

	replacing := current != nil && (next == nil || next.ID != current.ID)
	if replacing {
		records, err := m.records.List(ctx, learnerID)
		if err != nil {
			return nil, fmt.Errorf("load records: %w", err)
		}
		if matching := models.RecordsFor(records, current); len(matching) > 0 {
			archived = &models.LibraryItem{
				ID:      uuid.New().String(),
				Content: *current,
				SavedAt: m.now(),
				Records: matching,
			}
			w, err := m.library.PrepareAdd(ctx, learnerID, *archived)
			if err != nil {
				return nil, fmt.Errorf("prepare archive: %w", err)
			}
			// library first so a partial failure leaves a duplicate, never a loss
			writes = append(writes, w)
		}
	}

	if clearRecords {
		writes = append(writes, m.records.PrepareClear(learnerID))
	}

	w, err := m.content.PrepareSet(learnerID, next)
	if err != nil {
		return nil, err
	}
	writes = append(writes, w)

	if err := repository.Apply(ctx, m.store, writes...); err != nil {
		return nil, fmt.Errorf("commit session transition: %w", err)
	}

	if archived != nil {
		m.log.Info("session archived", "learner_id", learnerID, "library_item_id", archived.ID, "records", len(archived.Records))
		m.publish(ctx, learnerID, models.EventContentArchived, models.ContentArchivedEvent{
			LibraryItemID: archived.ID,
			Title:         archived.Content.Title,
			RecordCount:   len(archived.Records),
		})
	}
	return archived, nil
}

// AddRecord appends rec to the session and returns the competency over all session records.
func (m *Manager) AddRecord(ctx context.Context, learnerID string, rec models.LearningRecord) (scoring.Competency, error) {
	unlock := m.locks.Lock(learnerID)
	defer unlock()

	records, err := m.records.Append(ctx, learnerID, rec)
	if err != nil {
		return scoring.Competency{}, fmt.Errorf("append record: %w", err)
	}

	c := scoring.Aggregate(records)
	m.publish(ctx, learnerID, models.EventRecordAdded, models.RecordAddedEvent{
		RecordID: rec.ID,
		TabName:  rec.TabName,
		Overall:  c.Overall,
	})
	return c, nil
}

// ClearRecords wipes the session's record list without touching content or library.
func (m *Manager) ClearRecords(ctx context.Context, learnerID string) error {
	unlock := m.locks.Lock(learnerID)
	defer unlock()

	if err := m.records.Clear(ctx, learnerID); err != nil {
		return fmt.Errorf("clear records: %w", err)
	}
	m.publish(ctx, learnerID, models.EventSessionReset, models.SessionResetEvent{})
	return nil
}

// ActiveContent returns the current content or ErrNoActiveContent.
func (m *Manager) ActiveContent(ctx context.Context, learnerID string) (*models.ActiveContent, error) {
	c, err := m.content.Get(ctx, learnerID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ErrNoActiveContent
	}
	return c, nil
}

func (m *Manager) publish(ctx context.Context, learnerID, eventType string, payload interface{}) {
	if m.events == nil {
		return
	}
	msg := models.WSMessage{Type: eventType, Payload: payload}
	if err := m.events.Publish(ctx, learnerID, msg); err != nil {
		m.log.Warn("publish session event failed", "learner_id", learnerID, "type", eventType, "error", err)
	}
}

// Snapshot is the learner's current session as shown on the learning screen.
type Snapshot struct {
	ActiveContent  *models.ActiveContent   `json:"active_content"`
	Records        []models.LearningRecord `json:"records"`
	Competency     scoring.Competency      `json:"competency"`
	ModuleProgress map[models.Module]int   `json:"module_progress"`
}

// Snapshot loads the active content and records concurrently. Unreadable slots degrade
// to empty values; only cancellation of ctx is returned as an error.
func (m *Manager) Snapshot(ctx context.Context, learnerID string) (Snapshot, error) {
	var content *models.ActiveContent
	var records []models.LearningRecord

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c, err := m.content.Get(gctx, learnerID)
		if err != nil {
			if ctxErr := gctx.Err(); ctxErr != nil {
				return ctxErr
			}
			m.log.Warn("active content unreadable, treating as empty", "learner_id", learnerID, "error", err)
			return nil
		}
		content = c
		return nil
	})
	g.Go(func() error {
		recs, err := m.records.List(gctx, learnerID)
		if err != nil {
			if ctxErr := gctx.Err(); ctxErr != nil {
				return ctxErr
			}
			m.log.Warn("records unreadable, treating as empty", "learner_id", learnerID, "error", err)
			return nil
		}
		records = recs
		return nil
	})
	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}

	if records == nil {
		records = []models.LearningRecord{}
	}
	return Snapshot{
		ActiveContent:  content,
		Records:        records,
		Competency:     scoring.Aggregate(records),
		ModuleProgress: scoring.ModuleProgress(content, records),
	}, nil
}
