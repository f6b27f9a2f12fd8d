package session

import (
	"context"

	"golang.org/x/sync/errgroup"

	"libu-backend/internal/models"
	"libu-backend/internal/scoring"
)

type Progress struct {
	TotalRecords    int `json:"total_records"`
	DistinctModules int `json:"distinct_modules"`
	LibrarySize     int `json:"library_size"`
}

type Report struct {
	Competency scoring.Competency `json:"competency"`
	Progress   Progress           `json:"progress"`
}

// Report aggregates every in-session record, regardless of content.
func (m *Manager) Report(ctx context.Context, learnerID string) (Report, error) {
	var records []models.LearningRecord
	var library []models.LibraryItem

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		recs, err := m.records.List(gctx, learnerID)
		if err != nil {
			if ctxErr := gctx.Err(); ctxErr != nil {
				return ctxErr
			}
			m.log.Warn("records unreadable, reporting empty", "learner_id", learnerID, "error", err)
			return nil
		}
		records = recs
		return nil
	})
	g.Go(func() error {
		items, err := m.library.List(gctx, learnerID)
		if err != nil {
			if ctxErr := gctx.Err(); ctxErr != nil {
				return ctxErr
			}
			m.log.Warn("library unreadable, reporting empty", "learner_id", learnerID, "error", err)
			return nil
		}
		library = items
		return nil
	})
	if err := g.Wait(); err != nil {
		return Report{}, err
	}

	return Report{
		Competency: scoring.Aggregate(records),
		Progress: Progress{
			TotalRecords:    len(records),
			DistinctModules: scoring.DistinctModules(records),
			LibrarySize:     len(library),
		},
	}, nil
}
