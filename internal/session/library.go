package session

import (
	"context"
	"fmt"

	"libu-backend/internal/models"
	"libu-backend/internal/scoring"
)

// Library lists archived sessions newest-first with their overall score.
// An unreadable library is shown as empty.
func (m *Manager) Library(ctx context.Context, learnerID string) []models.LibrarySummary {
	items, err := m.library.List(ctx, learnerID)
	if err != nil {
		m.log.Warn("library unreadable, listing empty", "learner_id", learnerID, "error", err)
		return []models.LibrarySummary{}
	}

	out := make([]models.LibrarySummary, 0, len(items))
	for _, it := range items {
		out = append(out, models.LibrarySummary{
			ID:          it.ID,
			Title:       it.Content.Title,
			Type:        it.Content.Type,
			SavedAt:     it.SavedAt,
			RecordCount: len(it.Records),
			Overall:     scoring.Aggregate(it.Records).Overall,
		})
	}
	return out
}

// LibraryItem returns one archived session and its re-derived competency.
func (m *Manager) LibraryItem(ctx context.Context, learnerID, id string) (*models.LibraryItem, scoring.Competency, error) {
	item, err := m.library.Get(ctx, learnerID, id)
	if err != nil {
		return nil, scoring.Competency{}, err
	}
	return item, scoring.Aggregate(item.Records), nil
}

func (m *Manager) RemoveLibraryItem(ctx context.Context, learnerID, id string) (bool, error) {
	unlock := m.locks.Lock(learnerID)
	defer unlock()

	removed, err := m.library.Remove(ctx, learnerID, id)
	if err != nil {
		return false, fmt.Errorf("remove library item: %w", err)
	}
	return removed, nil
}

// RemoveLibraryItems removes each id independently and reports how many were removed.
func (m *Manager) RemoveLibraryItems(ctx context.Context, learnerID string, ids []string) (int, error) {
	unlock := m.locks.Lock(learnerID)
	defer unlock()

	return m.library.RemoveMany(ctx, learnerID, ids)
}
