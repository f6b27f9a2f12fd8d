package repository

import (
	"context"

	"libu-backend/internal/models"
)

// RecordRepo owns the in-session record list of each learner.
type RecordRepo struct {
	store Store
}

func NewRecordRepo(store Store) *RecordRepo {
	return &RecordRepo{store: store}
}

// List returns records in append order. An absent key is an empty list.
func (r *RecordRepo) List(ctx context.Context, learnerID string) ([]models.LearningRecord, error) {
	var records []models.LearningRecord
	if _, err := loadJSON(ctx, r.store, KeysFor(learnerID).Records, &records); err != nil {
		return nil, err
	}
	if records == nil {
		records = []models.LearningRecord{}
	}
	return records, nil
}

// Append adds rec to the end of the list and returns the stored list.
// A failed read aborts without writing.
func (r *RecordRepo) Append(ctx context.Context, learnerID string, rec models.LearningRecord) ([]models.LearningRecord, error) {
	records, err := r.List(ctx, learnerID)
	if err != nil {
		return nil, err
	}
	records = append(records, rec)
	w, err := encodeWrite(KeysFor(learnerID).Records, records)
	if err != nil {
		return nil, err
	}
	if err := Apply(ctx, r.store, w); err != nil {
		return nil, err
	}
	return records, nil
}

func (r *RecordRepo) PrepareClear(learnerID string) Write {
	return Write{Key: KeysFor(learnerID).Records}
}

func (r *RecordRepo) Clear(ctx context.Context, learnerID string) error {
	return Apply(ctx, r.store, r.PrepareClear(learnerID))
}
