package repository

import (
	"context"

	"libu-backend/internal/models"
)

// ContentRepo owns the active-content slot of each learner.
type ContentRepo struct {
	store Store
}

func NewContentRepo(store Store) *ContentRepo {
	return &ContentRepo{store: store}
}

// Get returns the active content, or nil when the slot is empty.
func (r *ContentRepo) Get(ctx context.Context, learnerID string) (*models.ActiveContent, error) {
	var c models.ActiveContent
	found, err := loadJSON(ctx, r.store, KeysFor(learnerID).ActiveContent, &c)
	if err != nil || !found {
		return nil, err
	}
	return &c, nil
}

// PrepareSet builds the write that stores c, or clears the slot when c is nil.
func (r *ContentRepo) PrepareSet(learnerID string, c *models.ActiveContent) (Write, error) {
	key := KeysFor(learnerID).ActiveContent
	if c == nil {
		return Write{Key: key}, nil
	}
	return encodeWrite(key, c)
}

func (r *ContentRepo) Set(ctx context.Context, learnerID string, c *models.ActiveContent) error {
	w, err := r.PrepareSet(learnerID, c)
	if err != nil {
		return err
	}
	return Apply(ctx, r.store, w)
}
