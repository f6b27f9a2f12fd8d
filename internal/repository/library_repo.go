package repository

import (
	"context"
	"fmt"

	"libu-backend/internal/models"
)

// LibraryRepo keeps archived sessions newest-first.
type LibraryRepo struct {
	store Store
}

func NewLibraryRepo(store Store) *LibraryRepo {
	return &LibraryRepo{store: store}
}

func (r *LibraryRepo) List(ctx context.Context, learnerID string) ([]models.LibraryItem, error) {
	var items []models.LibraryItem
	if _, err := loadJSON(ctx, r.store, KeysFor(learnerID).Library, &items); err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.LibraryItem{}
	}
	return items, nil
}

func (r *LibraryRepo) Get(ctx context.Context, learnerID, id string) (*models.LibraryItem, error) {
	items, err := r.List(ctx, learnerID)
	if err != nil {
		return nil, err
	}
	for i := range items {
		if items[i].ID == id {
			return &items[i], nil
		}
	}
	return nil, ErrNotFound
}

// PrepareAdd reads the current library and returns the write that prepends item to it,
// so the caller can commit it together with other keys.
func (r *LibraryRepo) PrepareAdd(ctx context.Context, learnerID string, item models.LibraryItem) (Write, error) {
	items, err := r.List(ctx, learnerID)
	if err != nil {
		return Write{}, err
	}
	next := make([]models.LibraryItem, 0, len(items)+1)
	next = append(next, item)
	next = append(next, items...)
	return encodeWrite(KeysFor(learnerID).Library, next)
}

func (r *LibraryRepo) Add(ctx context.Context, learnerID string, item models.LibraryItem) error {
	w, err := r.PrepareAdd(ctx, learnerID, item)
	if err != nil {
		return err
	}
	return Apply(ctx, r.store, w)
}

// Remove drops the item with the given id. Removing an absent id is a no-op and reports false.
func (r *LibraryRepo) Remove(ctx context.Context, learnerID, id string) (bool, error) {
	items, err := r.List(ctx, learnerID)
	if err != nil {
		return false, err
	}
	kept := items[:0]
	for _, it := range items {
		if it.ID != id {
			kept = append(kept, it)
		}
	}
	if len(kept) == len(items) {
		return false, nil
	}
	w, err := encodeWrite(KeysFor(learnerID).Library, kept)
	if err != nil {
		return false, err
	}
	if err := Apply(ctx, r.store, w); err != nil {
		return false, err
	}
	return true, nil
}

// RemoveMany removes each id independently. On failure the removals already
// persisted stay in place and the count of those is returned with the error.
func (r *LibraryRepo) RemoveMany(ctx context.Context, learnerID string, ids []string) (int, error) {
	removed := 0
	for _, id := range ids {
		ok, err := r.Remove(ctx, learnerID, id)
		if err != nil {
			return removed, fmt.Errorf("remove %s: %w", id, err)
		}
		if ok {
			removed++
		}
	}
	return removed, nil
}
