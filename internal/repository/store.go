package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrNotFound marks an absent key or entity.
	ErrNotFound = errors.New("not found")
	// ErrCorrupt marks a stored payload that no longer decodes.
	ErrCorrupt = errors.New("corrupt payload")
)

// Store is the key/value capability the session layer persists through.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Write is one pending key mutation. A nil Value deletes the key.
type Write struct {
	Key   string
	Value []byte
}

// Committer is implemented by stores that can apply several writes atomically.
type Committer interface {
	Commit(ctx context.Context, writes ...Write) error
}

// Apply commits writes atomically when the store supports it. Otherwise the writes
// are applied one by one in the given order, stopping at the first failure.
func Apply(ctx context.Context, s Store, writes ...Write) error {
	if len(writes) == 0 {
		return nil
	}
	if c, ok := s.(Committer); ok {
		return c.Commit(ctx, writes...)
	}
	for _, w := range writes {
		var err error
		if w.Value == nil {
			err = s.Delete(ctx, w.Key)
		} else {
			err = s.Set(ctx, w.Key, w.Value)
		}
		if err != nil {
			return fmt.Errorf("write %s: %w", w.Key, err)
		}
	}
	return nil
}

// Keys names the three logical slots of one learner.
type Keys struct {
	ActiveContent string
	Records       string
	Library       string
}

func KeysFor(learnerID string) Keys {
	prefix := "libu:" + learnerID + ":"
	return Keys{
		ActiveContent: prefix + "active_content",
		Records:       prefix + "records",
		Library:       prefix + "library",
	}
}

func loadJSON(ctx context.Context, s Store, key string, dst any) (bool, error) {
	raw, err := s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("%w: %s: %v", ErrCorrupt, key, err)
	}
	return true, nil
}

func encodeWrite(key string, v any) (Write, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return Write{}, fmt.Errorf("encode %s: %w", key, err)
	}
	return Write{Key: key, Value: raw}, nil
}
