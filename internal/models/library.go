package models

import "time"

// LibraryItem is an immutable archive of one finished content session.
type LibraryItem struct {
	ID      string           `json:"id"`
	Content ActiveContent    `json:"content"`
	SavedAt time.Time        `json:"savedAt"`
	Records []LearningRecord `json:"records"`
}

// LibrarySummary is the list view of an archived session.
type LibrarySummary struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Type        ContentType `json:"type"`
	SavedAt     time.Time   `json:"savedAt"`
	RecordCount int         `json:"record_count"`
	Overall     int         `json:"overall"`
}

type BulkDeleteRequest struct {
	IDs []string `json:"ids"`
}
