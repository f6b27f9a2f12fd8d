package models

// WebSocket message types
const (
	EventRecordAdded     = "record_added"
	EventContentArchived = "content_archived"
	EventSessionReset    = "session_reset"
)

type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type RecordAddedEvent struct {
	RecordID string `json:"record_id"`
	TabName  Module `json:"tab_name"`
	Overall  int    `json:"overall"`
}

type ContentArchivedEvent struct {
	LibraryItemID string `json:"library_item_id"`
	Title         string `json:"title"`
	RecordCount   int    `json:"record_count"`
}

type SessionResetEvent struct {
	ArchivedID string `json:"archived_id,omitempty"`
}

// API Error response
type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}
