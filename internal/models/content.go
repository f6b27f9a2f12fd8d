package models

import (
	"strings"
	"time"
)

type ContentType string

const (
	ContentNews      ContentType = "news"
	ContentYouTube   ContentType = "youtube"
	ContentShortform ContentType = "shortform"
	ContentSNS       ContentType = "sns"
	ContentCommunity ContentType = "community"
	ContentAd        ContentType = "ad"
)

var contentTypes = []ContentType{
	ContentNews, ContentYouTube, ContentShortform, ContentSNS, ContentCommunity, ContentAd,
}

// ContentTypes lists every accepted content type in display order.
func ContentTypes() []ContentType {
	out := make([]ContentType, len(contentTypes))
	copy(out, contentTypes)
	return out
}

func (t ContentType) Valid() bool {
	for _, ct := range contentTypes {
		if ct == t {
			return true
		}
	}
	return false
}

// MinContentTextLength is the shortest source text a session may be started with.
const MinContentTextLength = 50

// ActiveContent is the single learning subject a learner is working on.
type ActiveContent struct {
	ID        string      `json:"id"`
	Title     string      `json:"title"`
	Type      ContentType `json:"type"`
	Text      string      `json:"text"`
	URL       string      `json:"url,omitempty"`
	StartTime time.Time   `json:"startTime"`
}

type SaveContentRequest struct {
	Title string      `json:"title"`
	Type  ContentType `json:"type"`
	Text  string      `json:"text"`
	URL   string      `json:"url"`
}

// Normalize trims user input in place.
func (r *SaveContentRequest) Normalize() {
	r.Title = strings.TrimSpace(r.Title)
	r.Text = strings.TrimSpace(r.Text)
	r.URL = strings.TrimSpace(r.URL)
}

// Validate returns per-field messages; an empty map means the request is acceptable.
func (r *SaveContentRequest) Validate() map[string]string {
	fields := make(map[string]string)
	if r.Title == "" {
		fields["title"] = "Title is required"
	}
	if !r.Type.Valid() {
		fields["type"] = "Type must be one of news, youtube, shortform, sns, community, ad"
	}
	if len([]rune(r.Text)) < MinContentTextLength {
		fields["text"] = "Text must be at least 50 characters"
	}
	return fields
}

type ExtractRequest struct {
	URL  string      `json:"url"`
	Type ContentType `json:"type"`
}

// ExtractResult mirrors the extraction boundary contract: failures are reported in-band.
type ExtractResult struct {
	Success bool   `json:"success"`
	Title   string `json:"title,omitempty"`
	Text    string `json:"text,omitempty"`
	Error   string `json:"error,omitempty"`
}
