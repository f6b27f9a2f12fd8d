package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"libu-backend/internal/logger"
	"libu-backend/internal/models"
)

type pageFetcher interface {
	Fetch(ctx context.Context, pageURL *url.URL) (title, text string, err error)
}

type videoSource interface {
	GetTranscript(ctx context.Context, videoID string) (string, error)
	GetTitle(ctx context.Context, videoID string) string
}

// Extractor fills ActiveContent text for URL-driven content types.
type Extractor struct {
	videos   videoSource
	articles pageFetcher
	timeout  time.Duration
	log      *logger.Logger
}

func NewExtractor(timeout time.Duration, log *logger.Logger) *Extractor {
	if log == nil {
		log = logger.Nop()
	}
	return &Extractor{
		videos:   NewYouTubeService(timeout),
		articles: NewArticleService(timeout),
		timeout:  timeout,
		log:      log,
	}
}

// Extract never fails with a Go error; problems are reported in the result.
func (e *Extractor) Extract(ctx context.Context, rawURL string, contentType models.ContentType) models.ExtractResult {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return models.ExtractResult{Error: "URL must be an absolute http or https address"}
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	var title, text string
	if id, ok := VideoID(u.String()); ok && (contentType == models.ContentYouTube || contentType == models.ContentShortform) {
		text, err = e.videos.GetTranscript(ctx, id)
		if err == nil {
			title = e.videos.GetTitle(ctx, id)
		}
	} else {
		title, text, err = e.articles.Fetch(ctx, u)
	}
	if errors.Is(err, ErrBlockedAddress) {
		e.log.Warn("extraction blocked for non-public address", "url", u.String())
		return models.ExtractResult{Error: "URL must point to a public internet address"}
	}
	if err != nil {
		e.log.Warn("content extraction failed", "url", u.String(), "type", string(contentType), "error", err)
		return models.ExtractResult{Error: fmt.Sprintf("could not extract content: %v", err)}
	}

	text = normalizeExtractedText(text)
	if n := len([]rune(text)); n < models.MinContentTextLength {
		return models.ExtractResult{
			Title: title,
			Error: fmt.Sprintf("extracted text is too short (%d characters); paste the text manually", n),
		}
	}
	return models.ExtractResult{Success: true, Title: title, Text: text}
}
