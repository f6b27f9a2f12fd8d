package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
	"github.com/ledongthuc/pdf"
)

const maxPageBytes = 10 << 20

// ArticleService pulls readable text out of web pages and linked PDF documents.
type ArticleService struct {
	httpClient *http.Client
}

func NewArticleService(timeout time.Duration) *ArticleService {
	return newArticleService(timeout, false)
}

func newArticleService(timeout time.Duration, allowPrivate bool) *ArticleService {
	return &ArticleService{httpClient: newFetchClient(timeout, allowPrivate)}
}

// Fetch downloads pageURL and returns its title and normalised body text.
func (s *ArticleService) Fetch(ctx context.Context, pageURL *url.URL) (title, text string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL.String(), nil)
	if err != nil {
		return "", "", err
	}
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept-Language", "ko-KR,ko;q=0.9,en;q=0.8")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("failed to fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", "", fmt.Errorf("HTTP %d fetching page", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes+1))
	if err != nil {
		return "", "", fmt.Errorf("failed to read page: %w", err)
	}
	if len(body) > maxPageBytes {
		return "", "", fmt.Errorf("page exceeds %d MB limit", maxPageBytes>>20)
	}

	if isPDF(resp.Header.Get("Content-Type"), pageURL) {
		text, err := extractPDF(body)
		if err != nil {
			return "", "", err
		}
		return strings.TrimSuffix(path.Base(pageURL.Path), ".pdf"), text, nil
	}

	article, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err != nil {
		return "", "", fmt.Errorf("failed to parse article: %w", err)
	}
	return strings.TrimSpace(article.Title), normalizeExtractedText(article.TextContent), nil
}

func isPDF(contentType string, u *url.URL) bool {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil && mt == "application/pdf" {
		return true
	}
	return strings.EqualFold(path.Ext(u.Path), ".pdf")
}

func extractPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}

	var b strings.Builder
	totalPage := reader.NumPage()
	for pageIndex := 1; pageIndex <= totalPage; pageIndex++ {
		page := reader.Page(pageIndex)
		if page.V.IsNull() {
			continue
		}

		content, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		b.WriteString(content)
		b.WriteString("\n")
	}

	text := normalizeExtractedText(b.String())
	if text == "" {
		return "", fmt.Errorf("no extractable text found in pdf")
	}

	return text, nil
}

func normalizeExtractedText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	lines := strings.Split(s, "\n")
	buf := bytes.Buffer{}

	emptyCount := 0
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			emptyCount++
			if emptyCount > 1 {
				continue
			}
			buf.WriteString("\n")
			continue
		}
		emptyCount = 0
		buf.WriteString(trimmed)
		buf.WriteString("\n")
	}

	return strings.TrimSpace(buf.String())
}
