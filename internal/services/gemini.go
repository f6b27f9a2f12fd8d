package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"libu-backend/internal/logger"
	"libu-backend/internal/models"
)

var (
	// ErrAIUnavailable means no model is configured.
	ErrAIUnavailable = errors.New("ai analysis unavailable")
	// ErrAIResponse means the model answered with something that is not a JSON object.
	ErrAIResponse = errors.New("invalid ai response")
)

// InputError reports a missing or malformed module input.
type InputError struct {
	Field   string
	Message string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// AnalysisRequest carries the learner's module inputs and the active content as context.
type AnalysisRequest struct {
	Inputs       map[string]any
	ContentTitle string
	ContentText  string
	ContentURL   string
}

type GeminiService struct {
	client   *genai.Client
	generate func(ctx context.Context, prompt string) (string, error)
	rateChan chan struct{} // Token bucket
	log      *logger.Logger
}

func NewGeminiService(apiKey, modelName string, concurrentReqs int, log *logger.Logger) (*GeminiService, error) {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(0.3)
	model.SetTopP(0.95)
	model.SetMaxOutputTokens(2048)
	model.ResponseMIMEType = "application/json"
	model.SystemInstruction = genai.NewUserContent(genai.Text(systemPrompt))

	s := newGeminiService(concurrentReqs, log)
	s.client = client
	s.generate = func(ctx context.Context, prompt string) (string, error) {
		resp, err := model.GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			return "", fmt.Errorf("Gemini API error: %w", err)
		}
		for i, cand := range resp.Candidates {
			if cand.FinishReason != genai.FinishReasonStop {
				s.log.Warn("gemini stopped early", "candidate", i, "finish_reason", cand.FinishReason)
			}
		}
		return extractText(resp), nil
	}
	return s, nil
}

func newGeminiService(concurrentReqs int, log *logger.Logger) *GeminiService {
	if concurrentReqs < 1 {
		concurrentReqs = 1
	}
	if log == nil {
		log = logger.Nop()
	}
	rateChan := make(chan struct{}, concurrentReqs)
	for i := 0; i < concurrentReqs; i++ {
		rateChan <- struct{}{}
	}
	return &GeminiService{rateChan: rateChan, log: log}
}

func (s *GeminiService) Close() {
	if s != nil && s.client != nil {
		s.client.Close()
	}
}

// acquireRate blocks until a rate slot is available
func (s *GeminiService) acquireRate(ctx context.Context) error {
	select {
	case <-s.rateChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(2 * time.Minute):
		return fmt.Errorf("timeout waiting for Gemini rate slot")
	}
}

func (s *GeminiService) releaseRate() {
	s.rateChan <- struct{}{}
}

// Analyze runs one module's analysis and returns its JSON object. The result always
// carries a sources list.
func (s *GeminiService) Analyze(ctx context.Context, module models.Module, req AnalysisRequest) (json.RawMessage, error) {
	if s == nil || s.generate == nil {
		return nil, ErrAIUnavailable
	}

	prompt, err := buildModulePrompt(module, req)
	if err != nil {
		return nil, err
	}

	if err := s.acquireRate(ctx); err != nil {
		return nil, err
	}
	defer s.releaseRate()

	started := time.Now()
	rawText, err := s.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	s.log.Debug("gemini analysis finished", "module", string(module), "elapsed_ms", time.Since(started).Milliseconds())

	return normalizeAnalysis(rawText)
}

// normalizeAnalysis strips code fences, requires a JSON object and ensures a sources list.
func normalizeAnalysis(rawText string) (json.RawMessage, error) {
	text := strings.TrimSpace(rawText)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: empty response", ErrAIResponse)
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(text), &obj); err != nil || obj == nil {
		return nil, fmt.Errorf("%w: not a JSON object", ErrAIResponse)
	}

	if _, ok := obj["sources"].([]any); !ok {
		obj["sources"] = []any{}
	}

	out, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAIResponse, err)
	}
	return out, nil
}

func extractText(resp *genai.GenerateContentResponse) string {
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					text.WriteString(string(t))
				}
			}
		}
	}
	return text.String()
}
