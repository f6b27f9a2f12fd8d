package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"libu-backend/internal/models"
)

func TestNormalizeAnalysis_AddsSourcesAndStripsFences(t *testing.T) {
	got, err := normalizeAnalysis("```json\n{\"difficulty\": 40}\n```")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var obj map[string]any
	if err := json.Unmarshal(got, &obj); err != nil {
		t.Fatalf("result is not JSON: %v", err)
	}
	if obj["difficulty"] != float64(40) {
		t.Fatalf("expected difficulty 40, got %v", obj["difficulty"])
	}
	if src, ok := obj["sources"].([]any); !ok || len(src) != 0 {
		t.Fatalf("expected empty sources list, got %v", obj["sources"])
	}
}

func TestNormalizeAnalysis_KeepsExistingSources(t *testing.T) {
	got, err := normalizeAnalysis(`{"sources":[{"title":"KBS","snippet":"s","url":""}],"gapScore":20}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(string(got), `"title":"KBS"`) {
		t.Fatalf("sources were dropped: %s", got)
	}
}

func TestNormalizeAnalysis_RejectsNonObjects(t *testing.T) {
	for _, raw := range []string{"", "   ", "[1,2]", "null", "not json", `"text"`} {
		if _, err := normalizeAnalysis(raw); !errors.Is(err, ErrAIResponse) {
			t.Fatalf("input %q: expected ErrAIResponse, got %v", raw, err)
		}
	}
}

func TestBuildModulePrompt_RequiredInputs(t *testing.T) {
	req := AnalysisRequest{ContentTitle: "Title", ContentText: "text", Inputs: map[string]any{}}

	for module, field := range requiredInput {
		_, err := buildModulePrompt(module, req)
		var inputErr *InputError
		if !errors.As(err, &inputErr) || inputErr.Field != field {
			t.Fatalf("%s: expected InputError on %q, got %v", module, field, err)
		}
	}

	for _, module := range []models.Module{models.ModuleIntegration, models.ModuleVerification} {
		if _, err := buildModulePrompt(module, req); err != nil {
			t.Fatalf("%s: optional inputs should not fail: %v", module, err)
		}
	}

	if _, err := buildModulePrompt("debate", req); err == nil {
		t.Fatalf("expected error for unknown module")
	}
}

func TestBuildModulePrompt_IncludesContext(t *testing.T) {
	req := AnalysisRequest{
		ContentTitle: "Fine dust forecast",
		ContentText:  strings.Repeat("가", 800),
		ContentURL:   "https://news.example/1",
		Inputs:       map[string]any{"words": "  미세먼지  "},
	}

	prompt, err := buildModulePrompt(models.ModuleVocabulary, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(prompt, `"미세먼지"`) {
		t.Fatalf("prompt missing trimmed word: %s", prompt)
	}
	if strings.Count(prompt, "가") != 500 {
		t.Fatalf("vocabulary excerpt should be cut to 500 runes, got %d", strings.Count(prompt, "가"))
	}

	prompt, err = buildModulePrompt(models.ModuleVerification, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(prompt, "https://news.example/1") {
		t.Fatalf("verification prompt missing url")
	}
}

func TestAnalyze_UsesGenerator(t *testing.T) {
	s := newGeminiService(2, nil)
	var seen string
	s.generate = func(_ context.Context, prompt string) (string, error) {
		seen = prompt
		return `{"confidenceScore": 72}`, nil
	}

	out, err := s.Analyze(context.Background(), models.ModuleInference, AnalysisRequest{
		ContentTitle: "T", ContentText: "body",
		Inputs: map[string]any{"interpretation": "the author is biased"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(seen, "the author is biased") {
		t.Fatalf("prompt missing interpretation")
	}
	if !strings.Contains(string(out), `"sources":[]`) {
		t.Fatalf("expected normalised sources, got %s", out)
	}
}

func TestAnalyze_InputErrorSkipsModel(t *testing.T) {
	s := newGeminiService(1, nil)
	called := false
	s.generate = func(context.Context, string) (string, error) {
		called = true
		return "{}", nil
	}

	_, err := s.Analyze(context.Background(), models.ModuleCritical, AnalysisRequest{Inputs: map[string]any{"claim": "  "}})
	var inputErr *InputError
	if !errors.As(err, &inputErr) {
		t.Fatalf("expected InputError, got %v", err)
	}
	if called {
		t.Fatalf("model must not be called for invalid input")
	}
}

func TestAnalyze_Unavailable(t *testing.T) {
	var s *GeminiService
	if _, err := s.Analyze(context.Background(), models.ModuleVerification, AnalysisRequest{}); !errors.Is(err, ErrAIUnavailable) {
		t.Fatalf("expected ErrAIUnavailable, got %v", err)
	}
}

func TestAnalyze_BoundsConcurrency(t *testing.T) {
	s := newGeminiService(2, nil)
	var inFlight, peak int32
	s.generate = func(context.Context, string) (string, error) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return "{}", nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Analyze(context.Background(), models.ModuleVerification, AnalysisRequest{})
		}()
	}
	wg.Wait()

	if peak > 2 {
		t.Fatalf("expected at most 2 concurrent calls, saw %d", peak)
	}
}

func TestAnalyze_CancelledWhileWaitingForSlot(t *testing.T) {
	s := newGeminiService(1, nil)
	s.generate = func(context.Context, string) (string, error) { return "{}", nil }
	<-s.rateChan // occupy the only slot

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Analyze(ctx, models.ModuleVerification, AnalysisRequest{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
