// Package modules turns a finished module interaction into a LearningRecord.
package modules

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"libu-backend/internal/models"
)

// neutralScore stands in when the analysis omits a module's score field.
const neutralScore = 50

// ScoresFor extracts the module's score mapping from its raw analysis output.
// Missing or malformed fields fall back to the module's default rather than failing.
func ScoresFor(module models.Module, outputs json.RawMessage) models.Scores {
	var out map[string]any
	_ = json.Unmarshal(outputs, &out)

	switch module {
	case models.ModuleVocabulary:
		return models.Scores{"difficulty": numberOr(out, "difficulty", neutralScore)}
	case models.ModuleSummary:
		return models.Scores{"gapScore": 100 - numberOr(out, "gapScore", 0)}
	case models.ModuleInference:
		return models.Scores{"confidence": numberOr(out, "confidenceScore", neutralScore)}
	case models.ModuleCritical:
		return models.Scores{"diversity": numberOr(out, "diversityScore", neutralScore)}
	case models.ModuleIntegration:
		nodes, _ := out["nodes"].([]any)
		return models.Scores{"nodes": float64(len(nodes))}
	case models.ModuleVerification:
		// total only when reported; every numeric sub-score is spread over it
		s := models.Scores{}
		if v, ok := number(out["totalScore"]); ok {
			s["total"] = v
		}
		if sub, ok := out["scores"].(map[string]any); ok {
			for k, raw := range sub {
				if v, ok := number(raw); ok {
					s[k] = v
				}
			}
		}
		return s
	}
	return models.Scores{}
}

// NewRecord builds the record for one completed interaction against content.
// The duration is measured from startedAt when given, never negative.
func NewRecord(content *models.ActiveContent, module models.Module, inputs map[string]any,
	outputs json.RawMessage, startedAt *time.Time, now time.Time) (models.LearningRecord, error) {
	if content == nil {
		return models.LearningRecord{}, fmt.Errorf("no active content")
	}
	if !module.Valid() {
		return models.LearningRecord{}, fmt.Errorf("unknown module %q", module)
	}
	if inputs == nil {
		inputs = map[string]any{}
	}
	if len(outputs) == 0 {
		outputs = json.RawMessage(`{}`)
	}

	duration := 0
	if startedAt != nil {
		duration = int(math.Round(now.Sub(*startedAt).Seconds()))
		if duration < 0 {
			duration = 0
		}
	}

	return models.LearningRecord{
		ID:           uuid.New().String(),
		Timestamp:    now,
		TabName:      module,
		ContentID:    content.ID,
		ContentTitle: content.Title,
		ContentType:  content.Type,
		Inputs:       inputs,
		Outputs:      outputs,
		Scores:       ScoresFor(module, outputs),
		DurationSec:  duration,
	}, nil
}

// numberOr mirrors a falsy fallback: absent, non-numeric or zero values yield def.
func numberOr(out map[string]any, key string, def float64) float64 {
	if v, ok := number(out[key]); ok && v != 0 {
		return v
	}
	return def
}

func number(v any) (float64, bool) {
	f, ok := v.(float64)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
