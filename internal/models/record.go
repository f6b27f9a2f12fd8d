package models

import (
	"encoding/json"
	"math"
	"time"
)

// Module identifies one of the six pedagogical activities.
type Module string

const (
	ModuleVocabulary   Module = "vocabulary"
	ModuleSummary      Module = "summary"
	ModuleInference    Module = "inference"
	ModuleCritical     Module = "critical"
	ModuleIntegration  Module = "integration"
	ModuleVerification Module = "verification"
)

var modules = [6]Module{
	ModuleVocabulary, ModuleSummary, ModuleInference,
	ModuleCritical, ModuleIntegration, ModuleVerification,
}

// Modules returns the fixed dimension order used by every competency vector.
func Modules() [6]Module {
	return modules
}

func (m Module) Valid() bool {
	for _, mod := range modules {
		if mod == m {
			return true
		}
	}
	return false
}

// Scores maps a module-defined score name to a value in [0,100].
// Decoding is permissive: entries that are not finite numbers are dropped.
type Scores map[string]float64

func (s *Scores) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		// null, arrays and scalars all degrade to an empty mapping
		*s = Scores{}
		return nil
	}

	out := make(Scores, len(raw))
	for k, v := range raw {
		var f float64
		if err := json.Unmarshal(v, &f); err != nil {
			continue
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			continue
		}
		out[k] = f
	}
	*s = out
	return nil
}

// LearningRecord is one completed interaction with one module against one content.
type LearningRecord struct {
	ID           string          `json:"id"`
	Timestamp    time.Time       `json:"timestamp"`
	TabName      Module          `json:"tabName"`
	ContentID    string          `json:"contentId,omitempty"`
	ContentTitle string          `json:"contentTitle"`
	ContentType  ContentType     `json:"contentType"`
	Inputs       map[string]any  `json:"inputs"`
	Outputs      json.RawMessage `json:"outputs"`
	Scores       Scores          `json:"scores"`
	DurationSec  int             `json:"durationSec"`
}

// BelongsTo reports whether the record was produced against the given content.
// Records stamped with a content id match on id; older records fall back to title equality.
func (r LearningRecord) BelongsTo(c *ActiveContent) bool {
	if c == nil {
		return false
	}
	if r.ContentID != "" {
		return r.ContentID == c.ID
	}
	return r.ContentTitle == c.Title
}

// RecordsFor filters records down to those belonging to c, preserving order.
func RecordsFor(records []LearningRecord, c *ActiveContent) []LearningRecord {
	var out []LearningRecord
	for _, r := range records {
		if r.BelongsTo(c) {
			out = append(out, r)
		}
	}
	return out
}

type AnalyzeRequest struct {
	Inputs    map[string]any `json:"inputs"`
	StartedAt *time.Time     `json:"started_at"`
}
