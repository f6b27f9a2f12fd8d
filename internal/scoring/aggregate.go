// Package scoring reduces learning records into the six-dimension competency vector.
// Everything here is pure and safe for concurrent use.
package scoring

import (
	"math"

	"libu-backend/internal/models"
)

// Dimension is one slot of the competency vector.
type Dimension struct {
	Module models.Module `json:"module"`
	Score  int           `json:"score"`
}

// Competency is the six-dimension vector in fixed module order plus the overall score.
type Competency struct {
	Dimensions [6]Dimension `json:"dimensions"`
	Overall    int          `json:"overall"`
}

// Score returns the dimension score for m, or 0 for an unknown module.
func (c Competency) Score(m models.Module) int {
	for _, d := range c.Dimensions {
		if d.Module == m {
			return d.Score
		}
	}
	return 0
}

// RepresentativeScore is the mean of every value in the record's scores, clamped to [0,100].
// An empty mapping yields 0.
func RepresentativeScore(s models.Scores) float64 {
	var sum float64
	n := 0
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		sum += v
		n++
	}
	return clamp(sum / float64(max(n, 1)))
}

// Aggregate groups records by module and averages them into a Competency.
// Unknown tabName values are ignored. A dimension with no records scores 0 and is left
// out of the overall mean.
func Aggregate(records []models.LearningRecord) Competency {
	var sums [6]float64
	var counts [6]int

	for _, r := range records {
		i := moduleIndex(r.TabName)
		if i < 0 {
			continue
		}
		sums[i] += RepresentativeScore(r.Scores)
		counts[i]++
	}

	var c Competency
	var total, attempted int
	for i, m := range models.Modules() {
		score := 0
		if counts[i] > 0 {
			score = int(math.Round(sums[i] / float64(counts[i])))
		}
		c.Dimensions[i] = Dimension{Module: m, Score: score}
		if score > 0 {
			total += score
			attempted++
		}
	}
	if attempted > 0 {
		c.Overall = int(math.Round(float64(total) / float64(attempted)))
	}
	return c
}

// ModuleProgress marks each module 100 when at least one record of that module belongs
// to content, else 0. A nil content yields all zeros.
func ModuleProgress(content *models.ActiveContent, records []models.LearningRecord) map[models.Module]int {
	out := make(map[models.Module]int, 6)
	for _, m := range models.Modules() {
		out[m] = 0
	}
	if content == nil {
		return out
	}
	for _, r := range records {
		if r.TabName.Valid() && r.BelongsTo(content) {
			out[r.TabName] = 100
		}
	}
	return out
}

// DistinctModules counts the recognized modules with at least one record.
func DistinctModules(records []models.LearningRecord) int {
	var seen [6]bool
	n := 0
	for _, r := range records {
		if i := moduleIndex(r.TabName); i >= 0 && !seen[i] {
			seen[i] = true
			n++
		}
	}
	return n
}

func moduleIndex(m models.Module) int {
	for i, mod := range models.Modules() {
		if mod == m {
			return i
		}
	}
	return -1
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
