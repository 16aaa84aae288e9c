package dedup

import (
	"fmt"
	"sort"

	"github.com/storyloom/storyboard-api/internal/domain"
)

// Weights holds the per-field weights of the composite similarity score.
// The description carries the dominant weight; the remaining fields are
// secondary signals. Weights must sum to 1.
type Weights struct {
	Description float64
	Characters  float64
	Props       float64
	Setting     float64
}

// DefaultWeights returns the standard field weighting.
func DefaultWeights() Weights {
	return Weights{
		Description: 0.5,
		Characters:  0.15,
		Props:       0.15,
		Setting:     0.2,
	}
}

// DefaultThreshold is the similarity score at or above which two scenes are
// considered duplicates.
const DefaultThreshold = 0.75

// Engine computes scene similarity and filters near-duplicates.
type Engine struct {
	weights Weights
}

// New creates an Engine with the default field weights.
func New() *Engine {
	return NewWithWeights(DefaultWeights())
}

// NewWithWeights creates an Engine with custom field weights. Weights that
// do not sum to a positive value fall back to the defaults; otherwise they
// are normalized to sum to 1.
func NewWithWeights(w Weights) *Engine {
	total := w.Description + w.Characters + w.Props + w.Setting
	if total <= 0 {
		w = DefaultWeights()
	} else if total != 1.0 {
		w.Description /= total
		w.Characters /= total
		w.Props /= total
		w.Setting /= total
	}
	return &Engine{weights: w}
}

// Similarity scores how alike two scenes are on a [0,1] scale. The score is
// symmetric and reflexive: Similarity(a, b) == Similarity(b, a), and a
// scene compared against itself scores 1.
func (e *Engine) Similarity(a, b domain.Scene) float64 {
	return e.weights.Description*textSimilarity(a.Description, b.Description) +
		e.weights.Characters*listSimilarity(a.Characters, b.Characters) +
		e.weights.Props*listSimilarity(a.Props, b.Props) +
		e.weights.Setting*textSimilarity(a.Setting, b.Setting)
}

// Duplicate records one rejected candidate together with the score that
// disqualified it and a human-readable reason.
type Duplicate struct {
	Scene      domain.Scene `json:"scene"`
	Similarity float64      `json:"similarity"`
	Reason     string       `json:"reason"`
}

// Result is the outcome of a deduplication pass.
type Result struct {
	// Unique holds the candidates that were accepted, in input order.
	Unique []domain.Scene `json:"unique"`

	// Duplicates holds the rejected candidates with their scores.
	Duplicates []Duplicate `json:"duplicates"`
}

// Similarities returns the recorded scores of all rejected candidates.
func (r Result) Similarities() []float64 {
	out := make([]float64, len(r.Duplicates))
	for i, d := range r.Duplicates {
		out[i] = d.Similarity
	}
	return out
}

// Deduplicate filters newScenes against existing scenes and against earlier
// accepted candidates in the same batch. Candidates are processed in order:
// each one is scored against every scene in the working accepted set
// (seeded with existing); at or above threshold it is recorded as a
// duplicate and dropped, otherwise it is accepted and joins the working set
// so later near-copies of it are also caught. This single pass is what
// detects "duplicate of an earlier new scene" without rescanning the batch.
func (e *Engine) Deduplicate(existing, newScenes []domain.Scene, threshold float64) Result {
	accepted := make([]domain.Scene, len(existing))
	copy(accepted, existing)

	result := Result{
		Unique:     make([]domain.Scene, 0, len(newScenes)),
		Duplicates: make([]Duplicate, 0),
	}

	for _, candidate := range newScenes {
		best := 0.0
		for _, kept := range accepted {
			if score := e.Similarity(candidate, kept); score > best {
				best = score
			}
		}

		if best >= threshold && len(accepted) > 0 {
			result.Duplicates = append(result.Duplicates, Duplicate{
				Scene:      candidate,
				Similarity: best,
				Reason: fmt.Sprintf(
					"field-weighted similarity %.2f >= threshold %.2f", best, threshold),
			})
			continue
		}

		accepted = append(accepted, candidate)
		result.Unique = append(result.Unique, candidate)
	}

	return result
}

// Pair is one scored scene pair found by FindSimilarPairs.
type Pair struct {
	IndexA     int     `json:"index_a"`
	IndexB     int     `json:"index_b"`
	Similarity float64 `json:"similarity"`
}

// FindSimilarPairs scores every pair of scenes and returns the pairs whose
// similarity is at or above threshold, sorted by similarity descending.
func (e *Engine) FindSimilarPairs(scenes []domain.Scene, threshold float64) []Pair {
	pairs := make([]Pair, 0)
	for i := 0; i < len(scenes); i++ {
		for j := i + 1; j < len(scenes); j++ {
			score := e.Similarity(scenes[i], scenes[j])
			if score >= threshold {
				pairs = append(pairs, Pair{IndexA: i, IndexB: j, Similarity: score})
			}
		}
	}

	sort.SliceStable(pairs, func(a, b int) bool {
		return pairs[a].Similarity > pairs[b].Similarity
	})
	return pairs
}

// Stats summarizes a deduplication result.
type Stats struct {
	TotalProcessed    int     `json:"total_processed"`
	RemovalRate       float64 `json:"removal_rate"`
	AverageSimilarity float64 `json:"average_similarity"`
}

// Summarize computes statistics for a deduplication result. RemovalRate is
// guarded against division by zero and AverageSimilarity is 0 when no
// duplicates were recorded.
func Summarize(result Result) Stats {
	total := len(result.Unique) + len(result.Duplicates)
	stats := Stats{TotalProcessed: total}
	if total == 0 {
		return stats
	}

	stats.RemovalRate = float64(len(result.Duplicates)) / float64(total)

	if len(result.Duplicates) > 0 {
		sum := 0.0
		for _, d := range result.Duplicates {
			sum += d.Similarity
		}
		stats.AverageSimilarity = sum / float64(len(result.Duplicates))
	}
	return stats
}
