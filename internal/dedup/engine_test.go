package dedup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storyloom/storyboard-api/internal/domain"
)

func scene(description string) domain.Scene {
	return domain.Scene{Description: description}
}

func fullScene(description, characters, props, setting string) domain.Scene {
	return domain.Scene{
		Description: description,
		Characters:  characters,
		Props:       props,
		Setting:     setting,
	}
}

func TestSimilarityReflexive(t *testing.T) {
	t.Parallel()
	e := New()

	scenes := []domain.Scene{
		scene("A chef preparing vegetables"),
		fullScene("Two friends arguing", "Mara, Dev", "umbrella", "rainy street"),
		{}, // fully empty scene
	}

	for _, s := range scenes {
		assert.InDelta(t, 1.0, e.Similarity(s, s), 1e-9)
	}
}

func TestSimilaritySymmetric(t *testing.T) {
	t.Parallel()
	e := New()

	a := fullScene("A chef preparing vegetables", "Chef", "knife, cutting board", "kitchen")
	b := fullScene("Chef plating the finished dish", "Chef, Waiter", "plate", "kitchen pass")

	assert.InDelta(t, e.Similarity(a, b), e.Similarity(b, a), 1e-9)
}

func TestSimilarityRange(t *testing.T) {
	t.Parallel()
	e := New()

	a := fullScene("A lighthouse keeper at dawn", "Keeper", "lantern", "rocky coast")
	b := fullScene("Children playing in a fountain", "Children", "ball", "city plaza")

	score := e.Similarity(a, b)
	assert.GreaterOrEqual(t, score, 0.0)
	assert.LessOrEqual(t, score, 1.0)
}

func TestSimilarityEmptyFieldsAreIdentical(t *testing.T) {
	t.Parallel()
	e := New()

	// Both sides empty or carrying a "no entities" sentinel count as equal.
	a := fullScene("A chef preparing vegetables", "none", "", "kitchen")
	b := fullScene("A chef preparing vegetables", "", "N/A", "kitchen")

	assert.InDelta(t, 1.0, e.Similarity(a, b), 1e-9)
}

func TestDeduplicateChefScenario(t *testing.T) {
	t.Parallel()
	e := New()

	existing := []domain.Scene{scene("A chef preparing vegetables")}
	newScenes := []domain.Scene{
		scene("A chef preparing vegetables"),
		scene("Chef plating the finished dish"),
	}

	result := e.Deduplicate(existing, newScenes, 0.75)

	require.Len(t, result.Unique, 1)
	assert.Equal(t, "Chef plating the finished dish", result.Unique[0].Description)
	require.Len(t, result.Duplicates, 1)
	assert.Equal(t, "A chef preparing vegetables", result.Duplicates[0].Scene.Description)
	assert.GreaterOrEqual(t, result.Duplicates[0].Similarity, 0.75)
	assert.Contains(t, result.Duplicates[0].Reason, "field-weighted similarity")
}

func TestDeduplicateThresholdSensitivity(t *testing.T) {
	t.Parallel()
	e := New()

	existing := []domain.Scene{scene("A chef preparing vegetables")}
	nearDuplicate := []domain.Scene{scene("A chef chopping vegetables")}

	// At the default threshold the reworded scene is flagged.
	strict := e.Deduplicate(existing, nearDuplicate, 0.75)
	assert.Empty(t, strict.Unique)
	require.Len(t, strict.Duplicates, 1)

	// Raising the threshold lets the same scene through.
	lenient := e.Deduplicate(existing, nearDuplicate, 0.9)
	assert.Len(t, lenient.Unique, 1)
	assert.Empty(t, lenient.Duplicates)
}

func TestDeduplicateCatchesDuplicateOfEarlierNewScene(t *testing.T) {
	t.Parallel()
	e := New()

	// No existing scenes: the second candidate duplicates the first one,
	// which was accepted earlier in the same pass.
	newScenes := []domain.Scene{
		scene("A storm rolling over the harbor"),
		scene("A storm rolling over the harbor"),
		scene("Fishermen securing their boats"),
	}

	result := e.Deduplicate(nil, newScenes, 0.75)

	require.Len(t, result.Unique, 2)
	assert.Equal(t, "A storm rolling over the harbor", result.Unique[0].Description)
	assert.Equal(t, "Fishermen securing their boats", result.Unique[1].Description)
	require.Len(t, result.Duplicates, 1)
}

func TestDeduplicatePreservesInputOrder(t *testing.T) {
	t.Parallel()
	e := New()

	newScenes := []domain.Scene{
		scene("Scene about a lighthouse keeper"),
		scene("Scene about a marching band"),
		scene("Scene about a chess tournament"),
	}

	result := e.Deduplicate(nil, newScenes, 0.99)

	require.Len(t, result.Unique, 3)
	for i, s := range newScenes {
		assert.Equal(t, s.Description, result.Unique[i].Description)
	}
}

func TestFindSimilarPairsSortedDescending(t *testing.T) {
	t.Parallel()
	e := New()

	scenes := []domain.Scene{
		scene("A chef preparing vegetables"),
		scene("A chef preparing vegetables slowly"),
		scene("A chef chopping vegetables"),
		scene("An astronaut repairing a satellite"),
	}

	pairs := e.FindSimilarPairs(scenes, 0.7)

	require.NotEmpty(t, pairs)
	for i := 1; i < len(pairs); i++ {
		assert.GreaterOrEqual(t, pairs[i-1].Similarity, pairs[i].Similarity,
			"pairs must be sorted by similarity descending")
	}
	for _, p := range pairs {
		assert.Less(t, p.IndexA, p.IndexB)
		assert.GreaterOrEqual(t, p.Similarity, 0.7)
		// The astronaut scene matches nothing at this threshold.
		assert.NotEqual(t, 3, p.IndexB)
	}
}

func TestSummarize(t *testing.T) {
	t.Parallel()
	e := New()

	existing := []domain.Scene{scene("A chef preparing vegetables")}
	newScenes := []domain.Scene{
		scene("A chef preparing vegetables"),
		scene("Chef plating the finished dish"),
	}

	result := e.Deduplicate(existing, newScenes, 0.75)
	stats := Summarize(result)

	assert.Equal(t, 2, stats.TotalProcessed)
	assert.InDelta(t, 0.5, stats.RemovalRate, 1e-9)
	assert.GreaterOrEqual(t, stats.AverageSimilarity, 0.75)

	// Empty result must not divide by zero.
	empty := Summarize(Result{})
	assert.Equal(t, 0, empty.TotalProcessed)
	assert.Zero(t, empty.RemovalRate)
	assert.Zero(t, empty.AverageSimilarity)
}

func TestNewWithWeightsNormalizes(t *testing.T) {
	t.Parallel()
	e := NewWithWeights(Weights{Description: 2, Characters: 1, Props: 1, Setting: 0})

	a := scene("identical description")
	b := scene("identical description")
	assert.InDelta(t, 1.0, e.Similarity(a, b), 1e-9)

	// Degenerate weights fall back to the defaults.
	fallback := NewWithWeights(Weights{})
	assert.Equal(t, DefaultWeights(), fallback.weights)
}
