package dedup

import (
	"strings"
)

// emptyEquivalents are sentinel values the generation service emits for
// "no entities here". Two fields that both carry one of these (or are both
// blank) are treated as identical.
var emptyEquivalents = map[string]bool{
	"":              true,
	"none":          true,
	"n/a":           true,
	"no characters": true,
	"no props":      true,
}

// textSimilarity compares two free-text fields on a [0,1] scale,
// case-insensitively. It blends token-set overlap (Jaccard) with a
// character-bigram closeness measure so that reworded but near-identical
// sentences still score high.
func textSimilarity(a, b string) float64 {
	a = normalize(a)
	b = normalize(b)

	if emptyEquivalents[a] && emptyEquivalents[b] {
		return 1.0
	}
	if emptyEquivalents[a] || emptyEquivalents[b] {
		return 0.0
	}
	if a == b {
		return 1.0
	}

	tokens := jaccard(fields(a), fields(b))
	chars := bigramSimilarity(a, b)
	return 0.7*tokens + 0.3*chars
}

// listSimilarity compares two comma-delimited list fields on a [0,1] scale.
// Each side is split into a set of trimmed, lowercased tokens and scored by
// set overlap; fully disjoint sets score 0.
func listSimilarity(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)

	if len(setA) == 0 && len(setB) == 0 {
		return 1.0
	}
	return jaccard(setA, setB)
}

// normalize lowercases and collapses surrounding whitespace.
func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// fields splits normalized text into a set of word tokens.
func fields(s string) map[string]bool {
	set := make(map[string]bool)
	for _, token := range strings.Fields(s) {
		token = strings.Trim(token, ".,;:!?\"'()")
		if token != "" {
			set[token] = true
		}
	}
	return set
}

// tokenSet splits a comma-delimited list into a set of normalized tokens.
// Sentinel "no entities" values produce an empty set.
func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, part := range strings.Split(s, ",") {
		token := normalize(part)
		if token == "" || emptyEquivalents[token] {
			continue
		}
		set[token] = true
	}
	return set
}

// jaccard computes |a ∩ b| / |a ∪ b| for two token sets.
func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}

	intersection := 0
	for token := range a {
		if b[token] {
			intersection++
		}
	}

	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0.0
	}
	return float64(intersection) / float64(union)
}

// bigramSimilarity computes the Dice coefficient over character bigrams of
// the two strings.
func bigramSimilarity(a, b string) float64 {
	bigramsA := bigrams(a)
	bigramsB := bigrams(b)

	if len(bigramsA) == 0 && len(bigramsB) == 0 {
		return 1.0
	}
	if len(bigramsA) == 0 || len(bigramsB) == 0 {
		return 0.0
	}

	overlap := 0
	for gram, count := range bigramsA {
		if other, ok := bigramsB[gram]; ok {
			if other < count {
				overlap += other
			} else {
				overlap += count
			}
		}
	}

	totalA := 0
	for _, count := range bigramsA {
		totalA += count
	}
	totalB := 0
	for _, count := range bigramsB {
		totalB += count
	}

	return 2.0 * float64(overlap) / float64(totalA+totalB)
}

// bigrams counts the character bigrams of a string.
func bigrams(s string) map[string]int {
	runes := []rune(s)
	grams := make(map[string]int)
	for i := 0; i+1 < len(runes); i++ {
		grams[string(runes[i:i+2])]++
	}
	return grams
}
