package ratelimit

import "time"

// Category identifies a class of external operations with its own limits.
type Category string

// Known operation categories.
const (
	// CategoryGeneration covers calls to the content generation service.
	CategoryGeneration Category = "generation"

	// CategoryMetadata covers calls to the external metadata API.
	CategoryMetadata Category = "metadata"

	// CategoryJobSubmit covers job submissions on the HTTP surface.
	CategoryJobSubmit Category = "job_submit"
)

// limitTable is the static (category, tier) -> limit configuration. The
// paid tier is strictly more permissive than free for every category.
var limitTable = map[Category]map[Tier]Config{
	CategoryGeneration: {
		TierFree: {Limit: 10, Window: time.Minute},
		TierPaid: {Limit: 60, Window: time.Minute},
	},
	CategoryMetadata: {
		TierFree: {Limit: 30, Window: time.Minute},
		TierPaid: {Limit: 120, Window: time.Minute},
	},
	CategoryJobSubmit: {
		TierFree: {Limit: 5, Window: time.Minute},
		TierPaid: {Limit: 30, Window: time.Minute},
	},
}

// Categories lists every configured operation category.
func Categories() []Category {
	return []Category{CategoryGeneration, CategoryMetadata, CategoryJobSubmit}
}

// LimitFor returns the limit configuration for the given operation category
// and tier. Unknown tiers fall back to the conservative free limits;
// unknown categories fall back to the generation limits, the tightest
// configured ones.
func LimitFor(category Category, tier Tier) Config {
	byTier, ok := limitTable[category]
	if !ok {
		byTier = limitTable[CategoryGeneration]
	}

	cfg, ok := byTier[tier]
	if !ok {
		cfg = byTier[TierFree]
	}
	return cfg
}
