package ratelimit

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync"
	"time"
)

// Tier classifies an external API credential for rate-limiting purposes.
type Tier string

// Known tiers. TierFree is the conservative default used when no
// classification is available.
const (
	TierFree Tier = "free"
	TierPaid Tier = "paid"
)

// DefaultTierRecordTTL is how long an idle tier classification is kept
// before the sweep discards it.
const DefaultTierRecordTTL = 24 * time.Hour

// tierRecord is one cached classification. Keys are stored hashed so the
// raw credential never sits in memory longer than the classify call.
type tierRecord struct {
	tier        Tier
	detectedAt  time.Time
	lastChecked time.Time
}

// TierCache caches the free/paid classification of external API keys.
type TierCache struct {
	mu      sync.Mutex
	records map[string]tierRecord
	ttl     time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

// NewTierCache creates a TierCache. If ttl is zero or negative,
// DefaultTierRecordTTL is used. If now is nil, time.Now is used.
// If logger is nil, the default logger is used.
func NewTierCache(ttl time.Duration, now func() time.Time, logger *slog.Logger) *TierCache {
	if ttl <= 0 {
		ttl = DefaultTierRecordTTL
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &TierCache{
		records: make(map[string]tierRecord),
		ttl:     ttl,
		now:     now,
		logger:  logger.With(slog.String("component", "tier_cache")),
	}
}

// Classify resolves the tier for the given API key. An explicit non-empty
// tier from the caller is trusted and cached, overwriting any prior
// classification. Absent that, a cached classification from an earlier call
// is reused. Absent both, the conservative free tier is assumed and cached.
func (c *TierCache) Classify(apiKey string, explicit Tier) Tier {
	keyHash := hashKey(apiKey)
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if explicit == TierFree || explicit == TierPaid {
		record, exists := c.records[keyHash]
		if !exists || record.tier != explicit {
			record = tierRecord{tier: explicit, detectedAt: now}
		}
		record.lastChecked = now
		c.records[keyHash] = record
		return explicit
	}

	if record, ok := c.records[keyHash]; ok {
		record.lastChecked = now
		c.records[keyHash] = record
		return record.tier
	}

	c.records[keyHash] = tierRecord{
		tier:        TierFree,
		detectedAt:  now,
		lastChecked: now,
	}
	c.logger.Debug("no tier classification available, defaulting to free",
		"key_hash", keyHash[:8])
	return TierFree
}

// Sweep discards classifications that have been idle longer than the TTL.
// Returns the number of records removed.
func (c *TierCache) Sweep() int {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for keyHash, record := range c.records {
		if now.Sub(record.lastChecked) > c.ttl {
			delete(c.records, keyHash)
			removed++
		}
	}
	return removed
}

// Len returns the number of cached classifications. Intended for tests.
func (c *TierCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.records)
}

// hashKey returns the hex-encoded SHA-256 of an API key.
func hashKey(apiKey string) string {
	sum := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(sum[:])
}
