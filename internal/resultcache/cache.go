package resultcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/storyloom/storyboard-api/internal/store"
)

// Defaults applied by New when a config field is unset.
const (
	DefaultMaxEntries = 20
	DefaultTTL        = 24 * time.Hour
)

// Key layout under the key-value collaborator.
const (
	keyIndex    = "results:index"
	keyEntryFmt = "results:entry:%s"
)

// Entry is one finished-job snapshot.
type Entry struct {
	// ID identifies the entry, normally the job ID.
	ID string `json:"id"`

	// ParentID links the entry to its source, e.g. the source video ID.
	ParentID string `json:"parent_id,omitempty"`

	// Payload is the final artifact of the job.
	Payload json.RawMessage `json:"payload"`

	// Timestamp orders entries and drives TTL expiry.
	Timestamp time.Time `json:"timestamp"`
}

// valid reports whether a decoded entry carries the fields required to be
// listed. Schema-incomplete records are treated as absent.
func (e Entry) valid() bool {
	return e.ID != "" && !e.Timestamp.IsZero()
}

// Cache is the bounded, TTL-evicting result store.
type Cache struct {
	kv         store.KV
	maxEntries int
	ttl        time.Duration
	now        func() time.Time
	logger     *slog.Logger

	// mu serializes index read-modify-write cycles.
	mu sync.Mutex
}

// New creates a Cache over the given key-value collaborator. Zero or
// negative maxEntries and ttl fall back to the package defaults. If now is
// nil, time.Now is used. If logger is nil, the default logger is used.
func New(kv store.KV, maxEntries int, ttl time.Duration, now func() time.Time, logger *slog.Logger) *Cache {
	if kv == nil {
		panic("kv cannot be nil")
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Cache{
		kv:         kv,
		maxEntries: maxEntries,
		ttl:        ttl,
		now:        now,
		logger:     logger.With(slog.String("component", "result_cache")),
	}
}

// Put inserts or replaces an entry, then runs an eviction pass: expired
// entries are removed, and if the live count still exceeds the maximum
// capacity the oldest entries by timestamp are evicted until the count is
// back at the capacity.
func (c *Cache) Put(ctx context.Context, entry Entry) error {
	if entry.ID == "" {
		return fmt.Errorf("%w: entry ID cannot be empty", store.ErrInvalidEntity)
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = c.now()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.kv.Set(ctx, fmt.Sprintf(keyEntryFmt, entry.ID), data); err != nil {
		return err
	}

	ids, err := c.readIndex(ctx)
	if err != nil {
		return err
	}

	present := false
	for _, id := range ids {
		if id == entry.ID {
			present = true
			break
		}
	}
	if !present {
		ids = append(ids, entry.ID)
	}

	live, err := c.readLive(ctx, ids)
	if err != nil {
		return err
	}

	// Oldest first for eviction.
	sort.Slice(live, func(i, j int) bool {
		return live[i].Timestamp.Before(live[j].Timestamp)
	})

	for len(live) > c.maxEntries {
		evicted := live[0]
		live = live[1:]
		if err := c.kv.Delete(ctx, fmt.Sprintf(keyEntryFmt, evicted.ID)); err != nil {
			return err
		}
		c.logger.Debug("evicted oldest cache entry",
			"entry_id", evicted.ID,
			"timestamp", evicted.Timestamp)
	}

	return c.writeIndex(ctx, live)
}

// Get retrieves one entry by ID. Expired or corrupted entries read as
// absent and are purged.
func (c *Cache) Get(ctx context.Context, id string) (*Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := c.kv.Get(ctx, fmt.Sprintf(keyEntryFmt, id))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	var entry Entry
	if jsonErr := json.Unmarshal(data, &entry); jsonErr != nil || !entry.valid() {
		c.logger.Warn("purging corrupted cache entry", "entry_id", id)
		_ = c.kv.Delete(ctx, fmt.Sprintf(keyEntryFmt, id))
		return nil, store.ErrNotFound
	}

	if c.expired(entry) {
		_ = c.kv.Delete(ctx, fmt.Sprintf(keyEntryFmt, id))
		return nil, store.ErrNotFound
	}
	return &entry, nil
}

// List returns every live entry sorted by timestamp descending (newest
// first). Expired and corrupted entries are filtered out.
func (c *Cache) List(ctx context.Context) ([]Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids, err := c.readIndex(ctx)
	if err != nil {
		return nil, err
	}

	live, err := c.readLive(ctx, ids)
	if err != nil {
		return nil, err
	}

	sort.Slice(live, func(i, j int) bool {
		return live[i].Timestamp.After(live[j].Timestamp)
	})
	return live, nil
}

// ListForParent returns the live entries for one parent, newest first.
func (c *Cache) ListForParent(ctx context.Context, parentID string) ([]Entry, error) {
	all, err := c.List(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]Entry, 0, len(all))
	for _, entry := range all {
		if entry.ParentID == parentID {
			out = append(out, entry)
		}
	}
	return out, nil
}

// Delete removes one entry. Deleting a missing entry is not an error.
func (c *Cache) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.kv.Delete(ctx, fmt.Sprintf(keyEntryFmt, id)); err != nil {
		return err
	}

	ids, err := c.readIndex(ctx)
	if err != nil {
		return err
	}

	remaining := make([]string, 0, len(ids))
	for _, existing := range ids {
		if existing != id {
			remaining = append(remaining, existing)
		}
	}

	data, err := json.Marshal(remaining)
	if err != nil {
		return fmt.Errorf("failed to marshal cache index: %w", err)
	}
	return c.kv.Set(ctx, keyIndex, data)
}

// Clear removes every entry.
func (c *Cache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids, err := c.readIndex(ctx)
	if err != nil {
		return err
	}

	for _, id := range ids {
		if err := c.kv.Delete(ctx, fmt.Sprintf(keyEntryFmt, id)); err != nil {
			return err
		}
	}
	return c.kv.Delete(ctx, keyIndex)
}

// expired reports whether the entry is older than the TTL.
func (c *Cache) expired(entry Entry) bool {
	return c.now().Sub(entry.Timestamp) > c.ttl
}

// readIndex loads the entry ID index. A missing or corrupted index reads
// as empty.
func (c *Cache) readIndex(ctx context.Context) ([]string, error) {
	data, err := c.kv.Get(ctx, keyIndex)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read cache index: %w", err)
	}

	var ids []string
	if jsonErr := json.Unmarshal(data, &ids); jsonErr != nil {
		c.logger.Warn("corrupted cache index, treating as empty")
		return nil, nil
	}
	return ids, nil
}

// readLive loads the entries behind ids, dropping expired and corrupted
// records and purging them from the collaborator as encountered.
func (c *Cache) readLive(ctx context.Context, ids []string) ([]Entry, error) {
	live := make([]Entry, 0, len(ids))
	for _, id := range ids {
		data, err := c.kv.Get(ctx, fmt.Sprintf(keyEntryFmt, id))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return nil, err
		}

		var entry Entry
		if jsonErr := json.Unmarshal(data, &entry); jsonErr != nil || !entry.valid() {
			c.logger.Warn("skipping corrupted cache entry", "entry_id", id)
			_ = c.kv.Delete(ctx, fmt.Sprintf(keyEntryFmt, id))
			continue
		}

		if c.expired(entry) {
			_ = c.kv.Delete(ctx, fmt.Sprintf(keyEntryFmt, id))
			continue
		}
		live = append(live, entry)
	}
	return live, nil
}

// writeIndex persists the index derived from the given live entries.
func (c *Cache) writeIndex(ctx context.Context, live []Entry) error {
	ids := make([]string, len(live))
	for i, entry := range live {
		ids[i] = entry.ID
	}

	data, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("failed to marshal cache index: %w", err)
	}
	return c.kv.Set(ctx, keyIndex, data)
}
