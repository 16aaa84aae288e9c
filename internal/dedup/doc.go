// Package dedup scores and filters near-duplicate scenes before they are
// persisted. Similarity is a weighted blend of per-field comparators with
// the description as the dominant signal. Deduplication is a deliberate
// single pass: each candidate is compared against the working set of
// already-accepted scenes (existing plus earlier accepted candidates), so a
// batch that re-emits the same scene twice is caught without a second scan.
// The pass is order dependent and intentionally so.
package dedup
