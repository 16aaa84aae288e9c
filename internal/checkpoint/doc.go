// Package checkpoint persists per-phase outputs of a generation job and
// reconstructs a consistent resume state from them. Records are stored
// through the generic key-value collaborator in internal/store; each job's
// read-modify-write cycles are serialized by a per-job lock so concurrent
// batch writes for the same job cannot lose index updates. Reconstruction
// is invariant to batch write order and idempotent for re-recorded batch
// indices.
package checkpoint
