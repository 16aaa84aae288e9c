// Package store defines the persistence interfaces consumed by the
// application core: a generic key-value collaborator used by the checkpoint
// store and the result cache, and a JobStore for job lifecycle records.
// In-memory implementations live here; the PostgreSQL implementations live
// in internal/platform/postgres. The interfaces are deliberately minimal so
// that swapping the in-memory maps for a shared store is transparent to
// callers.
package store
