// Package postgres provides PostgreSQL-backed implementations of the
// store interfaces: PostgresJobStore for job lifecycle persistence and
// PostgresKVStore for the key-value collaborator behind the checkpoint
// store and the result cache.
//
// Both stores accept a store.DBTX so they work with either a *sql.DB or
// a transaction. Database errors are translated to store sentinels via
// MapError. Schema migrations are embedded and applied with goose, see
// MigrateUp.
package postgres
