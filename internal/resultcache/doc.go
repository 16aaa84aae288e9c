// Package resultcache keeps a bounded, TTL-evicting collection of finished
// job results for quick listing and replay. Entries live in the generic
// key-value collaborator; expiry is enforced here by comparing stored
// timestamps against the clock, and capacity is enforced after every insert
// by evicting the oldest live entries. A corrupted record can never break a
// listing: it is skipped and opportunistically removed.
package resultcache
