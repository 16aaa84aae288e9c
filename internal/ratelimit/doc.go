// Package ratelimit implements the admission controller that gates calls to
// the external generation service: a fixed-window request counter keyed by a
// caller-supplied identifier, a tier classification cache for external API
// keys, and a static table mapping operation categories and tiers to limits.
// Denial is a normal return value carrying the window reset time, never an
// error; callers translate it into backpressure (HTTP 429 upstream).
package ratelimit
