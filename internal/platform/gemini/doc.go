// Package gemini provides an implementation of the generation.Generator
// interface using Google's Gemini API. It builds phase-specific prompts
// from embedded templates, calls the model with transient-error retries,
// and parses the JSON responses into domain types.
package gemini
