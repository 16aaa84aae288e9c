// Package generation defines the interface boundary between the application
// core and the external content generation service, plus the error taxonomy
// its implementations map provider failures onto. The orchestrating task
// depends only on this package; the Gemini-backed implementation lives in
// internal/platform/gemini.
package generation
