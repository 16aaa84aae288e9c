// Package api contains the HTTP handlers for the storyboard service.
//
// Handlers decode and validate request DTOs, delegate to the service
// layer, and translate internal errors into sanitized HTTP responses via
// MapErrorToStatusCode and GetSafeErrorMessage. Shared response and
// request helpers live in the shared subpackage; HTTP middleware lives in
// the middleware subpackage.
package api
