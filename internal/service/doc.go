// Package service contains the application-specific use cases and business
// logic. It orchestrates interactions between domain objects and repositories
// (defined in internal/store) to fulfill application features.
//
// Services receive dependencies through constructor injection and translate
// store-level errors into application-level sentinels that the API layer maps
// to HTTP status codes. The service layer depends on domain entities and
// repository interfaces, never on specific infrastructure implementations.
package service
