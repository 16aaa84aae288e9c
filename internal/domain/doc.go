// Package domain defines the core business entities of the storyboard
// generation pipeline: jobs, scenes, extracted entities, and the entity
// registry shared across generation phases. It contains no infrastructure
// dependencies; persistence and transport layers depend on this package,
// never the other way around.
package domain
