// Package services wires the buildscout components together.
//
// Build constructs the race catalog, signature builder, scorer, pattern
// store, learning service and matcher from a config.Config and returns them
// behind a Registry. Writes go through the IngestQueue, which runs them one
// at a time on a single worker; matching reads the store directly.
package services
