// Package storage persists the two collections that carry alert state
// across passes: notification records (the idempotency guard) and pending
// results (events awaiting their published value).
//
// Every driver loads and saves the whole State at once. Missing or corrupt
// documents degrade to empty collections; a failing backend (database or
// redis unreachable) is an error. Nothing here locks, callers serialize
// passes.
package storage
