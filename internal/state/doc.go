// Package state is the durable shared-state store used by components.
//
// Each component owns one Store holding a single value. Handlers borrow the
// value through guards: any number of ReadGuards at once, or one WriteGuard.
// Releasing a WriteGuard writes the value to <dir>/<name>.json through a temp
// file that is synced and renamed into place.
//
// When a flush fails the mutation stays in memory and the release returns a
// *FlushError. Memory and disk differ until the next successful flush.
package state
