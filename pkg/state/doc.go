// Package state caches the last known value of every device observable.
//
// The cache is written exclusively by the dispatcher's read pump, in frame
// arrival order, so the stored value for an observable is always the most
// recently received one. Readers obtain an immutable copy via Snapshot;
// subscribers are notified after every applied update.
package state
