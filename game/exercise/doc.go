// The exercise package implements saved training positions:
//
// - Deterministic exercise IDs derived from record hash plus move index
// - A closed set of answer kinds with exhaustive per-kind validation
// - Immutable JSON artifacts written with temp-then-rename semantics
// - A SQLite index for listing and lookup
//
// Saving the same (record, moveIndex) pair twice yields the same ID,
// so callers can detect re-saves and decide between overwrite and
// conflict themselves.
package exercise
