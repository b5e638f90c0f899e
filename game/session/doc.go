// Package session provides live game session management for the Goban
// server.
//
// The session package implements:
//   - Thread-safe session storage and retrieval keyed by game ID
//   - Per-owner admission control (bounded concurrent games)
//   - Per-session serialization of board mutations
//   - Engine adapter ownership: spawned at creation, terminated at
//     close or eviction, exactly once
//   - Idle-session expiry hooks for the reclamation sweeper
//
// Core Types:
//
// Store is the session manager. Session is one live game: board state,
// owner identity, timestamps, and an exclusively owned engine adapter.
// Admission is the per-owner counter enforcing the concurrency cap.
//
// Ownership:
//
// Every operation takes the requesting owner ID. A session is only
// visible to its creator; lookups with a different owner fail with
// ErrForbidden regardless of timing.
//
// Concurrency:
//
// The store map is guarded by its own lock and safe for concurrent
// insert/remove/lookup. Mutations of a single session (ApplyMove,
// Heartbeat, Close, eviction) are serialized by a per-session mutex,
// so board state and LastActiveAt always change atomically relative to
// each other. Operations on distinct sessions run fully in parallel.
package session
