// Package gtp drives one external analysis-engine subprocess over the
// line-based GTP protocol.
//
// The gtp package implements:
//   - Subprocess lifecycle: spawn, request/response, graceful quit with
//     a forced-kill fallback
//   - A state machine (Starting, Ready, Busy, Terminating, Terminated,
//     Crashed) shared by the real process and the stub
//   - Reply framing (read until blank line) and failure detection
//   - A deterministic stub used when no engine binary is configured
//   - Difficulty-level presets translated to engine config overrides
//
// Concurrency:
//
// An adapter processes one request at a time. Send serializes callers
// internally; a caller blocked in Send owns the subprocess round-trip
// until a reply is framed or the timeout marks the adapter Crashed.
// Once Crashed, every Send fails fast so waiters never hang behind a
// dead process.
//
// Stub Mode:
//
// NewStub returns an Engine with the same contract as a spawned
// process: identical states, identical commands, replies that are
// deterministic and legal-looking. Callers cannot observe which mode
// is active.
package gtp
