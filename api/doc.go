// Package api provides the REST interface to the game server.
//
// The api package handles:
//   - Live game endpoints (new, play, heartbeat, close, state, status)
//   - Review endpoints (import, position, analyze, close)
//   - Exercise endpoints (save, list, get)
//   - WebSocket upgrades for live game updates
//
// Owner Identity:
//
// Every request is attributed to an opaque owner via the "sid"
// cookie. Clients arriving without one are assigned a fresh ID and
// receive it as an HttpOnly cookie. The sid is what the admission
// controller counts and what ownership checks compare against.
//
// Error Mapping:
//
// Domain errors map onto stable HTTP statuses:
//   - 429: per-owner game capacity exceeded
//   - 404: unknown game/review/exercise ID
//   - 403: ID exists but belongs to another owner
//   - 422: illegal move, bad move index, invalid SGF or exercise
//   - 503: engine crashed or timed out (retryable; session stays open)
//
// Usage:
//
//	server := api.NewServer(gameService, hub)
//	http.ListenAndServe(":8080", server)
package api
