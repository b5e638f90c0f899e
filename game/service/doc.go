// The service package implements the application-facing game API:
//
//   - Live game operations (new, play, heartbeat, close, status)
//   - Record import and position review operations
//   - Exercise saving and listing
//   - The reclamation sweeper that evicts idle sessions
//
// The service composes the session, review, and exercise stores and
// is the single layer transports talk to: HTTP handlers, the
// websocket hub, and the MCP tools all call the same GameService
// interface.
package service
