// Package websocket provides WebSocket transport for live game updates.
//
// The websocket package implements:
//   - Real-time push of move results to game watchers
//   - Game-aware WebSocket connections
//   - Connection lifecycle management
//   - Ping/pong keepalive and dead-peer cleanup
//
// Architecture:
//
// The package uses a hub-and-spoke model where a central Hub manages all
// WebSocket connections. Each client connection is handled by a dedicated
// goroutine that manages reading, writing, and cleanup. All registry
// mutation happens on the hub's Run goroutine.
//
// Game Integration:
//
// Clients specify the game they watch via query parameter (?game=g-...)
// when establishing the connection. Move updates are broadcast only to
// clients connected to the same game.
//
// Usage:
//
//	hub := websocket.NewHub()
//	go hub.Run()
//
//	// after each accepted move
//	hub.BroadcastToGame(gameID, moveReply)
//
// Incoming messages are not interpreted; the connection is a one-way
// update stream kept alive by pings.
package websocket
