// Package mcp exposes the game server over the Model Context Protocol.
//
// The Client here is a thin proxy: every tool call is translated into
// a request against the REST API, so MCP agents and browser clients
// share one set of semantics, limits, and error messages. The client
// holds a fixed sid for its lifetime, which makes it a single owner
// for admission counting.
package mcp
