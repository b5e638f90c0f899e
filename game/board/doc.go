// Package board provides the Go board model for the Goban server.
//
// The board package implements:
//   - Stone placement with capture bookkeeping (liberty counting)
//   - Basic move legality checks for live play
//   - Deterministic replay of a setup plus an ordered move list
//   - Conversion between SGF ("dd") and GTP ("Q16") coordinates
//
// Core Types:
//
// Board holds the stone grid, board size, side to move, and per-color
// capture counts. Move pairs a color with an SGF coordinate (an empty
// coordinate is a pass). Setup describes pre-placed stones from an
// imported record.
//
// Replay:
//
// Replay is a pure function: the position after move k depends only on
// the setup and moves[0..k]. Repeated calls with the same arguments
// return identical stone sets, which the review layer relies on for
// caching.
package board
