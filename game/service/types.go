package service

import (
	"time"

	"github.com/baduklab/goban-server/game/board"
	"github.com/baduklab/goban-server/game/review"
	"github.com/baduklab/goban-server/game/session"
)

// NewGameResult is returned from NewGame.
type NewGameResult struct {
	GameID      string             `json:"gameId"`
	ExpiresAt   time.Time          `json:"expiresAt"`
	ActiveGames int                `json:"activeGames"`
	Config      session.GameConfig `json:"config"`
	EngineMove  string             `json:"engineMove,omitempty"`
}

// GameStateResult is a read-only snapshot of a live game.
type GameStateResult struct {
	GameID    string             `json:"gameId"`
	Status    session.Status     `json:"status"`
	Stones    board.Stones       `json:"stones"`
	Config    session.GameConfig `json:"config"`
	CreatedAt time.Time          `json:"createdAt"`
	ExpiresAt time.Time          `json:"expiresAt"`
}

// EngineStatusResult describes engine availability for one owner.
type EngineStatusResult struct {
	Online              bool   `json:"online"`
	Placeholder         bool   `json:"placeholder"`
	ActiveGamesForOwner int    `json:"activeGamesForOwner"`
	ConcurrencyCap      int    `json:"concurrencyCap"`
	Uptime              string `json:"uptime"`
}

// ImportResult describes an imported review session.
type ImportResult struct {
	ReviewID    string       `json:"reviewId"`
	BoardSize   int          `json:"boardSize"`
	Komi        float64      `json:"komi"`
	Meta        review.Meta  `json:"meta"`
	MoveCount   int          `json:"moveCount"`
	Moves       []board.Move `json:"moves"`
	FinalStones board.Stones `json:"finalStones"`
}

// SaveExerciseResult is returned from SaveExercise. Overwritten is
// true when the same (record, moveIndex) pair was saved before.
type SaveExerciseResult struct {
	ExerciseID  string `json:"exerciseId"`
	Overwritten bool   `json:"overwritten"`
}
