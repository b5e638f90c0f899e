package service

import (
	"context"

	"github.com/baduklab/goban-server/game/board"
	"github.com/baduklab/goban-server/game/exercise"
	"github.com/baduklab/goban-server/game/gtp"
	"github.com/baduklab/goban-server/game/session"
)

// GameService defines all game-related operations
type GameService interface {
	// Live games
	NewGame(ctx context.Context, ownerID string, cfg session.GameConfig) (*NewGameResult, error)
	Play(ctx context.Context, ownerID, gameID, move string) (*session.MoveReply, error)
	Heartbeat(ownerID, gameID string) error
	CloseGame(ownerID, gameID string) error
	GameState(ownerID, gameID string) (*GameStateResult, error)
	EngineStatus(ownerID string) *EngineStatusResult

	// Reviews
	ImportSGF(ownerID, rawSGF string) (*ImportResult, error)
	ReviewInfo(ownerID, reviewID string) (*ImportResult, error)
	PositionAt(ownerID, reviewID string, moveIndex int) (board.Stones, error)
	Analyze(ctx context.Context, ownerID, reviewID string, moveIndex, maxVisits int) (gtp.Analysis, error)
	CloseReview(ownerID, reviewID string) error

	// Exercises
	SaveExercise(ownerID, reviewID string, moveIndex int, category exercise.Category, answer exercise.Answer) (*SaveExerciseResult, error)
	GetExercise(id string) (*exercise.Document, error)
	ListExercises() ([]exercise.Summary, error)

	// Shutdown drains both stores, terminating every adapter.
	Shutdown()
}
