package service

import (
	"context"
	"fmt"
	"time"

	"github.com/baduklab/goban-server/game/board"
	"github.com/baduklab/goban-server/game/exercise"
	"github.com/baduklab/goban-server/game/gtp"
	"github.com/baduklab/goban-server/game/review"
	"github.com/baduklab/goban-server/game/session"
)

// gameServiceImpl implements the GameService interface
type gameServiceImpl struct {
	games       *session.Store
	reviews     *review.Store
	exercises   *exercise.Persister
	placeholder bool
	startedAt   time.Time
}

// NewGameService creates a new game service instance. placeholder
// reports whether the stores were wired with the stub engine factory.
func NewGameService(games *session.Store, reviews *review.Store, exercises *exercise.Persister, placeholder bool) GameService {
	return &gameServiceImpl{
		games:       games,
		reviews:     reviews,
		exercises:   exercises,
		placeholder: placeholder,
		startedAt:   time.Now(),
	}
}

func (s *gameServiceImpl) NewGame(ctx context.Context, ownerID string, cfg session.GameConfig) (*NewGameResult, error) {
	sess, engineMove, err := s.games.Create(ctx, ownerID, cfg)
	if err != nil {
		return nil, err
	}
	return &NewGameResult{
		GameID:      sess.ID,
		ExpiresAt:   sess.LastActive().Add(s.games.TTL()),
		ActiveGames: s.games.Admission().Active(ownerID),
		Config:      sess.Config,
		EngineMove:  engineMove,
	}, nil
}

func (s *gameServiceImpl) Play(ctx context.Context, ownerID, gameID, move string) (*session.MoveReply, error) {
	return s.games.ApplyMove(ctx, gameID, ownerID, move)
}

func (s *gameServiceImpl) Heartbeat(ownerID, gameID string) error {
	return s.games.Heartbeat(gameID, ownerID)
}

func (s *gameServiceImpl) CloseGame(ownerID, gameID string) error {
	return s.games.Close(gameID, ownerID)
}

func (s *gameServiceImpl) GameState(ownerID, gameID string) (*GameStateResult, error) {
	sess, err := s.games.Get(gameID, ownerID)
	if err != nil {
		return nil, err
	}
	return &GameStateResult{
		GameID:    sess.ID,
		Status:    sess.Status(),
		Stones:    sess.Stones(),
		Config:    sess.Config,
		CreatedAt: sess.CreatedAt,
		ExpiresAt: sess.LastActive().Add(s.games.TTL()),
	}, nil
}

func (s *gameServiceImpl) EngineStatus(ownerID string) *EngineStatusResult {
	return &EngineStatusResult{
		Online:              true,
		Placeholder:         s.placeholder,
		ActiveGamesForOwner: s.games.Admission().Active(ownerID),
		ConcurrencyCap:      s.games.Admission().Limit(),
		Uptime:              time.Since(s.startedAt).Round(time.Second).String(),
	}
}

func (s *gameServiceImpl) ImportSGF(ownerID, rawSGF string) (*ImportResult, error) {
	rev, err := s.reviews.Create(ownerID, rawSGF)
	if err != nil {
		return nil, err
	}
	return importResult(rev), nil
}

func (s *gameServiceImpl) ReviewInfo(ownerID, reviewID string) (*ImportResult, error) {
	rev, err := s.reviews.Get(reviewID, ownerID)
	if err != nil {
		return nil, err
	}
	return importResult(rev), nil
}

func importResult(rev *review.Review) *ImportResult {
	return &ImportResult{
		ReviewID:    rev.ID,
		BoardSize:   rev.BoardSize,
		Komi:        rev.Komi,
		Meta:        rev.Meta,
		MoveCount:   len(rev.Moves),
		Moves:       rev.Moves,
		FinalStones: rev.FinalStones,
	}
}

func (s *gameServiceImpl) PositionAt(ownerID, reviewID string, moveIndex int) (board.Stones, error) {
	return s.reviews.PositionAt(reviewID, ownerID, moveIndex)
}

func (s *gameServiceImpl) Analyze(ctx context.Context, ownerID, reviewID string, moveIndex, maxVisits int) (gtp.Analysis, error) {
	return s.reviews.Analyze(ctx, reviewID, ownerID, moveIndex, maxVisits)
}

func (s *gameServiceImpl) CloseReview(ownerID, reviewID string) error {
	return s.reviews.Close(reviewID, ownerID)
}

func (s *gameServiceImpl) SaveExercise(ownerID, reviewID string, moveIndex int, category exercise.Category, answer exercise.Answer) (*SaveExerciseResult, error) {
	rev, err := s.reviews.Get(reviewID, ownerID)
	if err != nil {
		return nil, err
	}

	doc, err := exercise.Build(exercise.Source{
		RawSGF:    rev.RawSGF,
		BoardSize: rev.BoardSize,
		Komi:      rev.Komi,
		Setup:     rev.Setup,
		Moves:     rev.Moves,
	}, moveIndex, category, answer)
	if err != nil {
		return nil, err
	}

	overwritten := s.exercises.Exists(doc.ID)
	if err := s.exercises.Save(doc); err != nil {
		return nil, fmt.Errorf("save exercise: %w", err)
	}
	return &SaveExerciseResult{ExerciseID: doc.ID, Overwritten: overwritten}, nil
}

func (s *gameServiceImpl) GetExercise(id string) (*exercise.Document, error) {
	return s.exercises.Get(id)
}

func (s *gameServiceImpl) ListExercises() ([]exercise.Summary, error) {
	return s.exercises.List()
}

func (s *gameServiceImpl) Shutdown() {
	s.games.DrainAll()
	s.reviews.DrainAll()
}
