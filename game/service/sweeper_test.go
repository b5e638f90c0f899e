package service

import (
	"context"
	"testing"
	"time"

	"github.com/baduklab/goban-server/game/gtp"
	"github.com/baduklab/goban-server/game/review"
	"github.com/baduklab/goban-server/game/session"
)

func TestSweeper_ReclaimsBothStores(t *testing.T) {
	games := session.NewStore(session.NewAdmission(3), func(cfg session.GameConfig) (gtp.Engine, error) {
		return gtp.NewStub(), nil
	}, 10*time.Millisecond)
	reviews := review.NewStore(func() (gtp.Engine, error) {
		return gtp.NewStub(), nil
	}, 10*time.Millisecond)

	sess, _, err := games.Create(context.Background(), "sid-1", session.GameConfig{})
	if err != nil {
		t.Fatalf("create game: %v", err)
	}
	if _, err := reviews.Create("sid-1", "(;SZ[9];B[dd])"); err != nil {
		t.Fatalf("create review: %v", err)
	}

	sw := NewSweeper(games, reviews, time.Hour)
	if n := sw.Sweep(time.Now()); n != 0 {
		t.Errorf("fresh entries must survive, evicted %d", n)
	}
	if n := sw.Sweep(time.Now().Add(time.Minute)); n != 2 {
		t.Errorf("expected 2 evictions, got %d", n)
	}
	if games.Count() != 0 || reviews.Count() != 0 {
		t.Errorf("stores should be empty, got %d games %d reviews", games.Count(), reviews.Count())
	}
	if sess.Engine.State() != gtp.Terminated {
		t.Errorf("game engine should be terminated, state=%s", sess.Engine.State())
	}
}

func TestSweeper_StartStop(t *testing.T) {
	games := session.NewStore(session.NewAdmission(3), func(cfg session.GameConfig) (gtp.Engine, error) {
		return gtp.NewStub(), nil
	}, time.Millisecond)
	reviews := review.NewStore(func() (gtp.Engine, error) {
		return gtp.NewStub(), nil
	}, time.Millisecond)

	if _, _, err := games.Create(context.Background(), "sid-1", session.GameConfig{}); err != nil {
		t.Fatalf("create game: %v", err)
	}

	sw := NewSweeper(games, reviews, 5*time.Millisecond)
	sw.Start(context.Background())

	deadline := time.Now().Add(time.Second)
	for games.Count() > 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	sw.Stop()

	if games.Count() != 0 {
		t.Error("sweeper loop should have evicted the idle game")
	}
}
