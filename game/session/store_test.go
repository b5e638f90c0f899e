package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/baduklab/goban-server/game/board"
	"github.com/baduklab/goban-server/game/gtp"
)

func stubFactory(cfg GameConfig) (gtp.Engine, error) {
	return gtp.NewStub(), nil
}

func newTestStore(limit int, factory EngineFactory) *Store {
	if factory == nil {
		factory = stubFactory
	}
	return NewStore(NewAdmission(limit), factory, 30*time.Minute)
}

func TestStore_CreateAndGet(t *testing.T) {
	s := newTestStore(3, nil)

	sess, first, err := s.Create(context.Background(), "sid-1", GameConfig{})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if first != "" {
		t.Errorf("human black should not get an opening engine move, got %q", first)
	}
	if sess.Config.BoardSize != 19 {
		t.Errorf("expected default board size 19, got %d", sess.Config.BoardSize)
	}
	if sess.Config.Komi != 7.5 {
		t.Errorf("chinese rules should force komi 7.5, got %v", sess.Config.Komi)
	}

	got, err := s.Get(sess.ID, "sid-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.ID != sess.ID {
		t.Errorf("expected session %s, got %s", sess.ID, got.ID)
	}
}

func TestStore_CreateWhiteGetsOpeningMove(t *testing.T) {
	s := newTestStore(3, nil)

	_, first, err := s.Create(context.Background(), "sid-1", GameConfig{HumanColor: board.White})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if first == "" {
		t.Error("human white should receive the engine's opening move")
	}
}

func TestStore_CapacityExceeded(t *testing.T) {
	s := newTestStore(3, nil)

	for i := 0; i < 3; i++ {
		if _, _, err := s.Create(context.Background(), "sid-1", GameConfig{}); err != nil {
			t.Fatalf("create %d should succeed: %v", i+1, err)
		}
	}
	_, _, err := s.Create(context.Background(), "sid-1", GameConfig{})
	if !errors.Is(err, ErrCapacityExceeded) {
		t.Errorf("expected ErrCapacityExceeded, got %v", err)
	}

	// Another owner is unaffected.
	if _, _, err := s.Create(context.Background(), "sid-2", GameConfig{}); err != nil {
		t.Errorf("different owner should be admitted: %v", err)
	}
}

func TestStore_CloseFreesSlot(t *testing.T) {
	s := newTestStore(1, nil)

	sess, _, err := s.Create(context.Background(), "sid-1", GameConfig{})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := s.Close(sess.ID, "sid-1"); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if sess.Engine.State() != gtp.Terminated {
		t.Errorf("close should terminate the engine, state=%s", sess.Engine.State())
	}
	if _, _, err := s.Create(context.Background(), "sid-1", GameConfig{}); err != nil {
		t.Errorf("close should free the admission slot: %v", err)
	}
}

func TestStore_CloseIdempotent(t *testing.T) {
	s := newTestStore(3, nil)

	sess, _, _ := s.Create(context.Background(), "sid-1", GameConfig{})
	if err := s.Close(sess.ID, "sid-1"); err != nil {
		t.Fatalf("first close failed: %v", err)
	}
	if err := s.Close(sess.ID, "sid-1"); err != nil {
		t.Errorf("second close should be a no-op, got %v", err)
	}
	if n := s.Admission().Active("sid-1"); n != 0 {
		t.Errorf("double close must not double-release, active=%d", n)
	}
}

func TestStore_Ownership(t *testing.T) {
	s := newTestStore(3, nil)

	sess, _, _ := s.Create(context.Background(), "sid-1", GameConfig{})

	t.Run("get", func(t *testing.T) {
		if _, err := s.Get(sess.ID, "sid-2"); !errors.Is(err, ErrForbidden) {
			t.Errorf("expected ErrForbidden, got %v", err)
		}
	})
	t.Run("move", func(t *testing.T) {
		if _, err := s.ApplyMove(context.Background(), sess.ID, "sid-2", "Q16"); !errors.Is(err, ErrForbidden) {
			t.Errorf("expected ErrForbidden, got %v", err)
		}
	})
	t.Run("unknown id", func(t *testing.T) {
		if _, err := s.Get("g-missing", "sid-1"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestStore_ApplyMove(t *testing.T) {
	s := newTestStore(3, nil)

	sess, _, _ := s.Create(context.Background(), "sid-1", GameConfig{})
	reply, err := s.ApplyMove(context.Background(), sess.ID, "sid-1", "C3")
	if err != nil {
		t.Fatalf("move failed: %v", err)
	}
	if reply.EngineMove == "" {
		t.Error("expected an engine answer move")
	}
	stones := sess.Stones()
	if len(stones.Black) != 1 {
		t.Errorf("expected one black stone, got %v", stones.Black)
	}
	if len(stones.White) != 1 {
		t.Errorf("expected one white engine stone, got %v", stones.White)
	}
}

func TestStore_ApplyMove_IllegalRejected(t *testing.T) {
	s := newTestStore(3, nil)

	sess, _, _ := s.Create(context.Background(), "sid-1", GameConfig{})
	if _, err := s.ApplyMove(context.Background(), sess.ID, "sid-1", "Z99"); !errors.Is(err, ErrIllegalMove) {
		t.Errorf("expected ErrIllegalMove, got %v", err)
	}
	// Occupied point after a legal exchange.
	if _, err := s.ApplyMove(context.Background(), sess.ID, "sid-1", "C3"); err != nil {
		t.Fatalf("setup move failed: %v", err)
	}
	if _, err := s.ApplyMove(context.Background(), sess.ID, "sid-1", "C3"); !errors.Is(err, ErrIllegalMove) {
		t.Errorf("playing an occupied point should fail, got %v", err)
	}
}

// failingEngine rejects every command after construction, standing in
// for a crashed subprocess.
type failingEngine struct{}

func (failingEngine) Send(ctx context.Context, cmd string) (string, error) {
	return "", gtp.ErrEngineUnavailable
}
func (failingEngine) Quit() error      { return nil }
func (failingEngine) State() gtp.State { return gtp.Crashed }

func TestStore_ApplyMove_EngineFailureKeepsBoard(t *testing.T) {
	s := newTestStore(3, func(cfg GameConfig) (gtp.Engine, error) {
		return failingEngine{}, nil
	})

	sess, _, err := s.Create(context.Background(), "sid-1", GameConfig{})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := s.ApplyMove(context.Background(), sess.ID, "sid-1", "C3"); !errors.Is(err, gtp.ErrEngineUnavailable) {
		t.Fatalf("expected ErrEngineUnavailable, got %v", err)
	}
	stones := sess.Stones()
	if len(stones.Black) != 0 || len(stones.White) != 0 {
		t.Errorf("failed exchange must not mutate the board, got %v / %v", stones.Black, stones.White)
	}
	if sess.Status() != StatusActive {
		t.Error("session should stay open after an engine failure")
	}
}

// resigningEngine answers every genmove with resign and delegates the
// rest to the stub.
type resigningEngine struct{ gtp.Engine }

func (r resigningEngine) Send(ctx context.Context, cmd string) (string, error) {
	if strings.HasPrefix(cmd, "genmove") {
		return "= resign\n", nil
	}
	return r.Engine.Send(ctx, cmd)
}

func TestStore_CloseAfterNaturalEndFreesSlot(t *testing.T) {
	s := newTestStore(1, func(cfg GameConfig) (gtp.Engine, error) {
		return resigningEngine{gtp.NewStub()}, nil
	})

	sess, _, err := s.Create(context.Background(), "sid-1", GameConfig{})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	reply, err := s.ApplyMove(context.Background(), sess.ID, "sid-1", "C3")
	if err != nil {
		t.Fatalf("move failed: %v", err)
	}
	if !reply.End.Finished || reply.End.Reason != "resign" {
		t.Fatalf("expected a resignation, got %+v", reply.End)
	}

	if _, err := s.ApplyMove(context.Background(), sess.ID, "sid-1", "D4"); !errors.Is(err, ErrGameEnded) {
		t.Errorf("moves after the end should fail with ErrGameEnded, got %v", err)
	}

	// The slot stays held until the owner closes or the sweeper runs.
	if n := s.Admission().Active("sid-1"); n != 1 {
		t.Fatalf("finished game should still hold its slot, active=%d", n)
	}

	if err := s.Close(sess.ID, "sid-1"); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if sess.Engine.State() != gtp.Terminated {
		t.Errorf("close after a natural end must still terminate the engine, state=%s", sess.Engine.State())
	}
	if n := s.Admission().Active("sid-1"); n != 0 {
		t.Errorf("close after a natural end must release the slot, active=%d", n)
	}
	if _, _, err := s.Create(context.Background(), "sid-1", GameConfig{}); err != nil {
		t.Errorf("slot should be reusable: %v", err)
	}
}

func TestStore_Heartbeat(t *testing.T) {
	s := newTestStore(3, nil)

	sess, _, _ := s.Create(context.Background(), "sid-1", GameConfig{})
	before := sess.LastActive()
	time.Sleep(5 * time.Millisecond)
	if err := s.Heartbeat(sess.ID, "sid-1"); err != nil {
		t.Fatalf("heartbeat failed: %v", err)
	}
	if !sess.LastActive().After(before) {
		t.Error("heartbeat should advance the idle clock")
	}
}

// countingEngine records how many times Quit runs.
type countingEngine struct {
	gtp.Engine
	quits *atomic.Int32
}

func (c countingEngine) Quit() error {
	c.quits.Add(1)
	return c.Engine.Quit()
}

func TestStore_EvictExpired(t *testing.T) {
	var quits atomic.Int32
	factory := func(cfg GameConfig) (gtp.Engine, error) {
		return countingEngine{Engine: gtp.NewStub(), quits: &quits}, nil
	}
	s := NewStore(NewAdmission(3), factory, 10*time.Millisecond)

	sess, _, err := s.Create(context.Background(), "sid-1", GameConfig{})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if n := s.EvictExpired(time.Now()); n != 0 {
		t.Errorf("fresh session must not be evicted, got %d", n)
	}

	if n := s.EvictExpired(time.Now().Add(time.Minute)); n != 1 {
		t.Errorf("expected 1 eviction, got %d", n)
	}
	if _, err := s.Get(sess.ID, "sid-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("evicted session should be gone, got %v", err)
	}
	if got := quits.Load(); got != 1 {
		t.Errorf("expected exactly one Quit, got %d", got)
	}
	if n := s.Admission().Active("sid-1"); n != 0 {
		t.Errorf("eviction should release the slot, active=%d", n)
	}

	// A racing explicit close after eviction must not Quit again.
	if err := s.Close(sess.ID, "sid-1"); err != nil {
		t.Fatalf("close after evict failed: %v", err)
	}
	if got := quits.Load(); got != 1 {
		t.Errorf("close after evict terminated the engine twice, quits=%d", got)
	}
}

func TestStore_ConcurrentCreateNeverExceedsCap(t *testing.T) {
	s := newTestStore(3, nil)

	var wg sync.WaitGroup
	var created atomic.Int32
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := s.Create(context.Background(), "sid-1", GameConfig{}); err == nil {
				created.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := created.Load(); got != 3 {
		t.Errorf("expected exactly 3 creations at cap 3, got %d", got)
	}
}

func TestStore_DrainAll(t *testing.T) {
	s := newTestStore(3, nil)

	a, _, _ := s.Create(context.Background(), "sid-1", GameConfig{})
	b, _, _ := s.Create(context.Background(), "sid-2", GameConfig{})

	s.DrainAll()

	if s.Count() != 0 {
		t.Errorf("expected empty store after drain, got %d", s.Count())
	}
	for _, sess := range []*Session{a, b} {
		if sess.Engine.State() != gtp.Terminated {
			t.Errorf("drain should terminate %s, state=%s", sess.ID, sess.Engine.State())
		}
	}
}
