package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/baduklab/goban-server/game/board"
	"github.com/baduklab/goban-server/game/gtp"
)

var (
	ErrNotFound         = errors.New("game session not found")
	ErrForbidden        = errors.New("game session belongs to another owner")
	ErrCapacityExceeded = errors.New("too many active games for owner")
	ErrIllegalMove      = errors.New("illegal move")
	ErrGameEnded        = errors.New("game already ended")
)

// Status tracks whether a session still accepts moves.
type Status string

const (
	StatusActive Status = "active"
	StatusEnded  Status = "ended"
)

// GameConfig carries the options accepted on game creation. Zero
// values fall back to sensible defaults.
type GameConfig struct {
	BoardSize  int         `json:"boardSize,omitempty"`
	Komi       float64     `json:"komi,omitempty"`
	Rules      string      `json:"rules,omitempty"`
	Level      int         `json:"engineLevel,omitempty"`
	HumanColor board.Color `json:"playerColor,omitempty"`
}

func (c *GameConfig) applyDefaults() {
	if c.BoardSize == 0 {
		c.BoardSize = board.DefaultSize
	}
	if c.Rules == "" {
		c.Rules = "chinese"
	}
	if c.Komi == 0 {
		c.Komi = 6.5
	}
	// Chinese rules fix komi at 7.5.
	if strings.EqualFold(c.Rules, "chinese") {
		c.Komi = 7.5
	}
	if c.Level == 0 {
		c.Level = 3
	}
	if !c.HumanColor.Valid() {
		c.HumanColor = board.Black
	}
}

// EngineFactory builds the adapter for a new session. The server wires
// either a real subprocess factory or the stub, depending on config.
type EngineFactory func(cfg GameConfig) (gtp.Engine, error)

// Session is one live game bound 1:1 to an engine adapter.
type Session struct {
	ID        string
	OwnerID   string
	CreatedAt time.Time
	Config    GameConfig
	Engine    gtp.Engine

	mu           sync.Mutex
	lastActiveAt time.Time
	status       Status
	torndown     bool
	board        *board.Board
}

// LastActive returns the session's last activity timestamp.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActiveAt
}

// Status returns the session's lifecycle status.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Stones returns a snapshot of the current position.
func (s *Session) Stones() board.Stones {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.board.Stones()
}

// claimTeardown reports whether the caller owns adapter termination.
// A game that ended on the board keeps its adapter until someone
// closes, evicts, or drains it; whichever of those runs first gets
// true here, everyone after gets false. This is what makes Quit and
// the admission release fire exactly once per session.
func (s *Session) claimTeardown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.torndown {
		return false
	}
	s.torndown = true
	s.status = StatusEnded
	return true
}

// Captures is the cumulative capture count per side.
type Captures struct {
	ByBlack int `json:"byBlack"`
	ByWhite int `json:"byWhite"`
}

// EndState reports whether the game finished during a move exchange.
type EndState struct {
	Finished bool   `json:"finished"`
	Reason   string `json:"reason,omitempty"`
}

// MoveReply is the outcome of one human move plus the engine's answer.
type MoveReply struct {
	EngineMove string   `json:"engineMove"`
	Captures   Captures `json:"captures"`
	End        EndState `json:"end"`
}

// Store maps game IDs to live sessions. Safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	sessions  map[string]*Session
	admission *Admission
	newEngine EngineFactory
	ttl       time.Duration
}

// NewStore creates a game session store. ttl is the idle duration
// after which the sweeper may reclaim a session.
func NewStore(admission *Admission, factory EngineFactory, ttl time.Duration) *Store {
	return &Store{
		sessions:  make(map[string]*Session),
		admission: admission,
		newEngine: factory,
		ttl:       ttl,
	}
}

// TTL returns the configured idle time-to-live.
func (s *Store) TTL() time.Duration { return s.ttl }

// Admission exposes the admission controller for status reporting.
func (s *Store) Admission() *Admission { return s.admission }

// Create allocates a session with a fresh engine adapter. When the
// human plays white the engine opens, and the returned string carries
// its first move in GTP form.
func (s *Store) Create(ctx context.Context, ownerID string, cfg GameConfig) (*Session, string, error) {
	cfg.applyDefaults()
	b, err := board.New(cfg.BoardSize)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrIllegalMove, err)
	}

	if !s.admission.TryAcquire(ownerID) {
		return nil, "", fmt.Errorf("%w: cap %d", ErrCapacityExceeded, s.admission.Limit())
	}

	eng, err := s.newEngine(cfg)
	if err != nil {
		s.admission.Release(ownerID)
		return nil, "", fmt.Errorf("failed to start engine: %w", err)
	}

	// Board setup commands are best effort, matching the engine's own
	// defaults when one of them is refused.
	eng.Send(ctx, fmt.Sprintf("boardsize %d", cfg.BoardSize))
	eng.Send(ctx, fmt.Sprintf("komi %.1f", cfg.Komi))
	eng.Send(ctx, "clear_board")

	now := time.Now()
	sess := &Session{
		ID:           "g-" + uuid.NewString(),
		OwnerID:      ownerID,
		CreatedAt:    now,
		Config:       cfg,
		Engine:       eng,
		lastActiveAt: now,
		status:       StatusActive,
		board:        b,
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	var firstMove string
	if cfg.HumanColor == board.White {
		reply, err := eng.Send(ctx, "genmove B")
		if err != nil {
			log.Printf("[GAME] first engine move failed for %s: %v", sess.ID, err)
		} else {
			firstMove = gtp.ParseMove(reply)
			sess.mu.Lock()
			if coord, cerr := board.ParseGTP(firstMove, cfg.BoardSize); cerr == nil {
				sess.board.Apply(board.Black, coord)
			}
			sess.mu.Unlock()
		}
	}

	return sess, firstMove, nil
}

// Get returns the session for id when owned by ownerID.
func (s *Store) Get(id, ownerID string) (*Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	if sess.OwnerID != ownerID {
		return nil, ErrForbidden
	}
	return sess, nil
}

// ApplyMove plays one human move, forwards the position to the engine,
// and returns the engine's answer. The whole exchange is serialized
// per session; engine failure leaves the board untouched so the owner
// can retry or close explicitly.
func (s *Store) ApplyMove(ctx context.Context, id, ownerID, move string) (*MoveReply, error) {
	sess, err := s.Get(id, ownerID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.status != StatusActive {
		return nil, ErrGameEnded
	}

	human := sess.Config.HumanColor
	ai := human.Opponent()
	size := sess.Config.BoardSize

	coord, err := board.ParseGTP(move, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIllegalMove, err)
	}
	if err := sess.board.CheckLegal(human, coord); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIllegalMove, err)
	}

	// Work on a copy so a failed engine round-trip leaves no partial
	// board state behind.
	work := sess.board.Clone()
	work.Apply(human, coord)

	humanGTP, _ := board.FormatGTP(coord, size)
	colorLetter := "B"
	aiLetter := "W"
	if human == board.White {
		colorLetter, aiLetter = "W", "B"
	}

	if _, err := sess.Engine.Send(ctx, fmt.Sprintf("play %s %s", colorLetter, humanGTP)); err != nil {
		return nil, err
	}
	reply, err := sess.Engine.Send(ctx, fmt.Sprintf("genmove %s", aiLetter))
	if err != nil {
		return nil, err
	}

	engineMove := gtp.ParseMove(reply)
	end := EndState{}
	switch strings.ToLower(engineMove) {
	case "resign":
		end = EndState{Finished: true, Reason: "resign"}
	case "pass":
		if coord == "" {
			end = EndState{Finished: true, Reason: "two_passes"}
		}
		work.Apply(ai, "")
	default:
		if aiCoord, cerr := board.ParseGTP(engineMove, size); cerr == nil {
			work.Apply(ai, aiCoord)
		}
	}

	sess.board = work
	sess.lastActiveAt = time.Now()
	if end.Finished {
		sess.status = StatusEnded
	}

	return &MoveReply{
		EngineMove: engineMove,
		Captures: Captures{
			ByBlack: work.CapturedByBlack,
			ByWhite: work.CapturedByWhite,
		},
		End: end,
	}, nil
}

// Heartbeat refreshes the session's idle clock and nothing else.
func (s *Store) Heartbeat(id, ownerID string) error {
	sess, err := s.Get(id, ownerID)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.status != StatusActive {
		return ErrGameEnded
	}
	sess.lastActiveAt = time.Now()
	return nil
}

// Close ends the session, terminates its adapter, releases the
// owner's admission slot, and removes the entry. Closing an already
// removed session is not an error.
func (s *Store) Close(id, ownerID string) error {
	sess, err := s.Get(id, ownerID)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	s.remove(sess)
	return nil
}

// remove performs the shared teardown of close and eviction. The
// adapter receives exactly one Quit per session lifetime.
func (s *Store) remove(sess *Session) {
	s.mu.Lock()
	delete(s.sessions, sess.ID)
	s.mu.Unlock()

	if sess.claimTeardown() {
		if err := sess.Engine.Quit(); err != nil {
			log.Printf("[GAME] engine quit failed for %s: %v", sess.ID, err)
		}
		s.admission.Release(sess.OwnerID)
	}
}

// EvictExpired removes every session idle longer than the TTL. A
// failure tearing one entry down never blocks the rest of the sweep.
func (s *Store) EvictExpired(now time.Time) int {
	s.mu.RLock()
	var expired []*Session
	for _, sess := range s.sessions {
		if now.Sub(sess.LastActive()) > s.ttl {
			expired = append(expired, sess)
		}
	}
	s.mu.RUnlock()

	for _, sess := range expired {
		s.remove(sess)
		log.Printf("[SWEEP] evicted idle game %s owner=%s", sess.ID, sess.OwnerID)
	}
	return len(expired)
}

// Count returns the number of stored sessions.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// DrainAll terminates every session's adapter. Called once at server
// shutdown.
func (s *Store) DrainAll() {
	s.mu.Lock()
	remaining := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		remaining = append(remaining, sess)
	}
	s.sessions = make(map[string]*Session)
	s.mu.Unlock()

	var g errgroup.Group
	for _, sess := range remaining {
		g.Go(func() error {
			if sess.claimTeardown() {
				s.admission.Release(sess.OwnerID)
				return sess.Engine.Quit()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Printf("[GAME] drain: %v", err)
	}
}
