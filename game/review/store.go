package review

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/baduklab/goban-server/game/board"
	"github.com/baduklab/goban-server/game/gtp"
)

var (
	ErrNotFound  = errors.New("review session not found")
	ErrForbidden = errors.New("review session belongs to another owner")
)

// Review is one imported game record plus its analysis state. The
// parsed record is immutable after creation; the cache and the lazy
// engine slot are guarded by mu.
type Review struct {
	ID        string
	OwnerID   string
	CreatedAt time.Time

	BoardSize   int
	Komi        float64
	Meta        Meta
	Setup       board.Setup
	Moves       []board.Move
	FinalStones board.Stones
	RawSGF      string

	mu           sync.Mutex
	lastActiveAt time.Time
	cache        map[int]gtp.Analysis
	engine       gtp.Engine
	closed       bool
	flight       singleflight.Group
}

// LastActive returns the review's last activity timestamp.
func (r *Review) LastActive() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastActiveAt
}

func (r *Review) touch() {
	r.mu.Lock()
	r.lastActiveAt = time.Now()
	r.mu.Unlock()
}

// detachEngine takes the engine out of the review and marks it closed,
// so an analyze that looked the review up before removal cannot attach
// a fresh adapter afterwards. The caller owns termination.
func (r *Review) detachEngine() gtp.Engine {
	r.mu.Lock()
	defer r.mu.Unlock()
	eng := r.engine
	r.engine = nil
	r.closed = true
	return eng
}

// Store maps review IDs to sessions. Reviews have no per-owner cap.
type Store struct {
	mu        sync.RWMutex
	reviews   map[string]*Review
	newEngine func() (gtp.Engine, error)
	ttl       time.Duration
}

// NewStore creates a review store. factory builds the shared analysis
// adapter on first use; ttl bounds review idle time.
func NewStore(factory func() (gtp.Engine, error), ttl time.Duration) *Store {
	return &Store{
		reviews:   make(map[string]*Review),
		newEngine: factory,
		ttl:       ttl,
	}
}

// TTL returns the configured idle time-to-live.
func (s *Store) TTL() time.Duration { return s.ttl }

// Create parses rawSGF and registers a review session for ownerID.
func (s *Store) Create(ownerID, rawSGF string) (*Review, error) {
	parsed, err := ParseSGF(rawSGF)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	rev := &Review{
		ID:           "r-" + uuid.NewString(),
		OwnerID:      ownerID,
		CreatedAt:    now,
		BoardSize:    parsed.BoardSize,
		Komi:         parsed.Komi,
		Meta:         parsed.Meta,
		Setup:        parsed.Setup,
		Moves:        parsed.Moves,
		FinalStones:  parsed.FinalStones,
		RawSGF:       rawSGF,
		lastActiveAt: now,
		cache:        make(map[int]gtp.Analysis),
	}

	s.mu.Lock()
	s.reviews[rev.ID] = rev
	s.mu.Unlock()
	return rev, nil
}

// Get returns the review for id when owned by ownerID.
func (s *Store) Get(id, ownerID string) (*Review, error) {
	s.mu.RLock()
	rev, ok := s.reviews[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	if rev.OwnerID != ownerID {
		return nil, ErrForbidden
	}
	return rev, nil
}

// PositionAt replays the record through moveIndex moves and returns
// the resulting stones. Pure: identical inputs give identical output.
func (s *Store) PositionAt(id, ownerID string, moveIndex int) (board.Stones, error) {
	rev, err := s.Get(id, ownerID)
	if err != nil {
		return board.Stones{}, err
	}
	b, err := board.Replay(rev.BoardSize, rev.Setup, rev.Moves, moveIndex)
	if err != nil {
		return board.Stones{}, err
	}
	rev.touch()
	return b.Stones(), nil
}

// Analyze returns the engine's evaluation of the position after
// moveIndex moves. Results are cached per index; concurrent calls for
// the same index collapse to one engine round-trip. The shared
// adapter is created on the first call and reused afterwards.
func (s *Store) Analyze(ctx context.Context, id, ownerID string, moveIndex, maxVisits int) (gtp.Analysis, error) {
	rev, err := s.Get(id, ownerID)
	if err != nil {
		return gtp.Analysis{}, err
	}
	if moveIndex < 0 || moveIndex > len(rev.Moves) {
		return gtp.Analysis{}, fmt.Errorf("%w: %d of %d", board.ErrOutOfRange, moveIndex, len(rev.Moves))
	}

	rev.mu.Lock()
	if cached, ok := rev.cache[moveIndex]; ok {
		rev.lastActiveAt = time.Now()
		rev.mu.Unlock()
		return cached, nil
	}
	rev.mu.Unlock()

	result, err, _ := rev.flight.Do(strconv.Itoa(moveIndex), func() (any, error) {
		return s.analyzeOnce(ctx, rev, moveIndex, maxVisits)
	})
	if err != nil {
		return gtp.Analysis{}, err
	}
	rev.touch()
	return result.(gtp.Analysis), nil
}

// analyzeOnce performs the uncached engine round-trip. The review
// mutex is held for the whole command sequence: the shared adapter
// processes one analysis at a time.
func (s *Store) analyzeOnce(ctx context.Context, rev *Review, moveIndex, maxVisits int) (gtp.Analysis, error) {
	rev.mu.Lock()
	defer rev.mu.Unlock()

	// Re-check under the lock; a racing call may have filled it.
	if cached, ok := rev.cache[moveIndex]; ok {
		return cached, nil
	}
	if rev.closed {
		return gtp.Analysis{}, ErrNotFound
	}

	if rev.engine == nil {
		eng, err := s.newEngine()
		if err != nil {
			return gtp.Analysis{}, fmt.Errorf("failed to start analysis engine: %w", err)
		}
		rev.engine = eng
		log.Printf("[REVIEW] analysis engine attached to %s", rev.ID)
	}
	eng := rev.engine

	if err := s.replayToEngine(ctx, eng, rev, moveIndex); err != nil {
		return gtp.Analysis{}, err
	}

	if maxVisits > 0 {
		// Best effort, engines without the command fall back to their
		// configured budget.
		eng.Send(ctx, fmt.Sprintf("kata-set-param maxVisits %d", maxVisits))
	}
	reply, err := eng.Send(ctx, "kata-analyze 50")
	if err != nil {
		return gtp.Analysis{}, err
	}
	analysis, err := gtp.ParseAnalysis(reply)
	if err != nil {
		return gtp.Analysis{}, err
	}

	rev.cache[moveIndex] = analysis
	return analysis, nil
}

// replayToEngine resets the engine and plays setup stones plus the
// mainline prefix so its internal board matches the requested index.
func (s *Store) replayToEngine(ctx context.Context, eng gtp.Engine, rev *Review, moveIndex int) error {
	if _, err := eng.Send(ctx, fmt.Sprintf("boardsize %d", rev.BoardSize)); err != nil {
		return err
	}
	if _, err := eng.Send(ctx, fmt.Sprintf("komi %.1f", rev.Komi)); err != nil {
		return err
	}
	if _, err := eng.Send(ctx, "clear_board"); err != nil {
		return err
	}
	play := func(color board.Color, coord string) error {
		vertex := "pass"
		if coord != "" {
			var err error
			vertex, err = board.FormatGTP(coord, rev.BoardSize)
			if err != nil {
				return nil // skip malformed coordinates, matching Replay
			}
		}
		letter := "B"
		if color == board.White {
			letter = "W"
		}
		_, err := eng.Send(ctx, fmt.Sprintf("play %s %s", letter, vertex))
		return err
	}
	for _, c := range rev.Setup.Black {
		if err := play(board.Black, c); err != nil {
			return err
		}
	}
	for _, c := range rev.Setup.White {
		if err := play(board.White, c); err != nil {
			return err
		}
	}
	for _, mv := range rev.Moves[:moveIndex] {
		if err := play(mv.Color, mv.Coord); err != nil {
			return err
		}
	}
	return nil
}

// Close removes the review and terminates its adapter if one was ever
// attached. Closing an unknown id is not an error.
func (s *Store) Close(id, ownerID string) error {
	rev, err := s.Get(id, ownerID)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	s.remove(rev)
	return nil
}

func (s *Store) remove(rev *Review) {
	s.mu.Lock()
	delete(s.reviews, rev.ID)
	s.mu.Unlock()

	if eng := rev.detachEngine(); eng != nil {
		if err := eng.Quit(); err != nil {
			log.Printf("[REVIEW] engine quit failed for %s: %v", rev.ID, err)
		}
	}
}

// EvictExpired removes reviews idle longer than the TTL.
func (s *Store) EvictExpired(now time.Time) int {
	s.mu.RLock()
	var expired []*Review
	for _, rev := range s.reviews {
		if now.Sub(rev.LastActive()) > s.ttl {
			expired = append(expired, rev)
		}
	}
	s.mu.RUnlock()

	for _, rev := range expired {
		s.remove(rev)
		log.Printf("[SWEEP] evicted idle review %s owner=%s", rev.ID, rev.OwnerID)
	}
	return len(expired)
}

// Count returns the number of stored reviews.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.reviews)
}

// DrainAll terminates every attached adapter at server shutdown.
func (s *Store) DrainAll() {
	s.mu.Lock()
	remaining := make([]*Review, 0, len(s.reviews))
	for _, rev := range s.reviews {
		remaining = append(remaining, rev)
	}
	s.reviews = make(map[string]*Review)
	s.mu.Unlock()

	var g errgroup.Group
	for _, rev := range remaining {
		g.Go(func() error {
			if eng := rev.detachEngine(); eng != nil {
				return eng.Quit()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Printf("[REVIEW] drain: %v", err)
	}
}
