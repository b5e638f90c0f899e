package service

import (
	"context"
	"log"
	"time"

	"github.com/baduklab/goban-server/game/review"
	"github.com/baduklab/goban-server/game/session"
)

// Sweeper periodically reclaims idle games and reviews. Eviction of
// one entry never blocks the rest of a sweep; store teardown errors
// are logged inside the stores themselves.
type Sweeper struct {
	games    *session.Store
	reviews  *review.Store
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
}

// NewSweeper creates a sweeper over both stores.
func NewSweeper(games *session.Store, reviews *review.Store, interval time.Duration) *Sweeper {
	return &Sweeper{
		games:    games,
		reviews:  reviews,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the sweep loop. It runs until Stop is called or the
// context is cancelled.
func (sw *Sweeper) Start(ctx context.Context) {
	go func() {
		defer close(sw.done)
		ticker := time.NewTicker(sw.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				sw.Sweep(time.Now())
			case <-sw.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Sweep runs one reclamation pass and returns the eviction count.
func (sw *Sweeper) Sweep(now time.Time) int {
	evicted := sw.games.EvictExpired(now) + sw.reviews.EvictExpired(now)
	if evicted > 0 {
		log.Printf("[SWEEP] reclaimed %d idle sessions", evicted)
	}
	return evicted
}

// Stop ends the loop and waits for it to exit.
func (sw *Sweeper) Stop() {
	select {
	case <-sw.stop:
	default:
		close(sw.stop)
	}
	<-sw.done
}
