package gtp

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// stubOpening is the fixed reply sequence for genmove in stub mode.
// Ordinary opening points so the stand-in looks like a real opponent.
var stubOpening = []string{
	"Q16", "D4", "Q4", "D16", "Q10", "C10", "R14", "F3", "C6", "O17",
	"K16", "K4", "R6", "C14", "E16", "P3", "R10", "C8", "N16", "K10",
}

// stubAnalysis is the fixed reply for analysis commands in stub mode.
const stubAnalysis = "info move Q16 visits 100 winrate 0.5000 scoreLead 0.0 pv Q16 D4 Q4 D16"

// Stub is an Engine that fabricates replies without a subprocess. It
// honors the same state machine and framing contract as Process so
// callers cannot tell which mode is active.
type Stub struct {
	mu       sync.Mutex
	state    State
	moveIdx  int
	quitOnce sync.Once

	// latency simulates a subprocess round-trip so callers exercise
	// the same "eventually replies" behavior in both modes.
	latency time.Duration
}

// NewStub creates a stub adapter in the Ready state.
func NewStub() *Stub {
	return &Stub{state: Ready, latency: 2 * time.Millisecond}
}

// State returns the current lifecycle state.
func (s *Stub) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Send implements Engine with deterministic canned replies.
func (s *Stub) Send(ctx context.Context, command string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case Ready:
		// proceed
	case Crashed:
		return "", fmt.Errorf("%w: engine crashed", ErrEngineUnavailable)
	default:
		return "", fmt.Errorf("%w: engine is %s", ErrEngineUnavailable, s.state)
	}
	s.state = Busy
	defer func() { s.state = Ready }()

	select {
	case <-time.After(s.latency):
	case <-ctx.Done():
		return "", ctx.Err()
	}

	fields := strings.Fields(strings.ToLower(command))
	if len(fields) == 0 {
		return "", fmt.Errorf("%w: ? empty command", ErrCommandFailed)
	}
	switch fields[0] {
	case "genmove":
		move := stubOpening[s.moveIdx%len(stubOpening)]
		s.moveIdx++
		return "= " + move + "\n", nil
	case "kata-genmove_analyze", "kata-analyze", "analyze":
		return "= " + stubAnalysis + "\n", nil
	case "play", "boardsize", "komi", "clear_board", "undo", "time_settings":
		return "=\n", nil
	case "name":
		return "= stub\n", nil
	case "version":
		return "= 0.0\n", nil
	case "quit":
		return "=\n", nil
	default:
		return "", fmt.Errorf("%w: ? unknown command %q", ErrCommandFailed, fields[0])
	}
}

// Quit implements Engine. Idempotent, no process to reap.
func (s *Stub) Quit() error {
	s.quitOnce.Do(func() {
		s.mu.Lock()
		s.state = Terminated
		s.mu.Unlock()
	})
	return nil
}
