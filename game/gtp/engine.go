package gtp

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

var (
	ErrEngineUnavailable = errors.New("engine unavailable")
	ErrCommandFailed     = errors.New("engine rejected command")
)

// State describes where an adapter is in its lifecycle.
type State string

const (
	Starting    State = "starting"
	Ready       State = "ready"
	Busy        State = "busy"
	Terminating State = "terminating"
	Terminated  State = "terminated"
	Crashed     State = "crashed"
)

const (
	// DefaultSendTimeout bounds a single command round-trip.
	DefaultSendTimeout = 30 * time.Second

	// quitWait is how long Quit waits for the process to exit on its
	// own before killing it.
	quitWait = 3 * time.Second
)

// Engine is the request/response contract shared by the spawned
// process and the stub.
type Engine interface {
	// Send submits one command and blocks until the reply is framed,
	// the context is done, or the round-trip timeout elapses. After a
	// timeout or I/O failure the adapter is Crashed and every further
	// Send fails fast with ErrEngineUnavailable.
	Send(ctx context.Context, command string) (string, error)

	// Quit asks the engine to exit, waits a bounded interval, and
	// force-terminates if it is still running. Idempotent.
	Quit() error

	// State returns the current lifecycle state.
	State() State
}

// Process is an Engine backed by a real engine subprocess.
type Process struct {
	mu       sync.Mutex // serializes round-trips, guards state
	state    State
	cmd      *exec.Cmd
	stdin    io.WriteCloser
	stdout   *bufio.Reader
	timeout  time.Duration
	quitOnce sync.Once
}

// Start spawns the engine binary and wires its standard I/O. The
// process inherits stderr so engine diagnostics land in the server log.
func Start(binPath string, args []string) (*Process, error) {
	cmd := exec.Command(binPath, args...)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open engine stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open engine stdout: %w", err)
	}

	p := &Process{
		state:   Starting,
		cmd:     cmd,
		stdin:   stdin,
		stdout:  bufio.NewReader(stdout),
		timeout: DefaultSendTimeout,
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to spawn engine: %w", err)
	}
	log.Printf("[GTP] engine spawned pid=%d bin=%s", cmd.Process.Pid, binPath)
	p.state = Ready
	return p, nil
}

// SetTimeout overrides the per-command round-trip timeout.
func (p *Process) SetTimeout(d time.Duration) {
	p.mu.Lock()
	p.timeout = d
	p.mu.Unlock()
}

// State returns the current lifecycle state.
func (p *Process) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Send implements Engine.
func (p *Process) Send(ctx context.Context, command string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.state {
	case Ready:
		// proceed
	case Crashed:
		return "", fmt.Errorf("%w: engine crashed", ErrEngineUnavailable)
	default:
		return "", fmt.Errorf("%w: engine is %s", ErrEngineUnavailable, p.state)
	}
	p.state = Busy
	defer func() {
		if p.state == Busy {
			p.state = Ready
		}
	}()

	if _, err := io.WriteString(p.stdin, command+"\n"); err != nil {
		p.state = Crashed
		return "", fmt.Errorf("%w: write failed: %v", ErrEngineUnavailable, err)
	}

	type result struct {
		reply string
		err   error
	}
	done := make(chan result, 1)
	go func() {
		reply, err := p.readReply()
		done <- result{reply, err}
	}()

	timer := time.NewTimer(p.timeout)
	defer timer.Stop()

	select {
	case res := <-done:
		if res.err != nil {
			p.state = Crashed
			return "", fmt.Errorf("%w: %v", ErrEngineUnavailable, res.err)
		}
		if strings.HasPrefix(strings.TrimSpace(res.reply), "?") {
			// A "?" reply is the engine refusing the command, not a
			// transport failure; the adapter stays usable.
			return "", fmt.Errorf("%w: %s", ErrCommandFailed, strings.TrimSpace(res.reply))
		}
		return res.reply, nil
	case <-timer.C:
		p.state = Crashed
		p.killLocked()
		return "", fmt.Errorf("%w: command %q timed out after %s", ErrEngineUnavailable, command, p.timeout)
	case <-ctx.Done():
		// The engine has no partial-command semantics: the reply is
		// still consumed so the stream stays framed, then discarded.
		select {
		case res := <-done:
			if res.err != nil {
				p.state = Crashed
			}
		case <-timer.C:
			p.state = Crashed
			p.killLocked()
		}
		return "", ctx.Err()
	}
}

// readReply reads lines until the blank line that terminates a GTP
// response. EOF before the terminator means the process died.
func (p *Process) readReply() (string, error) {
	var acc strings.Builder
	for {
		line, err := p.stdout.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("engine stream closed: %w", err)
		}
		if strings.TrimSpace(line) == "" {
			if acc.Len() == 0 {
				continue // skip leading blank lines
			}
			return acc.String(), nil
		}
		acc.WriteString(line)
	}
}

// Quit implements Engine. Safe to call from the sweeper and a closing
// request at the same time.
func (p *Process) Quit() error {
	p.quitOnce.Do(func() {
		p.mu.Lock()
		prev := p.state
		p.state = Terminating
		if prev != Crashed {
			// Best effort; a wedged engine is handled by the kill below.
			io.WriteString(p.stdin, "quit\n")
		}
		p.mu.Unlock()

		exited := make(chan error, 1)
		go func() { exited <- p.cmd.Wait() }()

		select {
		case <-exited:
			log.Printf("[GTP] engine pid=%d exited", p.cmd.Process.Pid)
		case <-time.After(quitWait):
			p.mu.Lock()
			p.killLocked()
			p.mu.Unlock()
			<-exited // reap
			log.Printf("[GTP] engine pid=%d killed after %s", p.cmd.Process.Pid, quitWait)
		}

		p.mu.Lock()
		p.state = Terminated
		p.mu.Unlock()
	})
	return nil
}

func (p *Process) killLocked() {
	if p.cmd.Process != nil {
		p.cmd.Process.Kill()
	}
}

// ParseMove extracts the vertex from a GTP reply such as "= Q16".
func ParseMove(reply string) string {
	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		return strings.TrimSpace(strings.TrimPrefix(line, "="))
	}
	return ""
}
