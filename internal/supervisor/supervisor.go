// Package supervisor owns the lifecycle of a desktop session: provisioning,
// launching the display server and tunnel, liveness polling, and the single
// cleanup path that every exit route funnels through.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// State is the supervisor's lifecycle phase. Transitions are monotonic;
// StateStopped is terminal.
type State int32

const (
	StateStarting State = iota
	StateRunning
	StateShuttingDown
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateShuttingDown:
		return "shutting-down"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// ErrServiceDied reports a supervised child that exited without being asked.
var ErrServiceDied = errors.New("supervised service exited unexpectedly")

// Service is one supervised child process.
type Service interface {
	Name() string
	Alive() bool
	Terminate() error
}

// SlotReleaser releases the display slot. Release must be safe to call when
// the owning process already died, and must be internally one-shot.
type SlotReleaser interface {
	Release(ctx context.Context)
}

// Supervisor runs the session start-to-finish. The launcher fields are
// collaborators so tests can substitute fakes; production wiring points them
// at the provision and session packages.
type Supervisor struct {
	Logger *slog.Logger
	Poll   time.Duration

	Provision    func(ctx context.Context) error
	StartDisplay func(ctx context.Context) (Service, SlotReleaser, error)
	StartTunnel  func(ctx context.Context) (Service, error)

	// OnReady runs once both services are up, before the poll loop starts.
	OnReady func()

	state   atomic.Int32
	cleanup sync.Once

	mu      sync.Mutex
	display Service
	slot    SlotReleaser
	tunnel  Service
}

// Run provisions the host, launches both services, then polls their liveness
// until the context is cancelled or a service dies. Cleanup runs exactly
// once on every exit path. The returned error is nil for a request-driven
// shutdown; anything non-nil maps to exit code 1.
func (s *Supervisor) Run(ctx context.Context) error {
	defer s.Shutdown(context.Background())

	s.advance(StateStarting)
	if err := s.Provision(ctx); err != nil {
		return s.startupResult(ctx, err)
	}
	if ctx.Err() != nil {
		s.Logger.Info("shutdown requested during startup")
		return nil
	}

	display, slot, err := s.StartDisplay(ctx)
	s.mu.Lock()
	s.display = display
	s.slot = slot
	s.mu.Unlock()
	if err != nil {
		return s.startupResult(ctx, err)
	}
	if ctx.Err() != nil {
		s.Logger.Info("shutdown requested during startup")
		return nil
	}

	tunnel, err := s.StartTunnel(ctx)
	s.mu.Lock()
	s.tunnel = tunnel
	s.mu.Unlock()
	if err != nil {
		return s.startupResult(ctx, err)
	}

	s.advance(StateRunning)
	if s.OnReady != nil {
		s.OnReady()
	}

	ticker := time.NewTicker(s.pollInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.Logger.Info("shutdown requested")
			return nil
		case <-ticker.C:
			if name := s.deadService(); name != "" {
				s.Logger.Error("service died", "service", name)
				return fmt.Errorf("%w: %s", ErrServiceDied, name)
			}
		}
	}
}

// Shutdown drives the cleanup sequence: terminate the display server,
// release its slot, terminate the tunnel. Every step is best-effort and
// isolated, so a failure in one never skips the rest. Safe to call from any
// goroutine; only the first call does anything.
func (s *Supervisor) Shutdown(ctx context.Context) {
	s.cleanup.Do(func() {
		s.advance(StateShuttingDown)

		s.mu.Lock()
		display, slot, tunnel := s.display, s.slot, s.tunnel
		s.mu.Unlock()

		if display != nil {
			if err := display.Terminate(); err != nil {
				s.Logger.Warn("terminate display server", "err", err)
			}
		}
		if slot != nil {
			slot.Release(ctx)
		} else {
			s.Logger.Info("no display slot to release")
		}
		if tunnel != nil {
			if err := tunnel.Terminate(); err != nil {
				s.Logger.Warn("terminate tunnel", "err", err)
			}
		}

		s.advance(StateStopped)
	})
}

// State returns the current lifecycle phase.
func (s *Supervisor) State() State {
	return State(s.state.Load())
}

// startupResult maps a failed startup step to Run's return value. A step
// that failed only because a termination signal cancelled the context is a
// clean request-driven shutdown, not an error; interrupting the slow
// provisioning phase must exit the same way as interrupting the poll loop.
func (s *Supervisor) startupResult(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		s.Logger.Info("shutdown requested during startup")
		return nil
	}
	return err
}

func (s *Supervisor) pollInterval() time.Duration {
	if s.Poll > 0 {
		return s.Poll
	}
	return time.Second
}

func (s *Supervisor) deadService() string {
	s.mu.Lock()
	display, tunnel := s.display, s.tunnel
	s.mu.Unlock()
	if display != nil && !display.Alive() {
		return display.Name()
	}
	if tunnel != nil && !tunnel.Alive() {
		return tunnel.Name()
	}
	return ""
}

// advance moves the state forward, never backward.
func (s *Supervisor) advance(next State) {
	for {
		cur := State(s.state.Load())
		if cur >= next {
			return
		}
		if s.state.CompareAndSwap(int32(cur), int32(next)) {
			s.Logger.Debug("state transition", "from", cur, "to", next)
			return
		}
	}
}
