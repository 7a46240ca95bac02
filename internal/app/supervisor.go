package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pulsegrid/pulse-core/internal/infrastructure/logging"
)

// Supervision defaults.
const (
	// defaultRestartDelay is how long a crashed child waits before restart.
	defaultRestartDelay = 1 * time.Second

	// defaultMaxRestarts bounds restarts per child; 0 means unlimited.
	defaultMaxRestarts = 0
)

// ChildSpec describes a supervised long-running component.
//
// Run must honour context cancellation and return promptly when it
// fires. A nil error return or a cancelled context ends supervision for
// the child; any other return, or a panic, triggers a restart.
type ChildSpec struct {
	ID  string
	Run func(ctx context.Context) error
}

// ChildInfo is a point-in-time view of one supervised child.
type ChildInfo struct {
	ID       string `json:"id"`
	Alive    bool   `json:"alive"`
	Restarts int    `json:"restarts"`
	LastErr  string `json:"last_error,omitempty"`
}

// child is the supervisor's mutable record for one spec.
type child struct {
	spec     ChildSpec
	alive    bool
	restarts int
	lastErr  string
}

// Supervisor runs each child in its own goroutine with one-for-one
// restart semantics: a crashed or failed child is restarted alone after
// a delay, without disturbing its siblings. A restarted child re-enters
// its Run function from scratch, so actor children come back with fresh
// state.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Supervisor struct {
	log *logging.Logger

	mu       sync.Mutex
	children map[string]*child
	order    []string
	running  bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	restartDelay time.Duration
	maxRestarts  int
}

// NewSupervisor creates a supervisor over the given child specs.
// Child order is preserved for Info reporting.
func NewSupervisor(log *logging.Logger, specs ...ChildSpec) *Supervisor {
	s := &Supervisor{
		log:          log,
		children:     make(map[string]*child, len(specs)),
		restartDelay: defaultRestartDelay,
		maxRestarts:  defaultMaxRestarts,
	}
	for _, spec := range specs {
		s.children[spec.ID] = &child{spec: spec}
		s.order = append(s.order, spec.ID)
	}
	return s
}

// Start launches every child. Returns ErrAlreadyRunning on a second call.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.running = true

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for _, id := range s.order {
		c := s.children[id]
		c.alive = true
		s.wg.Add(1)
		go s.supervise(runCtx, c)
	}
	s.mu.Unlock()

	s.log.Info("supervisor started", "children", len(s.order))
	return nil
}

// Stop cancels all children and waits for them to exit.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
	s.log.Info("supervisor stopped")
}

// supervise runs one child until it exits cleanly, exceeds its restart
// budget, or the context is cancelled.
func (s *Supervisor) supervise(ctx context.Context, c *child) {
	defer s.wg.Done()

	for {
		err := s.runChild(ctx, c)

		if ctx.Err() != nil {
			s.setAlive(c, false, "")
			return
		}

		if err == nil {
			// Clean exit outside shutdown: treat as done, not a crash.
			s.setAlive(c, false, "")
			s.log.Info("child exited", "child_id", c.spec.ID)
			return
		}

		restarts := s.recordCrash(c, err)
		s.log.Warn("child crashed, restarting",
			"child_id", c.spec.ID,
			"restarts", restarts,
			"error", err,
		)

		if s.maxRestarts > 0 && restarts > s.maxRestarts {
			s.setAlive(c, false, err.Error())
			s.log.Error("child restart budget exhausted",
				"child_id", c.spec.ID,
				"restarts", restarts,
			)
			return
		}

		select {
		case <-ctx.Done():
			s.setAlive(c, false, "")
			return
		case <-time.After(s.restartDelay):
		}
	}
}

// runChild invokes the child's Run with panic recovery.
func (s *Supervisor) runChild(ctx context.Context, c *child) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("child %s panicked: %v", c.spec.ID, r)
		}
	}()
	return c.spec.Run(ctx)
}

// setAlive updates a child's liveness under the lock.
func (s *Supervisor) setAlive(c *child, alive bool, lastErr string) {
	s.mu.Lock()
	c.alive = alive
	if lastErr != "" {
		c.lastErr = lastErr
	}
	s.mu.Unlock()
}

// recordCrash bumps a child's restart count and returns the new value.
func (s *Supervisor) recordCrash(c *child, err error) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.restarts++
	c.lastErr = err.Error()
	return c.restarts
}

// Info reports the state of every child in registration order.
// Returns ErrNotRunning if the supervisor has not been started or has
// been stopped.
func (s *Supervisor) Info() ([]ChildInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil, ErrNotRunning
	}

	out := make([]ChildInfo, 0, len(s.order))
	for _, id := range s.order {
		c := s.children[id]
		out = append(out, ChildInfo{
			ID:       c.spec.ID,
			Alive:    c.alive,
			Restarts: c.restarts,
			LastErr:  c.lastErr,
		})
	}
	return out, nil
}
