package app

import (
	"context"
	"time"
)

// Health is the aggregated health report for the running shell.
type Health struct {
	Healthy   bool          `json:"healthy"`
	Children  []ChildHealth `json:"children"`
	Store     string        `json:"store"`
	Broker    string        `json:"broker"`
	Timestamp time.Time     `json:"timestamp"`
}

// ChildHealth is the per-child liveness entry.
type ChildHealth struct {
	ID    string `json:"id"`
	Alive bool   `json:"alive"`
}

// HealthCheck reports overall health: every supervised child alive plus
// reachable store and broker.
//
// Returns ErrNotRunning (wrapped from the supervisor) if the shell has
// not been started.
//
// Parameters:
//   - ctx: Context bounding the store and broker probes
//
// Returns:
//   - *Health: The aggregated report
//   - error: ErrNotRunning when the shell is not running
func (s *Shell) HealthCheck(ctx context.Context) (*Health, error) {
	infos, err := s.sup.Info()
	if err != nil {
		return nil, err
	}

	h := &Health{
		Healthy:   true,
		Children:  make([]ChildHealth, 0, len(infos)),
		Store:     "ok",
		Broker:    "ok",
		Timestamp: time.Now().UTC(),
	}

	for _, info := range infos {
		h.Children = append(h.Children, ChildHealth{ID: info.ID, Alive: info.Alive})
		if !info.Alive {
			h.Healthy = false
		}
	}

	if err := s.db.HealthCheck(ctx); err != nil {
		h.Store = err.Error()
		h.Healthy = false
	}
	if err := s.broker.HealthCheck(ctx); err != nil {
		h.Broker = err.Error()
		h.Healthy = false
	}

	return h, nil
}

// SupervisorInfo exposes the raw per-child supervision state.
// Returns ErrNotRunning when the shell is not running.
func (s *Shell) SupervisorInfo() ([]ChildInfo, error) {
	return s.sup.Info()
}
