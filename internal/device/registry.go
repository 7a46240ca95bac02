package device

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Logger is the minimal logging interface the registry needs.
// Satisfied by logging.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

// noopLogger discards all log output. Used when no logger is configured.
type noopLogger struct{}

func (noopLogger) Debug(msg string, args ...any) {}
func (noopLogger) Warn(msg string, args ...any)  {}

// Registry tracks devices sighted on the telemetry topics.
//
// It fronts the repository with an in-memory cache so the hot path
// (every inbound message) reads the previous state without a query.
// The cache is write-through: sightings hit the store first and the
// cache reflects the returned row.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Registry struct {
	mu    sync.RWMutex
	repo  Repository
	cache map[string]*Device
	log   Logger
}

// NewRegistry creates a registry over the given repository.
// Pass nil for log to disable registry logging.
func NewRegistry(repo Repository, log Logger) *Registry {
	if log == nil {
		log = noopLogger{}
	}
	return &Registry{
		repo:  repo,
		cache: make(map[string]*Device),
		log:   log,
	}
}

// Warm loads all known devices into the cache. Call once on startup.
func (r *Registry) Warm(ctx context.Context) error {
	devices, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("warming device cache: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range devices {
		r.cache[d.ID] = d
	}
	r.log.Debug("device cache warmed", "devices", len(devices))
	return nil
}

// RecordSighting records a telemetry message for a device, creating it
// on first sight. Returns the updated device.
func (r *Registry) RecordSighting(ctx context.Context, id, eventType string, payload map[string]any) (*Device, error) {
	d, err := r.repo.RecordSighting(ctx, id, eventType, payload, time.Now())
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	_, known := r.cache[d.ID]
	r.cache[d.ID] = d
	r.mu.Unlock()

	if !known {
		r.log.Debug("new device sighted", "device_id", d.ID, "event_type", eventType)
	}
	return d, nil
}

// Get returns a device from the cache, falling back to the store.
// Returns ErrDeviceNotFound if the ID has never been sighted.
func (r *Registry) Get(ctx context.Context, id string) (*Device, error) {
	r.mu.RLock()
	d, ok := r.cache[id]
	r.mu.RUnlock()
	if ok {
		return d, nil
	}

	d, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cache[id] = d
	r.mu.Unlock()
	return d, nil
}

// List returns all cached devices. Order is not defined.
func (r *Registry) List() []*Device {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Device, 0, len(r.cache))
	for _, d := range r.cache {
		out = append(out, d)
	}
	return out
}

// Count returns the number of cached devices.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cache)
}
