package eventlog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/pulsegrid/pulse-core/internal/infrastructure/config"
	"github.com/pulsegrid/pulse-core/internal/infrastructure/logging"
	"github.com/pulsegrid/pulse-core/internal/telemetry"
)

// systemTag is attached to every record emitted by the event log.
const systemTag = "pulsegrid"

// subscriberID is the bus attachment id for the re-logging subscription.
const subscriberID = "eventlog"

// record is one queued log entry. Enrichment fields are captured at
// enqueue time so records reflect the caller's moment, not the worker's.
type record struct {
	level slog.Level
	msg   string
	meta  map[string]any
	seq   uint64
	ts    time.Time
}

// Log is the structured event log actor.
//
// Log calls are asynchronous messages into a single worker goroutine:
// callers enqueue a record and return immediately, never blocking on
// log I/O. When the mailbox is full the record is dropped and counted
// rather than stalling the caller. Ordering of records from one caller
// is preserved (FIFO mailbox); interleaving across callers is not
// guaranteed beyond arrival order.
//
// Each record is enriched with the system tag, node identity, instance
// id and a monotonically increasing sequence number scoped to this
// instance. Typed event helpers additionally emit monitoring signals on
// the telemetry bus, and the actor subscribes to the standard signal set
// and re-logs each signal as an info record.
type Log struct {
	logger *logging.Logger
	bus    *telemetry.Bus

	records chan record

	seq     atomic.Uint64
	total   atomic.Uint64
	dropped atomic.Uint64

	node       string
	instanceID string
	startTime  time.Time

	summaryInterval time.Duration
}

// New creates an event log actor. Call Run to start processing.
//
// Parameters:
//   - cfg: Event log configuration (mailbox size, summary interval)
//   - logger: The underlying structured logger
//   - bus: The monitoring signal bus
func New(cfg config.EventLogConfig, logger *logging.Logger, bus *telemetry.Bus) *Log {
	node, err := os.Hostname()
	if err != nil {
		node = "unknown"
	}

	bufferSize := cfg.BufferSize
	if bufferSize < 1 {
		bufferSize = 1024
	}
	interval := cfg.SummaryInterval()
	if interval <= 0 {
		interval = 60 * time.Second
	}

	return &Log{
		logger:          logger,
		bus:             bus,
		records:         make(chan record, bufferSize),
		node:            node,
		instanceID:      fmt.Sprintf("%x", time.Now().UnixNano()),
		startTime:       time.Now(),
		summaryInterval: interval,
	}
}

// Run processes queued records until the context is cancelled.
//
// It owns all log emission: records are dequeued one at a time and
// written through the underlying logger. A periodic ticker emits an
// uptime/throughput summary. The re-logging subscription to the signal
// bus is attached for the lifetime of the run.
//
// Run is intended to be supervised; it returns nil on context
// cancellation.
func (l *Log) Run(ctx context.Context) error {
	l.bus.Attach(subscriberID, []string{
		telemetry.SignalApplicationStart,
		telemetry.SignalApplicationStop,
		telemetry.SignalDeviceEvent,
		telemetry.SignalMQTTEvent,
		telemetry.SignalProcessingComplete,
		telemetry.SignalErrorHandled,
		telemetry.SignalCircuitTripped,
	}, l.handleSignal)
	defer l.bus.Detach(subscriberID)

	ticker := time.NewTicker(l.summaryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.drain()
			return nil
		case rec := <-l.records:
			l.write(rec)
		case <-ticker.C:
			l.logSummary()
		}
	}
}

// drain writes any records still queued at shutdown.
func (l *Log) drain() {
	for {
		select {
		case rec := <-l.records:
			l.write(rec)
		default:
			return
		}
	}
}

// write emits one record through the underlying logger.
func (l *Log) write(rec record) {
	l.logger.Log(context.Background(), rec.level, rec.msg,
		"system", systemTag,
		"node", l.node,
		"instance", l.instanceID,
		"seq", rec.seq,
		"time_utc", rec.ts.UTC().Format(time.RFC3339Nano),
		"meta", rec.meta,
	)
}

// enqueue queues a record for the worker. Never blocks: when the mailbox
// is full the record is dropped and counted. Every call consumes a
// sequence number, dropped or not.
func (l *Log) enqueue(level slog.Level, msg string, meta map[string]any) {
	if meta == nil {
		meta = map[string]any{}
	}

	rec := record{
		level: level,
		msg:   msg,
		meta:  meta,
		seq:   l.seq.Add(1),
		ts:    time.Now(),
	}

	select {
	case l.records <- rec:
		l.total.Add(1)
	default:
		l.dropped.Add(1)
	}
}

// Info logs an info record. Non-blocking; always succeeds.
// Metadata may be nil.
func (l *Log) Info(msg string, meta map[string]any) {
	l.enqueue(slog.LevelInfo, msg, meta)
}

// Warning logs a warning record. Non-blocking; always succeeds.
// Metadata may be nil.
func (l *Log) Warning(msg string, meta map[string]any) {
	l.enqueue(slog.LevelWarn, msg, meta)
}

// Error logs an error record. Non-blocking; always succeeds.
// Metadata may be nil.
func (l *Log) Error(msg string, meta map[string]any) {
	l.enqueue(slog.LevelError, msg, meta)
}

// handleSignal re-logs a bus signal as an info record.
func (l *Log) handleSignal(name string, measurements map[string]float64, attributes map[string]any) {
	l.Info("signal observed", map[string]any{
		"signal":       name,
		"measurements": measurements,
		"attributes":   attributes,
	})
}

// logSummary emits the periodic uptime/throughput summary.
func (l *Log) logSummary() {
	uptime := time.Since(l.startTime).Seconds()
	if uptime < 1 {
		uptime = 1
	}
	total := l.total.Load()
	rate := float64(total) / uptime

	l.Info("event log summary", map[string]any{
		"total_logs":      total,
		"dropped":         l.dropped.Load(),
		"uptime_seconds":  uptime,
		"logs_per_second": rate,
	})

	l.bus.Emit(telemetry.SignalLogSummary,
		map[string]float64{
			"total_logs":      float64(total),
			"uptime_seconds":  uptime,
			"logs_per_second": rate,
		},
		map[string]any{
			"node":     l.node,
			"instance": l.instanceID,
		},
	)
}

// TotalLogs returns the number of records accepted so far.
func (l *Log) TotalLogs() uint64 {
	return l.total.Load()
}

// Dropped returns the number of records dropped due to a full mailbox.
func (l *Log) Dropped() uint64 {
	return l.dropped.Load()
}

// Sequence returns the last sequence number handed out.
func (l *Log) Sequence() uint64 {
	return l.seq.Load()
}
