package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/pulsegrid/pulse-core/internal/decoder"
	"github.com/pulsegrid/pulse-core/internal/device"
	"github.com/pulsegrid/pulse-core/internal/eventlog"
	"github.com/pulsegrid/pulse-core/internal/infrastructure/config"
	"github.com/pulsegrid/pulse-core/internal/infrastructure/database"
	"github.com/pulsegrid/pulse-core/internal/infrastructure/influxdb"
	"github.com/pulsegrid/pulse-core/internal/infrastructure/logging"
	"github.com/pulsegrid/pulse-core/internal/infrastructure/mqtt"
	"github.com/pulsegrid/pulse-core/internal/resilience"
	"github.com/pulsegrid/pulse-core/internal/telemetry"
)

// Supervised child IDs.
const (
	childEventLog   = "eventlog"
	childResilience = "resilience"
)

// Shell is the application shell: it owns construction, wiring,
// supervision and shutdown of every component.
//
// The message path is ProcessMessage: decode the payload, record the
// device sighting, then log and signal the event. Decode and persistence
// failures are routed through the resilience handler rather than handled
// locally.
type Shell struct {
	cfg    *config.Config
	logger *logging.Logger

	bus      *telemetry.Bus
	events   *eventlog.Log
	dec      *decoder.Decoder
	handler  *resilience.Handler
	registry *device.Registry

	db       *database.DB
	broker   *mqtt.Client
	influx   *influxdb.Client
	exporter *telemetry.Exporter

	sup       *Supervisor
	startTime time.Time
	running   bool
}

// New constructs and wires the full component graph.
//
// The SQLite store is opened and migrated, the device cache warmed, and
// the MQTT client connected (a stub session by default). InfluxDB export
// is wired only when enabled in configuration. Nothing is processing yet;
// call Start.
//
// Parameters:
//   - cfg: Validated application configuration
//   - logger: The underlying structured logger
//
// Returns:
//   - *Shell: Wired but not yet started shell
//   - error: If any component fails to initialise
func New(cfg *config.Config, logger *logging.Logger) (*Shell, error) {
	bus := telemetry.NewBus()
	bus.SetLogger(logger)

	events := eventlog.New(cfg.EventLog, logger, bus)
	handler := resilience.New(cfg.Resilience, events, bus)

	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening device store: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.Migrate(ctx); err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("migrating device store: %w", err)
	}

	registry := device.NewRegistry(device.NewSQLiteRepository(db), logger)
	if err := registry.Warm(ctx); err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, err
	}

	broker, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("connecting mqtt: %w", err)
	}
	broker.SetLogger(logger)

	s := &Shell{
		cfg:      cfg,
		logger:   logger,
		bus:      bus,
		events:   events,
		dec:      decoder.New(events),
		handler:  handler,
		registry: registry,
		db:       db,
		broker:   broker,
	}

	if cfg.InfluxDB.Enabled {
		influx, err := influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			// Export is an observability extra; run without it.
			logger.Warn("influxdb export unavailable", "error", err)
		} else {
			node, herr := os.Hostname()
			if herr != nil {
				node = "unknown"
			}
			s.influx = influx
			s.exporter = telemetry.NewExporter(bus, influx, node)
		}
	}

	s.sup = NewSupervisor(logger,
		ChildSpec{ID: childEventLog, Run: events.Run},
		ChildSpec{ID: childResilience, Run: handler.Run},
	)

	return s, nil
}

// Start launches supervision, attaches the signal exporter, subscribes
// to the telemetry topics and announces the application on the bus.
func (s *Shell) Start(ctx context.Context) error {
	if s.running {
		return ErrAlreadyRunning
	}

	if err := s.sup.Start(ctx); err != nil {
		return err
	}
	s.running = true
	s.startTime = time.Now()

	if s.exporter != nil {
		s.exporter.Start()
	}

	topic := mqtt.Topics{}.AllDeviceTelemetry()
	if err := s.broker.Subscribe(topic, byte(s.cfg.MQTT.QoS), s.handleInbound); err != nil {
		return fmt.Errorf("subscribing to %s: %w", topic, err)
	}

	s.events.LogMQTTEvent("subscribed", map[string]any{
		"host":      s.cfg.MQTT.Broker.Host,
		"port":      s.cfg.MQTT.Broker.Port,
		"client_id": s.cfg.MQTT.Broker.ClientID,
		"stub":      s.broker.IsStub(),
	}, map[string]any{"topic": topic})

	s.bus.Emit(telemetry.SignalApplicationStart,
		map[string]float64{"children": float64(len(s.sup.order))},
		map[string]any{
			"site_id":   s.cfg.Site.ID,
			"site_name": s.cfg.Site.Name,
		},
	)

	s.logger.Info("pulsegrid core started",
		"site_id", s.cfg.Site.ID,
		"devices_known", s.registry.Count(),
		"mqtt_stub", s.broker.IsStub(),
	)
	return nil
}

// Stop announces shutdown, stops supervision and releases all resources.
// Safe to call once after a successful Start.
func (s *Shell) Stop() {
	if !s.running {
		return
	}
	s.running = false

	s.bus.Emit(telemetry.SignalApplicationStop,
		map[string]float64{"uptime_seconds": time.Since(s.startTime).Seconds()},
		map[string]any{"site_id": s.cfg.Site.ID},
	)

	s.sup.Stop()

	if s.exporter != nil {
		s.exporter.Stop()
	}
	if s.influx != nil {
		s.influx.Flush()
		s.influx.Close() //nolint:errcheck // Shutdown path
	}
	if err := s.broker.Close(); err != nil {
		s.logger.Warn("mqtt close failed", "error", err)
	}
	if err := s.db.Close(); err != nil {
		s.logger.Warn("device store close failed", "error", err)
	}

	s.logger.Info("pulsegrid core stopped")
}

// handleInbound adapts an MQTT message to the processing path.
func (s *Shell) handleInbound(topic string, payload []byte) error {
	deviceID := mqtt.DeviceIDFromTopic(topic)
	if deviceID == "" {
		s.events.Warning("message on unexpected topic", map[string]any{"topic": topic})
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.ProcessMessage(ctx, deviceID, string(payload))
}

// ProcessMessage runs one telemetry payload through the full path:
// decode, record the device sighting, log the device event and the
// processing completion.
//
// A decode failure has already been logged by the decoder; it is
// additionally recorded with the resilience handler (no retry, malformed
// input does not become well-formed) and returned. Persistence failures
// are retried under the configured retry policy.
//
// Parameters:
//   - ctx: Context for the persistence write
//   - deviceID: The reporting device
//   - payload: Raw JSON payload text
//
// Returns:
//   - error: Decode or persistence failure; nil on success
func (s *Shell) ProcessMessage(ctx context.Context, deviceID, payload string) error {
	start := time.Now()

	decoded, err := s.dec.Parse(payload)
	if err != nil {
		_, _ = s.handler.HandleError(err, map[string]any{
			"operation": "decode",
			"device_id": deviceID,
		}, nil)
		s.events.LogProcessingEvent(deviceID, elapsedMs(start), "decode_failed")
		return err
	}

	eventType := "telemetry"
	if et, ok := decoded["event_type"].(string); ok && et != "" {
		eventType = et
	}

	_, err = s.handler.WithRetry(func() (any, error) {
		return s.registry.RecordSighting(ctx, deviceID, eventType, decoded)
	}, map[string]any{
		"operation": "record_sighting",
		"device_id": deviceID,
	}, s.cfg.Resilience.RetryAttempts)
	if err != nil {
		s.events.LogProcessingEvent(deviceID, elapsedMs(start), "store_failed")
		return fmt.Errorf("recording sighting for %s: %w", deviceID, err)
	}

	s.events.LogDeviceEvent(deviceID, eventType, decoded)
	s.events.LogProcessingEvent(deviceID, elapsedMs(start), "ok")
	return nil
}

// InjectMessage delivers a payload as if it arrived on the device's
// telemetry topic. Only valid in MQTT stub mode; used by tooling and
// tests to drive the pipeline without a broker.
func (s *Shell) InjectMessage(deviceID, payload string) error {
	return s.broker.Inject(mqtt.Topics{}.DeviceTelemetry(deviceID), []byte(payload))
}

// Resilience exposes the error-handling core for callers that route
// their own failures through it.
func (s *Shell) Resilience() *resilience.Handler {
	return s.handler
}

// Devices exposes the device registry.
func (s *Shell) Devices() *device.Registry {
	return s.registry
}

// EventLog exposes the structured event log.
func (s *Shell) EventLog() *eventlog.Log {
	return s.events
}

// Bus exposes the monitoring signal bus.
func (s *Shell) Bus() *telemetry.Bus {
	return s.bus
}

// elapsedMs returns wall-clock milliseconds since start.
func elapsedMs(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}
