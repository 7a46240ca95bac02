// Package mqtt provides MQTT client connectivity for PulseGrid Core.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Stub Mode
//
// The ingest harness does not require a live broker: with cfg.Stub=true
// (the default configuration) Connect returns a fixed success, publishes
// are discarded, and subscriptions are driven in-process via Inject.
// Real connectivity is available behind the same API when stub mode is
// disabled.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllDeviceTelemetry(), 1,
//	    func(topic string, payload []byte) error {
//	        return shell.ProcessMessage(ctx, mqtt.DeviceIDFromTopic(topic), string(payload))
//	    })
package mqtt
