// Package config provides configuration loading for PulseGrid Core.
//
// Configuration is loaded from a YAML file with environment variable
// overrides, then validated. Defaults are chosen so the harness runs
// without a config file at all: MQTT in stub mode, InfluxDB export
// disabled, retry/breaker settings at their documented defaults
// (3 attempts, 1000ms backoff base, threshold 5, 30s cooldown).
//
// # Usage
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	handler := resilience.New(cfg.Resilience, eventLog, bus)
package config
