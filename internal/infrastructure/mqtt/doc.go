// Package mqtt connects the rules engine to an MQTT broker.
//
// The broker is the engine's only wire: producers publish state facts,
// command operations go out to actuators, and chain events and
// notifications are published for observers.
//
//	producers ──facts──▶ broker ──▶ ingest ──▶ scheduler
//	scheduler ──ops────▶ broker ──▶ actuators
//	notifier  ──events─▶ broker ──▶ observers
//
// The client auto-reconnects with backoff, restores subscriptions after a
// reconnect and keeps a retained online/offline status (with LWT) on
// grayrules/system/status. Handlers run with panic recovery.
//
// Usage:
//
//	client, err := mqtt.Connect(ctx, cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.PublishJSON(mqtt.Topics{}.Command("press"), map[string]any{"key": "1"})
//
// TLS (cfg.Broker.TLS) should be enabled outside local development.
package mqtt
