// Package logging provides structured logging on top of log/slog.
//
// Every entry carries service and version attributes. Engine packages
// declare their own narrow Logger interfaces; *Logger satisfies all of them.
//
// Configuration:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr, discard
//
// Usage:
//
//	logger := logging.New(cfg.Logging, version)
//	sched := scheduler.New(pool, factory, scheduler.WithLogger(logger.Component("scheduler")))
//
// Never log MQTT credentials.
package logging
