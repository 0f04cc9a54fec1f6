// Package logging wraps log/slog for the daemon.
//
// One logger is built at startup from the logging section of config.yaml
// and handed down; packages that log take a small local Logger interface
// so they never import this package directly.
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Every record carries service and version attributes. Component loggers
// come from With:
//
//	log := logging.New(cfg.Logging, version)
//	log.With("component", "discovery").Info("window opened", "budget", budget)
//
// Never log broker credentials or the InfluxDB token.
package logging
