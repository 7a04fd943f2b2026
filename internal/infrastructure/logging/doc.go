// Package logging provides structured logging for the autoscan service.
//
// It wraps Go's standard log/slog package so that every component logs
// through the same handler with the same default fields.
//
// # Features
//
//   - JSON output for production, text output for development
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//   - A FATAL level for failures an operator must act on; logging at this
//     level never terminates the process
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("scanner attached", "device_id", 7)
//	logger.Fatal("inventory update failed", "error", err)
//
// Never log SSH passwords, key passphrases or MQTT credentials.
package logging
