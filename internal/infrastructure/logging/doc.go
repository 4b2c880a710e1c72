// Package logging provides structured logging for the hemma hub.
//
// This package wraps Go's standard log/slog package so every component
// logs with the same fields and format.
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
//	logger := logging.New(cfg.Logging, version)
//	logger.Info("listening", "address", cfg.LocalStream.Address())
//
// # Security
//
// Never log private or signing keys. Public keys are logged as short
// fingerprints only.
package logging
