// Package logging provides structured logging for the bridge.
//
// It wraps log/slog so every component logs with the same shape:
// JSON in production, text for development, and default service and
// version fields on every entry.
//
// Configuration:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Never log controller or MQTT passwords; config types redact them in String().
package logging
