// Package observability provides logging and metrics support for the
// literature assistant.
//
// # Overview
//
// The observability package provides:
//
//   - Structured logging with zerolog
//   - Prometheus metrics for sessions, searches, synthesis, and delivery
//   - Context helpers for propagating observability data
//
// # Logging
//
// Create a logger from configuration:
//
//	cfg := observability.LoggingConfig{
//	    Level:  "info",
//	    Format: "json",
//	    Output: "stdout",
//	}
//
//	logger := observability.NewLogger(cfg)
//	logger.Info().Str("session_id", sessID).Msg("turn handled")
//
// Add session context to a logger:
//
//	logger = observability.WithSessionContext(logger, sessionID, state)
//
// # Metrics
//
// Create metrics once at startup and pass the instance to components:
//
//	metrics := observability.NewMetrics("litassist")
//	metrics.TurnsHandled.WithLabelValues("awaiting_query").Inc()
package observability
