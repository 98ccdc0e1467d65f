// Package logging provides structured logging with correlation ID support.
//
// Logger instances are constructed, not fetched: NewLogger(component)
// builds one at boot, cmd/server and cmd/agent call Configure once with the
// loaded LoggingConfig, and the same *Logger reference is passed to every
// component that needs to log. There is no global logger — hot-reloading
// the logging section calls Configure again on that one instance, which
// every holder of the reference observes immediately.
//
// Field Conventions:
//   - "component": Component name (e.g., "stream", "recording")
//   - "correlation_id": Request correlation ID for tracing
//
// Test Categories: Unit
package logging
