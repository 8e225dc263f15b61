// Package logging provides a minimal logging interface and adapters for chessbridge.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that the engine worker, the orchestrator and the opening table use for
// observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter and StructuredLogger built on Go's structured logging
//   - ZerologAdapter for deployments that already standardize on zerolog
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	worker := engine.New("/usr/bin/stockfish", func(o *engine.Options) { o.Logger = logger })
//
// Arguments following the message are alternating key/value pairs.
package logging
