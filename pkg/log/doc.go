// Package log provides structured ioctl tracing for the mode-setting core.
//
// This package defines the Logger interface and Event types for capturing
// every control command a client issues, together with session lifecycle
// changes and registry snapshots. It is separate from operational logging
// (slog): the trace is a complete machine-readable record for debugging and
// replay analysis.
//
// # Basic Usage
//
// Components accept a Logger:
//
//	// For development: log to console via slog
//	engine := protocol.NewEngine(mem, protocol.WithTraceLogger(log.NewSlogAdapter(slog.Default())))
//
//	// For production: write to a binary file
//	fl, _ := log.NewFileLogger("/var/log/kms/card0.klog")
//
//	// Both: use MultiLogger
//	trace := log.NewMultiLogger(log.NewSlogAdapter(slog.Default()), fl)
//
// # Event Types
//
//   - Ioctl: one per command, with its name, phase, errno and duration
//   - StateChange: session open/close and device bring-up
//   - Snapshot: a CBOR-encoded registry snapshot
//   - Error: failures outside a single command
//
// # File Format
//
// Trace files are a stream of CBOR-encoded events with the .klog extension.
// The kms-log CLI tool provides viewing, filtering and export.
package log
