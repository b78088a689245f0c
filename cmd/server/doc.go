// Package main is the entry point for the scriptbridge host.
//
// The host runs one user script at a time in an embedded JavaScript sandbox
// and exposes it over HTTP:
//
//	client → REST (/userapi, /scripts, /services) → Supervisor → sandbox
//	client ← WebSocket (/events)                  ← event channel
//
// Configuration:
//   - Environment variables (12-factor, see internal/config)
//   - CLI flags (override env vars)
//
// Usage:
//
//	# Serve installed scripts from a directory and reload on change
//	./server -port 8000 -scripts ./scripts -watch
//
//	# Install every .js under ./examples, then load one at startup
//	./server -seed ./examples -load kw_source
//
//	# Development mode (colored logs, debug level)
//	./server -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
