// Package server wires the plugin runtime into an HTTP server.
//
// NewServer builds, in order:
//  1. Logger, Prometheus registry and tracer
//  2. WebSocket hub and the event channel it observes
//  3. Host service registry (crypto, codec, cache, lyric, device, fetch)
//  4. Capability bridge and supervisor
//  5. Script store and the Gin router with its middleware stack
//
// Run serves until its context is cancelled, then shuts the HTTP server down
// and disconnects stream clients. With SCRIPT_WATCH=true it also watches the
// store directory and reloads the active plugin when its script changes.
// Close tears down the live session and drains the event channel.
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	srv, err := server.NewServer(cfg, nil)
//	if err != nil {
//	    return err
//	}
//	defer srv.Close()
//	return srv.Run(ctx)
package server
