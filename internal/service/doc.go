// Package service provides the registry of host services.
//
// Host services are the collaborators the runtime forwards to: crypto,
// cache accounting, the lyric state holder, device queries and codecs.
// The host application reaches every registered tool through the HTTP
// API; plugin sandboxes reach only the tools the capability bridge
// allowlists, and always with a non-nil types.Context naming the session.
//
// Tool IDs have the form "<service>.<tool>", e.g. "crypto.aesEncrypt".
//
// Example Usage:
//
//	registry := service.NewRegistry()
//	registry.Register(providers.NewCrypto(logger))
//	result, err := registry.Execute(ctx, "crypto.md5", params, nil)
package service
