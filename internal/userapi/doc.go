// Package userapi runs one user-supplied script plugin at a time.
//
// The Supervisor is the only entry point. Load evaluates a plugin in a
// fresh goja sandbox bound to a freshly generated session secret;
// DispatchAction delivers host actions to the plugin's handler; Destroy
// tears everything down. All sandbox work runs on a private serial queue,
// so callers may use the Supervisor from any goroutine.
//
// Lifecycle per session:
//
//	Unloaded -> Loading -> Ready -> Destroyed
//	                   \-> Destroyed (evaluation failed)
//
// Loading a plugin while another is Loading or Ready destroys the old one
// first: its secret is revoked, its script code is interrupted and its
// undelivered events are dropped before the new sandbox is created.
//
// Plugins reach the host only through the capability bridge (package
// bridge). Events from the supervisor, the bridge and plugin code share one
// ordered stream (package events).
package userapi
