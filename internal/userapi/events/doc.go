// Package events delivers named events from the script runtime to the host.
//
// Every component publishes through an Emitter: the Supervisor and the
// capability bridge hold one per plugin session, and the Channel's Host
// emitter carries runtime-level events such as load failures. All emitters
// feed one FIFO queue drained by a single goroutine, so events from one
// source reach the Observer in the order they were emitted.
//
// Emit never blocks on delivery. Revoking a session's emitter drops its
// undelivered events and guarantees that nothing from that session reaches
// the Observer after Revoke returns.
package events
