// Package bridge is the only way plugin code reaches the host.
//
// Every call presents the session Secret the supervisor issued at load
// time. The bridge compares it in constant time against the bound Grant;
// a mismatch, a revoked grant or an action missing from the capability
// table fails closed before anything on the host side runs.
//
// Sync capabilities return their result in the Reply. The one async
// capability, request, returns a key at once; its completion is emitted as a
// requestComplete event and handed to the Grant's DeliverFunc, which the
// supervisor uses to run the script callback on its serial queue.
//
// Revoking a grant cancels its in-flight requests. A completion that races
// with revocation is dropped.
package bridge
