// Package ws streams runtime events to websocket clients.
//
// Hub is registered as the event channel's observer, so every event from the
// supervisor, the bridge and plugin code reaches every connected client in
// emission order. Event frames are the JSON encoding of events.Event:
//
//	{"id":"evt_...","name":"pong","body":null,"plugin_id":"kw","session_id":"sess_...","seq":7,"time":"..."}
//
// Clients may send:
//   - {"type":"ping","id":"1"}                               answered with {"type":"pong","id":"1"}
//   - {"type":"action","id":"2","action":"ping","data":{}}   answered with {"type":"action_result","id":"2","delivered":true}
//
// Control replies always carry a "type" field; event frames never do.
//
// Example Usage:
//
//	hub := ws.NewHub(supervisor, ws.Options{Logger: logger, Metrics: metrics})
//	router.GET("/events", hub.HandleConnection)
package ws
