// Package http provides the gin handlers of the host API.
//
// Endpoints:
//   - Liveness: / and /health, Prometheus exposition at /metrics
//   - Plugin runtime: POST /userapi/load, POST /userapi/actions,
//     DELETE /userapi, GET /userapi/state
//   - Host services: GET /services, POST /services/execute
//   - Installed scripts: GET/POST /scripts, GET/DELETE /scripts/:id,
//     POST /scripts/:id/load
//
// Status codes follow the runtime's errors: a failed load is 422, an action
// sent with nothing Ready is 409, and destroy is always 204.
//
// Example Usage:
//
//	handlers := http.NewHandlers(http.Deps{Runtime: sup, Services: registry, Logger: logger})
//	handlers.Register(router)
package http
