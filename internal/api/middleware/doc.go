// Package middleware provides the gin middleware stack of the host API:
// CORS (gin-contrib/cors) and per-IP or global rate limiting (x/time/rate).
package middleware
