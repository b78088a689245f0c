// Package fetch performs outbound HTTP on behalf of plugins and the host.
//
// Requests go through resty over a retryablehttp transport, wait on a shared
// token bucket, and run inside a circuit breaker keyed by upstream host, so
// one failing origin does not starve the others. Only http and https URLs
// are accepted.
//
// Response bodies are decoded by content: JSON becomes a value, text a
// string, and anything else a base64 string with Encoding set to "base64".
package fetch
