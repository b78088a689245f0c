// Package config provides 12-factor configuration management for the
// script bridge host.
//
// Configuration is loaded from environment variables with sensible defaults.
// CLI flags can override environment variables for development flexibility.
//
// Configuration Sections:
//   - Server: HTTP server settings (port, host)
//   - Runtime: Script evaluation and action timeouts, queue depth, stack limit
//   - Fetch: HTTP client used for plugin network requests
//   - Cache: Directories accounted and cleared by the cache service
//   - Device: Values reported by device queries
//   - Store: Installed script directory and hot reload
//   - Logging: Log level and output format
//   - RateLimit: Per-IP rate limiting configuration
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("Server running on %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//
// Environment Variables:
//   - PORT, HOST
//   - USERAPI_EVAL_TIMEOUT, USERAPI_ACTION_TIMEOUT, USERAPI_QUEUE_SIZE,
//     USERAPI_MAX_CALL_STACK, USERAPI_CONSOLE
//   - FETCH_TIMEOUT, FETCH_RETRIES, FETCH_RPS, FETCH_USER_AGENT
//   - CACHE_DIRS (comma separated)
//   - DEVICE_NAME, WINDOW_WIDTH, WINDOW_HEIGHT, NOTIFICATIONS_ENABLED
//   - SCRIPT_DIR, SCRIPT_WATCH
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
package config
