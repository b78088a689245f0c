// Package logging provides structured logging using uber/zap.
//
// Two modes are supported:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Components take a *Logger and derive named children, so every line
// emitted by the script runtime carries its component name and, where a
// plugin session is involved, the plugin and session ids from Plugin.
// Session secrets are never attached to log fields.
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	log := logger.Named("supervisor").With(logging.Plugin("p1", "sess_01J...")...)
//	log.Info("Plugin ready", zap.Duration("eval", elapsed))
package logging
