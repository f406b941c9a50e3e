// Package logging provides the structured logging layer for claudebridge,
// built on Go's standard slog package.
//
// # Log Levels
//   - Debug: detailed information for debugging and development
//   - Info: general informational messages about application operation
//   - Warn: warning messages that indicate potential issues
//   - Error: error messages for failures and exceptional conditions
//
// # Structured Logging
//
// All log entries include a timestamp, the log level, a subsystem identifier
// for categorization, the formatted message and optional error information.
//
// # Usage
//
//	import "claudebridge/pkg/logging"
//
//	logging.Init(logging.LevelInfo, os.Stderr)
//
//	logging.Info("ConfigLoader", "Loaded configuration from %s", configPath)
//	logging.Warn("CredStore", "Credential file watch interrupted")
//	logging.Error("OAuth", err, "Token refresh failed")
//
// Init installs the handler as the slog default, so packages that log
// through log/slog directly (the oauth manager and the provider do, with
// structured attributes) share the same output and level filter.
//
// Token and credential values are never passed to this package; log sites
// describe credential state without quoting secrets.
package logging
