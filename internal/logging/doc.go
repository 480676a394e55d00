// Package logging provides structured logging with per-module log level configuration.
//
// # Overview
//
// Loggers are plain *slog.Logger values tagged with a "module" attribute.
// Output is routed automatically:
//   - stdout when a terminal, pipe, socket or file is attached
//   - the systemd journal when journald is reachable
//   - both when both are available
//
// # Usage
//
// Initialize once at startup:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",
//		Format: "text",
//		Modules: map[string]string{
//			"session": "debug",
//			"server":  "warn",
//		},
//	})
//
// Get a logger for your module and add per-connection context:
//
//	logger := logging.GetLogger("session").With("session_id", id)
//	logger.Info("Client connected", "remote", addr)
//
// Levels can be changed later without restarting, e.g. from a config watcher:
//
//	logging.Reconfigure(newConfig)
//
// # Viewing Logs
//
//	journalctl -t phonecam -f
//	journalctl -t phonecam MODULE=session
//	journalctl -t phonecam SESSION_ID=3f0c...
//
// # Configuration
//
//	[logging]
//	level = "info"
//	format = "text"
//
//	[logging.modules]
//	session = "debug"
package logging
