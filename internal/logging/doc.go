// Package logging provides structured logging for wifiprov.
//
// This package wraps a global zap logger with convenience functions for the
// logging patterns used by the store, the coordinator and the portal.
//
// # Log Levels
//
//   - Debug: storage round trips, handler registration, skipped reconnects
//   - Info: state transitions, portal requests, saves
//   - Warn: swallowed storage failures, failed connection attempts
//   - Error: failures reported back to the caller
//
// # Configuration
//
// Logging is silent unless a level is given explicitly or through the
// WIFIPROV_LOG_LEVEL environment variable:
//
//	if err := logging.Initialize("debug"); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// # Domain Helpers
//
//	logging.LogStateChange("connecting", "connected")
//	logging.LogStorage("save", "/data/config.json", 3, err)
//	logging.LogPortalRequest(r.RemoteAddr, r.Method, r.URL.Path, http.StatusOK)
//
// # Thread Safety
//
// All logging functions are safe for concurrent use once Initialize has
// returned. Initialize and SetLogger themselves are meant for startup code.
package logging
