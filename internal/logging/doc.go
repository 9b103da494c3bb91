// Package logging provides structured logging for overlayctl using zap.
//
// Logging is silent by default so CLI output stays clean. Set the
// OVERLAYCTL_LOG_LEVEL environment variable to "debug", "info", "warn",
// or "error" to enable log output:
//
//	OVERLAYCTL_LOG_LEVEL=debug overlayctl list
//
// The package exposes a small set of level helpers (Info, Debug, Warn,
// Error) plus domain helpers for device API calls, sync flushes, and
// store refreshes. All helpers fall back to a nop logger when logging
// has not been initialized, so library code can log unconditionally.
package logging
