// Package logging provides structured logging utilities for the warden gateway.
//
// This package centralizes logging patterns to ensure consistent, structured logging
// throughout the codebase using the standard library's slog package.
//
// # Key Features
//
//   - Structured logging with slog
//   - Identifier anonymization (session and user hashing)
//   - Consistent attribute naming across the codebase
//   - Adapter bridging slog into gorm's logger interface
//
// # Usage Patterns
//
// Create a logger with standard attributes:
//
//	logger := logging.WithTool(slog.Default(), "warden_list_emails")
//	logger.Info("tool executed",
//	    logging.Status("success"))
//
// Sanitize sensitive data before logging:
//
//	logger.Info("session loaded",
//	    logging.SessionHash(sessionID))
//
// # Security Considerations
//
// This package is designed with security in mind:
//   - Session and user identifiers are hashed to prevent leakage while allowing correlation
//   - Secrets are never logged directly
package logging
