// Package logging provides structured logging utilities for the dossier application.
//
// This package centralizes logging patterns to ensure consistent, structured logging
// throughout the codebase using the standard library's slog package.
//
// # Key Features
//
//   - Structured logging with slog
//   - PII sanitization (sender anonymization)
//   - Consistent attribute naming across the codebase
//
// # Usage Patterns
//
// Create a logger with standard attributes:
//
//	logger := logging.WithOperation(slog.Default(), "gmail.fetch")
//	logger.Info("fetched messages",
//	    logging.Label("morning-dossier"),
//	    logging.Count(7))
//
// Sanitize sensitive data before logging:
//
//	logger.Info("normalized entry",
//	    logging.Sender(entry.Sender))
//
// # Security Considerations
//
// Sender addresses are hashed to prevent PII leakage while allowing correlation;
// OAuth tokens are never logged.
package logging
