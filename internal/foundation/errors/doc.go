// Package errors provides foundational, type-safe error primitives used across the companion engine.
//
// This package contains classified error types and helpers for robust error handling,
// including a fluent builder API for constructing ClassifiedError values with context.
//
// Key features:
//   - ErrorCategory: Broad error classification (validation, persistence, scheduler, etc.)
//   - ErrorSeverity: Impact level (fatal, error, warning, info)
//   - RetryStrategy: Retry behavior (never, immediate, backoff, user)
//   - ClassifiedError: Structured error with category, severity, and context
//   - ErrorBuilder: Fluent API for creating classified errors
//   - CLI adapter for exit codes and error presentation
//
// Example usage:
//
//	err := errors.PersistenceError("write reminders").
//		WithContext("path", path).
//		Build()
package errors
