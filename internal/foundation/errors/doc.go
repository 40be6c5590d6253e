// Package errors provides foundational, type-safe error primitives used across sitebuilder.
//
// This package contains classified error types and helpers for robust error handling,
// including a fluent builder API for constructing ClassifiedError values with context.
//
// Key features:
//   - ErrorCategory: Broad error classification (validation, backend, storage, hosting, etc.)
//   - ErrorSeverity: Impact level (fatal, error, warning, info)
//   - RetryStrategy: Retry behavior (never, immediate, backoff, user)
//   - ClassifiedError: Structured error with category, severity, and context
//   - ErrorBuilder: Fluent API for creating classified errors
//   - HTTP and CLI adapters for error presentation
//
// Example usage:
//
//	err := errors.NewError(errors.CategoryStorage, "write failed").
//		WithRetry(errors.RetryBackoff).
//		WithContext("path", filePath).
//		Build()
package errors
