package errors

// ErrorBuilder provides a fluent API for creating ClassifiedError instances.
// This makes error creation consistent and discoverable throughout the codebase.
type ErrorBuilder struct {
	category ErrorCategory
	severity ErrorSeverity
	retry    RetryStrategy
	message  string
	cause    error
	context  ErrorContext
}

// NewError creates a new ErrorBuilder with the specified category and message.
func NewError(category ErrorCategory, message string) *ErrorBuilder {
	return &ErrorBuilder{
		category: category,
		severity: SeverityError, // Default severity
		retry:    RetryNever,    // Default to no retry
		message:  message,
		context:  make(ErrorContext),
	}
}

// WrapError creates a new ErrorBuilder that wraps an existing error.
func WrapError(err error, category ErrorCategory, message string) *ErrorBuilder {
	return &ErrorBuilder{
		category: category,
		severity: SeverityError,
		retry:    RetryNever,
		message:  message,
		cause:    err,
		context:  make(ErrorContext),
	}
}

// WithSeverity sets the error severity.
func (b *ErrorBuilder) WithSeverity(severity ErrorSeverity) *ErrorBuilder {
	b.severity = severity
	return b
}

// WithRetry sets the retry strategy.
func (b *ErrorBuilder) WithRetry(strategy RetryStrategy) *ErrorBuilder {
	b.retry = strategy
	return b
}

// WithContext adds a context key-value pair.
func (b *ErrorBuilder) WithContext(key string, value any) *ErrorBuilder {
	b.context = b.context.Set(key, value)
	return b
}

// WithCause attaches an underlying cause error.
func (b *ErrorBuilder) WithCause(err error) *ErrorBuilder {
	b.cause = err
	return b
}

// Fatal sets the severity to fatal.
func (b *ErrorBuilder) Fatal() *ErrorBuilder {
	return b.WithSeverity(SeverityFatal)
}

// Warning sets the severity to warning.
func (b *ErrorBuilder) Warning() *ErrorBuilder {
	return b.WithSeverity(SeverityWarning)
}

// Retryable sets the retry strategy to backoff.
func (b *ErrorBuilder) Retryable() *ErrorBuilder {
	return b.WithRetry(RetryBackoff)
}

// Immediate sets the retry strategy to immediate.
func (b *ErrorBuilder) Immediate() *ErrorBuilder {
	return b.WithRetry(RetryImmediate)
}

// UserAction sets the retry strategy to require user action.
func (b *ErrorBuilder) UserAction() *ErrorBuilder {
	return b.WithRetry(RetryUserAction)
}

// Build creates the final ClassifiedError.
func (b *ErrorBuilder) Build() *ClassifiedError {
	return &ClassifiedError{
		category: b.category,
		severity: b.severity,
		retry:    b.retry,
		message:  b.message,
		cause:    b.cause,
		context:  b.context,
	}
}

// Convenience constructors for common error patterns

// ConfigError creates a configuration error.
func ConfigError(message string) *ErrorBuilder {
	return NewError(CategoryConfig, message).Fatal()
}

// ValidationError creates a request validation error.
func ValidationError(message string) *ErrorBuilder {
	return NewError(CategoryValidation, message).UserAction()
}

// AuthError creates an authentication error.
func AuthError(message string) *ErrorBuilder {
	return NewError(CategoryAuth, message).UserAction()
}

// NotFoundError creates a missing-resource error.
func NotFoundError(message string) *ErrorBuilder {
	return NewError(CategoryNotFound, message)
}

// AlreadyExistsError creates a duplicate-resource error.
func AlreadyExistsError(message string) *ErrorBuilder {
	return NewError(CategoryAlreadyExists, message)
}

// BackendError creates a backend registry or capability error.
func BackendError(message string) *ErrorBuilder {
	return NewError(CategoryBackend, message)
}

// StorageError creates a storage provider error (typically retryable).
func StorageError(message string) *ErrorBuilder {
	return NewError(CategoryStorage, message).Retryable()
}

// HostingError creates a hosting provider error (typically retryable).
func HostingError(message string) *ErrorBuilder {
	return NewError(CategoryHosting, message).Retryable()
}

// RenderError creates a site generation error.
func RenderError(message string) *ErrorBuilder {
	return NewError(CategoryRender, message)
}

// EventStoreError creates an event persistence error.
func EventStoreError(message string) *ErrorBuilder {
	return NewError(CategoryEventStore, message)
}

// NetworkError creates a network error (typically retryable).
func NetworkError(message string) *ErrorBuilder {
	return NewError(CategoryNetwork, message).Retryable()
}

// GitError creates a git operation error.
func GitError(message string) *ErrorBuilder {
	return NewError(CategoryGit, message).Retryable()
}

// RuntimeError creates a runtime error.
func RuntimeError(message string) *ErrorBuilder {
	return NewError(CategoryRuntime, message).Fatal()
}

// DaemonError creates a daemon error.
func DaemonError(message string) *ErrorBuilder {
	return NewError(CategoryDaemon, message).Fatal()
}

// InternalError creates an internal error.
func InternalError(message string) *ErrorBuilder {
	return NewError(CategoryInternal, message).Fatal()
}
