package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeNetwork represents network-related errors
	ErrorTypeNetwork ErrorType = "network"
	// ErrorTypeParsing represents HTML parsing errors
	ErrorTypeParsing ErrorType = "parsing"
	// ErrorTypeRateLimit represents rate limiting errors
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypeCache represents cache-related errors
	ErrorTypeCache ErrorType = "cache"
	// ErrorTypeLedger represents ledger load/save errors
	ErrorTypeLedger ErrorType = "ledger"
	// ErrorTypeNotifier represents messaging-platform errors
	ErrorTypeNotifier ErrorType = "notifier"
	// ErrorTypeConfiguration represents configuration errors
	ErrorTypeConfiguration ErrorType = "configuration"
)

// AppError is the error type shared by every component of the bot
type AppError struct {
	Type    ErrorType
	Source  string
	Message string
	Err     error
	Time    time.Time
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s - %v", e.Type, e.Source, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.Source, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is retryable
func (e *AppError) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeNetwork:
		return true
	default:
		return false
	}
}

// New creates a new AppError
func New(errType ErrorType, source, message string, err error) *AppError {
	return &AppError{
		Type:    errType,
		Source:  source,
		Message: message,
		Err:     err,
		Time:    time.Now(),
	}
}

// NewNetwork creates a new network error
func NewNetwork(source, message string, err error) *AppError {
	return New(ErrorTypeNetwork, source, message, err)
}

// NewParsing creates a new parsing error
func NewParsing(source, message string, err error) *AppError {
	return New(ErrorTypeParsing, source, message, err)
}

// NewRateLimit creates a new rate limit error
func NewRateLimit(source, retryAfter string) *AppError {
	message := "rate limited"
	if retryAfter != "" {
		message = fmt.Sprintf("rate limited; retry after %s", retryAfter)
	}
	return New(ErrorTypeRateLimit, source, message, nil)
}

// NewCache creates a new cache error
func NewCache(source, message string, err error) *AppError {
	return New(ErrorTypeCache, source, message, err)
}

// NewLedger creates a new ledger error
func NewLedger(source, message string, err error) *AppError {
	return New(ErrorTypeLedger, source, message, err)
}

// NewNotifier creates a new notifier error
func NewNotifier(source, message string, err error) *AppError {
	return New(ErrorTypeNotifier, source, message, err)
}

// NewConfiguration creates a new configuration error
func NewConfiguration(message string, err error) *AppError {
	return New(ErrorTypeConfiguration, "config", message, err)
}

// IsType reports whether any error in err's chain is an AppError of the given type
func IsType(err error, errType ErrorType) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Type == errType
	}
	return false
}

// IsRateLimit reports whether err is a rate limit error
func IsRateLimit(err error) bool {
	return IsType(err, ErrorTypeRateLimit)
}
