// Package domainerr provides the error taxonomy used across the watcher:
// RpcError, WebhookError, ValidationError, NotConfigured, and ParseError,
// each carrying a code, message, optional details, and a retryability hint.
package domainerr

import (
	"errors"
	"fmt"
)

// Sentinel categories. DomainError.Is matches against these via errors.Is.
var (
	ErrRpc            = errors.New("rpc error")
	ErrWebhook         = errors.New("webhook error")
	ErrValidation      = errors.New("validation error")
	ErrNotConfigured   = errors.New("not configured")
	ErrParse           = errors.New("parse error")
)

// DomainError is the single error shape produced by every package in this
// service.
type DomainError struct {
	Err        error
	Code       string
	Message    string
	Details    map[string]interface{}
	Retryable  bool
	HTTPStatus int // only meaningful for RpcError: the status the wallet RPC returned
}

func (e *DomainError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Code
}

func (e *DomainError) Unwrap() error { return e.Err }

func (e *DomainError) Is(target error) bool {
	if e.Err != nil {
		return errors.Is(e.Err, target)
	}
	return false
}

func (e *DomainError) WithDetails(details map[string]interface{}) *DomainError {
	e.Details = details
	return e
}

// RpcError wraps a wallet-RPC or status-API failure: HTTP >= 400 or a
// JSON-RPC error object. The Scheduler treats this as a signal to back off
// the whole ticker (spec §4.3, §4.8).
func RpcError(status int, message string) *DomainError {
	return &DomainError{
		Err:        ErrRpc,
		Code:       "RPC_ERROR",
		Message:    message,
		Retryable:  true,
		HTTPStatus: status,
	}
}

// WebhookError wraps a non-2xx webhook response or network failure. Never
// propagated out of the State Machine; recorded on the Job instead.
func WebhookError(statusCode int, message string) *DomainError {
	return &DomainError{
		Err:       ErrWebhook,
		Code:      "WEBHOOK_ERROR",
		Message:   message,
		Retryable: true,
		Details:   map[string]interface{}{"statusCode": statusCode},
	}
}

// ValidationError wraps a malformed Intake request body or malformed Job.
func ValidationError(field, message string) *DomainError {
	d := &DomainError{
		Err:     ErrValidation,
		Code:    "VALIDATION_ERROR",
		Message: message,
	}
	if field != "" {
		d.Details = map[string]interface{}{"field": field}
	}
	return d
}

// NotConfiguredError wraps a missing required config value (KV URL/token,
// webhook URL/secret). The watcher logs once and does not start; dependent
// HTTP endpoints respond 503.
func NotConfiguredError(what string) *DomainError {
	return &DomainError{
		Err:     ErrNotConfigured,
		Code:    "NOT_CONFIGURED",
		Message: fmt.Sprintf("%s is not configured", what),
	}
}

// ParseErr wraps a Status-JSON decode failure. Treated as absent by callers
// (fail-open read) rather than propagated.
func ParseErr(cause error) *DomainError {
	return &DomainError{
		Err:     ErrParse,
		Code:    "PARSE_ERROR",
		Message: "failed to parse stored JSON",
		Details: map[string]interface{}{"cause": cause.Error()},
	}
}

func IsRpcError(err error) bool          { return errors.Is(err, ErrRpc) }
func IsWebhookError(err error) bool      { return errors.Is(err, ErrWebhook) }
func IsValidationError(err error) bool   { return errors.Is(err, ErrValidation) }
func IsNotConfiguredError(err error) bool { return errors.Is(err, ErrNotConfigured) }
func IsParseError(err error) bool        { return errors.Is(err, ErrParse) }

// GetCode extracts the Code field from a DomainError, or "UNKNOWN_ERROR".
func GetCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return "UNKNOWN_ERROR"
}

// Wrap adds context to an error without changing its category.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
