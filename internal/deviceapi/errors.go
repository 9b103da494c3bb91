package deviceapi

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"syscall"
)

// ErrorType represents the category of error that occurred
type ErrorType int

const (
	// ErrTypeTransport indicates a network-level failure (connection refused,
	// unreachable host, etc.)
	ErrTypeTransport ErrorType = iota
	// ErrTypeTimeout indicates a request timeout
	ErrTypeTimeout
	// ErrTypeConnectionRefused indicates the device refused the connection
	ErrTypeConnectionRefused
	// ErrTypeDNS indicates a DNS resolution failure
	ErrTypeDNS
	// ErrTypeAuth indicates an authentication failure (invalid credentials)
	ErrTypeAuth
	// ErrTypeHTTP indicates an HTTP-level error (unexpected status code)
	ErrTypeHTTP
	// ErrTypeParse indicates a malformed response body (non-JSON)
	ErrTypeParse
	// ErrTypeAPI indicates a business error returned by the device in a
	// well-formed {error:{code,message}} response
	ErrTypeAPI
	// ErrTypeValidation indicates a local validation error; no request was made
	ErrTypeValidation
)

// String returns a human-readable name for the error type
func (et ErrorType) String() string {
	switch et {
	case ErrTypeTransport:
		return "Transport Error"
	case ErrTypeTimeout:
		return "Timeout"
	case ErrTypeConnectionRefused:
		return "Connection Refused"
	case ErrTypeDNS:
		return "DNS Error"
	case ErrTypeAuth:
		return "Authentication Error"
	case ErrTypeHTTP:
		return "HTTP Error"
	case ErrTypeParse:
		return "Parse Error"
	case ErrTypeAPI:
		return "Device Error"
	case ErrTypeValidation:
		return "Validation Error"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// DeviceError represents an error that occurred while talking to a device
type DeviceError struct {
	Type       ErrorType // Category of error
	Message    string    // Human-readable error message
	Code       int       // Device error code (ErrTypeAPI only)
	StatusCode int       // HTTP status code (if applicable)
	Err        error     // Underlying error (if any)
}

// Error implements the error interface
func (e *DeviceError) Error() string {
	if e.Type == ErrTypeAPI {
		return fmt.Sprintf("%s: %s (code %d)", e.Type, e.Message, e.Code)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for error chain inspection
func (e *DeviceError) Unwrap() error {
	return e.Err
}

// classifyNetworkError inspects an error chain and picks the most specific
// transport error type.
func classifyNetworkError(err error) ErrorType {
	if err == nil {
		return ErrTypeTransport
	}

	if os.IsTimeout(err) {
		return ErrTypeTimeout
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return ErrTypeDNS
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if errors.Is(opErr.Err, syscall.ECONNREFUSED) {
			return ErrTypeConnectionRefused
		}
		return ErrTypeTransport
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return ErrTypeTimeout
		}
		return classifyNetworkError(urlErr.Err)
	}

	return ErrTypeTransport
}

// NewTransportError creates a network-level error with automatic classification
func NewTransportError(message string, err error) *DeviceError {
	return &DeviceError{
		Type:    classifyNetworkError(err),
		Message: message,
		Err:     err,
	}
}

// NewAuthError creates an authentication error
func NewAuthError(message string) *DeviceError {
	return &DeviceError{
		Type:       ErrTypeAuth,
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

// NewHTTPError creates an HTTP-level error
func NewHTTPError(statusCode int, message string) *DeviceError {
	return &DeviceError{
		Type:       ErrTypeHTTP,
		Message:    message,
		StatusCode: statusCode,
	}
}

// NewParseError creates a malformed-response error
func NewParseError(message string, err error) *DeviceError {
	return &DeviceError{
		Type:    ErrTypeParse,
		Message: message,
		Err:     err,
	}
}

// NewAPIError creates a business error from a device error response
func NewAPIError(code int, message string) *DeviceError {
	return &DeviceError{
		Type:    ErrTypeAPI,
		Message: message,
		Code:    code,
	}
}

// NewValidationError creates a local validation error
func NewValidationError(message string) *DeviceError {
	return &DeviceError{
		Type:    ErrTypeValidation,
		Message: message,
	}
}

// IsTransportFailure reports whether an error means the endpoint itself is
// unusable (unreachable, wrong firmware, garbage response). Callers use this
// to mark a whole feature unsupported, as opposed to a business error which
// leaves the feature enabled.
func IsTransportFailure(err error) bool {
	var devErr *DeviceError
	if !errors.As(err, &devErr) {
		return false
	}
	switch devErr.Type {
	case ErrTypeTransport, ErrTypeTimeout, ErrTypeConnectionRefused, ErrTypeDNS, ErrTypeParse, ErrTypeHTTP:
		return true
	default:
		return false
	}
}

// IsAPIError checks if an error is a device business error
func IsAPIError(err error) bool {
	var devErr *DeviceError
	return errors.As(err, &devErr) && devErr.Type == ErrTypeAPI
}

// IsAuthError checks if an error is an authentication error
func IsAuthError(err error) bool {
	var devErr *DeviceError
	return errors.As(err, &devErr) && devErr.Type == ErrTypeAuth
}

// IsValidationError checks if an error is a local validation error
func IsValidationError(err error) bool {
	var devErr *DeviceError
	return errors.As(err, &devErr) && devErr.Type == ErrTypeValidation
}

// ShortMessage returns a concise, user-friendly message for an error
func ShortMessage(err error) string {
	var devErr *DeviceError
	if !errors.As(err, &devErr) {
		return err.Error()
	}

	switch devErr.Type {
	case ErrTypeTimeout:
		return "Device not responding (timeout)"
	case ErrTypeConnectionRefused:
		return "Device refused connection"
	case ErrTypeDNS:
		return "Cannot resolve device hostname"
	case ErrTypeAuth:
		return "Authentication failed - check credentials"
	case ErrTypeTransport:
		return "Network error - check connection"
	case ErrTypeHTTP:
		return fmt.Sprintf("Device error (HTTP %d)", devErr.StatusCode)
	case ErrTypeParse:
		return "Device sent an unrecognized response - feature may be unsupported"
	case ErrTypeAPI:
		return fmt.Sprintf("%s (code %d)", devErr.Message, devErr.Code)
	case ErrTypeValidation:
		return devErr.Message
	default:
		return devErr.Message
	}
}

// TroubleshootingHint returns user-facing troubleshooting advice for
// transport-level failures. Returns an empty string for business and
// validation errors, which carry their own message.
func TroubleshootingHint(err error) string {
	var devErr *DeviceError
	if !errors.As(err, &devErr) {
		return ""
	}

	switch devErr.Type {
	case ErrTypeTimeout, ErrTypeTransport, ErrTypeConnectionRefused:
		return "Check that the device is powered on and reachable, then re-run the command.\n" +
			"overlayctl does not retry automatically."
	case ErrTypeDNS:
		return "Use the IP address instead of a hostname, or check your DNS settings."
	case ErrTypeParse, ErrTypeHTTP:
		return "The device firmware may not support overlays or widgets.\n" +
			"Check the firmware version, or reload after a firmware update."
	case ErrTypeAuth:
		return "Pass credentials with --user/--pass or store a default username in the registry."
	default:
		return ""
	}
}
