package deviceapi

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"syscall"
	"testing"
)

func TestClassifyNetworkError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorType
	}{
		{
			name: "dns failure",
			err:  &net.DNSError{Err: "no such host", Name: "netcam-ffaa.local"},
			want: ErrTypeDNS,
		},
		{
			name: "connection refused",
			err:  &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED},
			want: ErrTypeConnectionRefused,
		},
		{
			name: "generic op error",
			err:  &net.OpError{Op: "dial", Err: syscall.EHOSTUNREACH},
			want: ErrTypeTransport,
		},
		{
			name: "wrapped in url.Error",
			err:  &url.Error{Op: "Post", URL: "http://192.168.0.90", Err: &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}},
			want: ErrTypeConnectionRefused,
		},
		{
			name: "plain error",
			err:  errors.New("something odd"),
			want: ErrTypeTransport,
		},
		{
			name: "nil",
			err:  nil,
			want: ErrTypeTransport,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyNetworkError(tt.err); got != tt.want {
				t.Errorf("classifyNetworkError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsTransportFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"transport", NewTransportError("unreachable", nil), true},
		{"parse", NewParseError("garbage body", nil), true},
		{"http", NewHTTPError(502, "bad gateway"), true},
		{"timeout", &DeviceError{Type: ErrTypeTimeout, Message: "slow"}, true},
		{"refused", &DeviceError{Type: ErrTypeConnectionRefused, Message: "nope"}, true},
		{"dns", &DeviceError{Type: ErrTypeDNS, Message: "no host"}, true},
		// Auth, business, and validation errors leave the feature usable
		{"auth", NewAuthError("bad credentials"), false},
		{"api", NewAPIError(2001, "too many overlays"), false},
		{"validation", NewValidationError("bad field"), false},
		{"plain", errors.New("not a device error"), false},
		{"wrapped transport", fmt.Errorf("context: %w", NewTransportError("unreachable", nil)), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransportFailure(tt.err); got != tt.want {
				t.Errorf("IsTransportFailure() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestErrorMessage(t *testing.T) {
	apiErr := NewAPIError(2001, "maximum number of overlays reached")
	want := "Device Error: maximum number of overlays reached (code 2001)"
	if apiErr.Error() != want {
		t.Errorf("Error() = %q, want %q", apiErr.Error(), want)
	}

	transportErr := NewTransportError("device unreachable", errors.New("dial tcp: timeout"))
	if transportErr.Error() == "" {
		t.Error("transport error should have a message")
	}
}

func TestUnwrap(t *testing.T) {
	inner := errors.New("dial failed")
	err := NewTransportError("device unreachable", inner)

	if !errors.Is(err, inner) {
		t.Error("DeviceError should unwrap to the underlying error")
	}
}

func TestShortMessage(t *testing.T) {
	if got := ShortMessage(NewAPIError(2001, "slots full")); got != "slots full (code 2001)" {
		t.Errorf("ShortMessage(api) = %q", got)
	}
	if got := ShortMessage(NewValidationError("fontSize must be a number")); got != "fontSize must be a number" {
		t.Errorf("ShortMessage(validation) = %q", got)
	}
	if got := ShortMessage(errors.New("plain")); got != "plain" {
		t.Errorf("ShortMessage(plain) = %q", got)
	}
}

func TestTroubleshootingHint(t *testing.T) {
	if hint := TroubleshootingHint(NewAPIError(1, "busy")); hint != "" {
		t.Errorf("business errors carry their own message, got %q", hint)
	}
	if hint := TroubleshootingHint(NewParseError("html page", nil)); hint == "" {
		t.Error("parse errors should hint at firmware support")
	}
}
