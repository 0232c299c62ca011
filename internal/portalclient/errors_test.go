package portalclient

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"syscall"
	"testing"
)

func asClientError(err error, target **ClientError) bool {
	return errors.As(err, target)
}

type timeoutError struct{}

func (e *timeoutError) Error() string   { return "i/o timeout" }
func (e *timeoutError) Timeout() bool   { return true }
func (e *timeoutError) Temporary() bool { return true }

func TestClassifyNetworkError(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantType      ErrorType
		wantRetryable bool
	}{
		{
			name:          "timeout",
			err:           &url.Error{Op: "Get", URL: "http://x", Err: &timeoutError{}},
			wantType:      ErrTypeTimeout,
			wantRetryable: true,
		},
		{
			name:          "connection refused",
			err:           &url.Error{Op: "Get", URL: "http://x", Err: &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}},
			wantType:      ErrTypeConnectionRefused,
			wantRetryable: true,
		},
		{
			name:          "dns",
			err:           &url.Error{Op: "Get", URL: "http://x", Err: &net.DNSError{Err: "no such host", Name: "x"}},
			wantType:      ErrTypeNetwork,
			wantRetryable: false,
		},
		{
			name:          "other",
			err:           errors.New("broken pipe"),
			wantType:      ErrTypeNetwork,
			wantRetryable: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyNetworkError("request failed", tt.err)
			if got.Type != tt.wantType {
				t.Errorf("Type = %v, want %v", got.Type, tt.wantType)
			}
			if got.Retryable != tt.wantRetryable {
				t.Errorf("Retryable = %v, want %v", got.Retryable, tt.wantRetryable)
			}
			if got.Unwrap() == nil {
				t.Error("underlying error should be kept")
			}
		})
	}
}

func TestIsHelpers(t *testing.T) {
	wrapped := fmt.Errorf("submit: %w", statusError(502, "bad password"))

	if !IsJoinFailed(wrapped) {
		t.Error("IsJoinFailed() should see through wrapping")
	}
	if IsNoSession(wrapped) || IsNetworkError(wrapped) || IsRetryable(wrapped) {
		t.Error("join failure misclassified")
	}
	if !IsNoSession(statusError(409, "")) {
		t.Error("409 should be a no-session error")
	}
	if IsRetryable(errors.New("plain")) {
		t.Error("plain errors are not retryable")
	}
	if !IsRetryable(statusError(503, "")) {
		t.Error("503 should be retryable")
	}
}

func TestClientError_Error(t *testing.T) {
	err := statusError(502, "activation failed")
	if !strings.Contains(err.Error(), "Join Failed") || !strings.Contains(err.Error(), "activation failed") {
		t.Errorf("Error() = %q", err.Error())
	}

	wrapped := classifyNetworkError("GET /params failed", errors.New("boom"))
	if !strings.Contains(wrapped.Error(), "caused by: boom") {
		t.Errorf("Error() = %q", wrapped.Error())
	}
}

func TestHint(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"network", &ClientError{Type: ErrTypeConnectionRefused}, "wifiprov scan"},
		{"no session", &ClientError{Type: ErrTypeNoSession}, "Erase it"},
		{"join", &ClientError{Type: ErrTypeJoinFailed}, "SSID and password"},
		{"rejected", &ClientError{Type: ErrTypeRejected}, "SSID is required"},
		{"plain", errors.New("x"), "unexpected error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Hint(tt.err); !strings.Contains(got, tt.want) {
				t.Errorf("Hint() = %q, want it to mention %q", got, tt.want)
			}
		})
	}
}

func TestErrorTypeString(t *testing.T) {
	if ErrTypeNoSession.String() != "No Session" {
		t.Errorf("String() = %q", ErrTypeNoSession.String())
	}
	if ErrorType(99).String() != "ErrorType(99)" {
		t.Errorf("String() = %q", ErrorType(99).String())
	}
}
