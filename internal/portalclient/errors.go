package portalclient

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"syscall"
)

// ErrorType represents the category of a portal client error
type ErrorType int

const (
	// ErrTypeNetwork indicates a network-level error
	ErrTypeNetwork ErrorType = iota
	// ErrTypeTimeout indicates a request timeout
	ErrTypeTimeout
	// ErrTypeConnectionRefused indicates nothing listens on the portal address
	ErrTypeConnectionRefused
	// ErrTypeHTTP indicates an unexpected HTTP status
	ErrTypeHTTP
	// ErrTypeParse indicates a malformed response body
	ErrTypeParse
	// ErrTypeRejected indicates the portal rejected the submission as invalid
	ErrTypeRejected
	// ErrTypeNoSession indicates the portal is not accepting submissions
	ErrTypeNoSession
	// ErrTypeJoinFailed indicates the device could not join the submitted network
	ErrTypeJoinFailed
)

// String returns a human-readable name for the error type
func (et ErrorType) String() string {
	switch et {
	case ErrTypeNetwork:
		return "Network Error"
	case ErrTypeTimeout:
		return "Timeout"
	case ErrTypeConnectionRefused:
		return "Connection Refused"
	case ErrTypeHTTP:
		return "HTTP Error"
	case ErrTypeParse:
		return "Parse Error"
	case ErrTypeRejected:
		return "Rejected"
	case ErrTypeNoSession:
		return "No Session"
	case ErrTypeJoinFailed:
		return "Join Failed"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// ClientError is an error talking to a portal
type ClientError struct {
	Type       ErrorType
	Message    string
	StatusCode int   // HTTP status code, if any
	Err        error // Underlying error, if any
	Retryable  bool
}

func (e *ClientError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *ClientError) Unwrap() error {
	return e.Err
}

// classifyNetworkError maps a transport error to a ClientError
func classifyNetworkError(message string, err error) *ClientError {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = urlErr.Err
	}

	switch {
	case os.IsTimeout(err):
		return &ClientError{Type: ErrTypeTimeout, Message: message, Err: err, Retryable: true}
	case errors.Is(err, syscall.ECONNREFUSED):
		return &ClientError{Type: ErrTypeConnectionRefused, Message: message, Err: err, Retryable: true}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &ClientError{Type: ErrTypeNetwork, Message: message, Err: err, Retryable: false}
	}
	return &ClientError{Type: ErrTypeNetwork, Message: message, Err: err, Retryable: true}
}

// statusError maps a non-2xx portal response to a ClientError
func statusError(status int, detail string) *ClientError {
	msg := fmt.Sprintf("portal returned %d", status)
	if detail != "" {
		msg += ": " + detail
	}
	switch status {
	case http.StatusBadRequest:
		return &ClientError{Type: ErrTypeRejected, Message: msg, StatusCode: status}
	case http.StatusConflict:
		return &ClientError{Type: ErrTypeNoSession, Message: msg, StatusCode: status}
	case http.StatusBadGateway:
		return &ClientError{Type: ErrTypeJoinFailed, Message: msg, StatusCode: status}
	default:
		return &ClientError{Type: ErrTypeHTTP, Message: msg, StatusCode: status, Retryable: status >= 500}
	}
}

func newParseError(message string, err error) *ClientError {
	return &ClientError{Type: ErrTypeParse, Message: message, Err: err}
}

func hasType(err error, types ...ErrorType) bool {
	var ce *ClientError
	if !errors.As(err, &ce) {
		return false
	}
	for _, t := range types {
		if ce.Type == t {
			return true
		}
	}
	return false
}

// IsNetworkError reports transport failures, including timeouts and refused connections
func IsNetworkError(err error) bool {
	return hasType(err, ErrTypeNetwork, ErrTypeTimeout, ErrTypeConnectionRefused)
}

// IsJoinFailed reports that the device could not join the submitted network
func IsJoinFailed(err error) bool {
	return hasType(err, ErrTypeJoinFailed)
}

// IsNoSession reports that no portal session was running
func IsNoSession(err error) bool {
	return hasType(err, ErrTypeNoSession)
}

// IsRetryable reports whether a request may succeed if repeated
func IsRetryable(err error) bool {
	var ce *ClientError
	if errors.As(err, &ce) {
		return ce.Retryable
	}
	return false
}

// Hint returns troubleshooting advice for err
func Hint(err error) string {
	var ce *ClientError
	if !errors.As(err, &ce) {
		return "An unexpected error occurred. Please try again."
	}

	switch ce.Type {
	case ErrTypeTimeout, ErrTypeConnectionRefused, ErrTypeNetwork:
		return strings.Join([]string{
			"The portal could not be reached.",
			"Troubleshooting:",
			"  • Join the device's provisioning access point first",
			"  • Run `wifiprov scan` to find the portal address",
			"  • Check that the portal has not timed out",
		}, "\n")
	case ErrTypeNoSession:
		return "The device is already connected or its portal has closed. Erase it to provision again."
	case ErrTypeJoinFailed:
		return "The device could not join that network. Check the SSID and password, then submit again."
	case ErrTypeRejected:
		return "The portal rejected the request. An SSID is required."
	default:
		return "Check the error message for details."
	}
}
