package wurm

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Connection defaults used when ClientConfig leaves a field empty
const (
	DefaultHost    = "localhost"
	DefaultPort    = 80
	DefaultTimeout = 30 * time.Second
)

// StatusPath is the status endpoint relative to the API base URL
const StatusPath = "/server/status"

// ClientConfig holds connection options for the Wurm API
type ClientConfig struct {
	Host string
	Port int

	// APIKey is carried but only sent when APIKeyHeader names a header.
	APIKey       string
	APIKeyHeader string

	Timeout time.Duration
	Logger  *slog.Logger
}

// StatusResult is the body returned by GET /server/status
type StatusResult struct {
	Running   bool   `json:"running"`
	Connected bool   `json:"connected"`
	TimeStamp string `json:"timeStamp"`
}

// Time parses TimeStamp as an RFC 3339 timestamp
func (s *StatusResult) Time() (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s.TimeStamp)
}

// ErrorKind identifies the stage at which a status check failed
type ErrorKind string

const (
	KindTransport     ErrorKind = "transport"
	KindHTTPStatus    ErrorKind = "http_status"
	KindEmptyBody     ErrorKind = "empty_body"
	KindMalformedBody ErrorKind = "malformed_body"
	KindRemoteError   ErrorKind = "remote_error"
)

// APIError is returned by every failed status check.
//
// Validation and transport errors are created at the point of detection and
// then wrapped once more by GetStatus, so the outer error carries the generic
// message while Details holds the original *APIError.
type APIError struct {
	Kind          ErrorKind `json:"kind"`
	Message       string    `json:"error"`
	StatusCode    int       `json:"status_code,omitempty"`
	RemoteMessage string    `json:"remote_message,omitempty"`
	URL           string    `json:"url,omitempty"`
	Details       any       `json:"details"`
	Err           error     `json:"-"`
}

func newAPIError(kind ErrorKind, message string, details any) *APIError {
	if details == nil {
		details = map[string]any{}
	}
	return &APIError{
		Kind:    kind,
		Message: message,
		Details: details,
	}
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Root returns the innermost APIError reachable through Details
func (e *APIError) Root() *APIError {
	root := e
	for {
		inner, ok := root.Details.(*APIError)
		if !ok || inner == nil {
			return root
		}
		root = inner
	}
}

// Response is a snapshot of an HTTP response kept as APIError details
type Response struct {
	StatusCode int         `json:"status_code"`
	Header     http.Header `json:"headers"`
	Body       []byte      `json:"body,omitempty"`
}

// Outcome is the value delivered by GetStatusAsync. Exactly one field is set.
type Outcome struct {
	Status *StatusResult
	Err    error
}
