package wurm

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/alexbotov/wurmstatus/internal/wurmtest"
)

const testTimeStamp = "2016-05-31T10:54:25.140Z"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestClient creates a client pointing at the fake server
func newTestClient(t *testing.T, server *wurmtest.Server) *Client {
	t.Helper()
	host, port := server.HostPort(t)
	return NewClient(&ClientConfig{
		Host:    host,
		Port:    port,
		Timeout: 5 * time.Second,
		Logger:  discardLogger(),
	})
}

// requireAPIError asserts err is an outer status check error and returns its root
func requireAPIError(t *testing.T, err error) (*APIError, *APIError) {
	t.Helper()

	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected *APIError, got %T", err)
	}
	if apiErr.Message != "Status check error, problem with response" {
		t.Errorf("Expected outer status check message, got '%s'", apiErr.Message)
	}
	root := apiErr.Root()
	if root == apiErr {
		t.Fatal("Expected outer error to carry the original error as details")
	}
	return apiErr, root
}

func TestNewClient_Defaults(t *testing.T) {
	client := NewClient(nil)
	opts := client.Options()

	if opts.Host != "localhost" {
		t.Errorf("Expected host 'localhost', got '%s'", opts.Host)
	}
	if opts.Port != 80 {
		t.Errorf("Expected port 80, got %d", opts.Port)
	}
	if opts.Timeout != DefaultTimeout {
		t.Errorf("Expected timeout %v, got %v", DefaultTimeout, opts.Timeout)
	}
	if opts.Logger == nil {
		t.Error("Expected default logger to be set")
	}
}

func TestNewClient_CopiesConfig(t *testing.T) {
	cfg := &ClientConfig{Host: "wurm.example.com", Port: 8080}
	client := NewClient(cfg)

	cfg.Host = "changed"
	cfg.Port = 9999

	if client.Options().Host != "wurm.example.com" {
		t.Errorf("Expected client to keep its host, got '%s'", client.Options().Host)
	}
	if client.StatusURL() != "http://wurm.example.com:8080/server/status" {
		t.Errorf("Unexpected status URL after caller mutation: %s", client.StatusURL())
	}
}

func TestBaseURL(t *testing.T) {
	tests := []struct {
		name      string
		host      string
		port      int
		wantBase  string
		wantStats string
	}{
		{"defaults", "", 0, "http://localhost/", "http://localhost/server/status"},
		{"default port omitted", "wurm.example.com", 80, "http://wurm.example.com/", "http://wurm.example.com/server/status"},
		{"custom port", "localhost", 8080, "http://localhost:8080/", "http://localhost:8080/server/status"},
		{"ip address", "10.0.0.5", 443, "http://10.0.0.5:443/", "http://10.0.0.5:443/server/status"},
		{"ipv6 custom port", "::1", 8080, "http://[::1]:8080/", "http://[::1]:8080/server/status"},
		{"ipv6 bracketed", "[fe80::1]", 8080, "http://[fe80::1]:8080/", "http://[fe80::1]:8080/server/status"},
		{"ipv6 default port", "::1", 80, "http://[::1]/", "http://[::1]/server/status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewClient(&ClientConfig{Host: tt.host, Port: tt.port})
			if got := client.BaseURL(); got != tt.wantBase {
				t.Errorf("Expected base URL %s, got %s", tt.wantBase, got)
			}
			if got := client.StatusURL(); got != tt.wantStats {
				t.Errorf("Expected status URL %s, got %s", tt.wantStats, got)
			}
		})
	}
}

func TestGetStatus_Success(t *testing.T) {
	server := wurmtest.NewServer(t)
	server.Respond(http.StatusOK, `{"running":true,"connected":true,"timeStamp":"`+testTimeStamp+`"}`)

	client := newTestClient(t, server)
	result, err := client.GetStatus(context.Background())

	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	want := StatusResult{Running: true, Connected: true, TimeStamp: testTimeStamp}
	if *result != want {
		t.Errorf("Expected %+v, got %+v", want, *result)
	}

	ts, err := result.Time()
	if err != nil {
		t.Fatalf("Failed to parse timestamp: %v", err)
	}
	if ts.Year() != 2016 || ts.Month() != time.May || ts.Day() != 31 {
		t.Errorf("Unexpected parsed timestamp: %v", ts)
	}
}

func TestGetStatus_PassesNotRunningThrough(t *testing.T) {
	server := wurmtest.NewServer(t)
	server.Respond(http.StatusOK, `{"running":false,"connected":false,"timeStamp":"`+testTimeStamp+`","error":false}`)

	client := newTestClient(t, server)
	result, err := client.GetStatus(context.Background())

	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if result.Running || result.Connected {
		t.Errorf("Expected not running and not connected, got %+v", *result)
	}
}

func TestGetStatus_RequestShape(t *testing.T) {
	server := wurmtest.NewServer(t)
	client := newTestClient(t, server)

	if _, err := client.GetStatus(context.Background()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	reqs := server.Requests()
	if len(reqs) != 1 {
		t.Fatalf("Expected 1 request, got %d", len(reqs))
	}
	req := reqs[0]
	if req.Method != http.MethodGet {
		t.Errorf("Expected GET, got %s", req.Method)
	}
	if req.URL.Path != "/server/status" {
		t.Errorf("Expected path /server/status, got %s", req.URL.Path)
	}
	if req.Header.Get("Accept") != "application/json" {
		t.Errorf("Expected Accept application/json, got %s", req.Header.Get("Accept"))
	}
	if req.Header.Get("X-Api-Key") != "" {
		t.Error("Expected no API key header without APIKeyHeader configured")
	}
}

func TestGetStatus_APIKeyHeader(t *testing.T) {
	server := wurmtest.NewServer(t)
	host, port := server.HostPort(t)

	client := NewClient(&ClientConfig{
		Host:         host,
		Port:         port,
		APIKey:       "apiKey",
		APIKeyHeader: "X-Api-Key",
		Logger:       discardLogger(),
	})
	if _, err := client.GetStatus(context.Background()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if got := server.Requests()[0].Header.Get("X-Api-Key"); got != "apiKey" {
		t.Errorf("Expected API key header 'apiKey', got '%s'", got)
	}
}

func TestGetStatus_NotOK(t *testing.T) {
	for _, code := range []int{http.StatusInternalServerError, http.StatusNotFound, http.StatusServiceUnavailable, http.StatusAccepted} {
		t.Run(http.StatusText(code), func(t *testing.T) {
			server := wurmtest.NewServer(t)
			server.Respond(code, `{}`)

			client := newTestClient(t, server)
			result, err := client.GetStatus(context.Background())
			if result != nil {
				t.Errorf("Expected nil result, got %+v", result)
			}

			outer, root := requireAPIError(t, err)
			if outer.Kind != KindHTTPStatus || root.Kind != KindHTTPStatus {
				t.Errorf("Expected kind %s, got outer=%s root=%s", KindHTTPStatus, outer.Kind, root.Kind)
			}
			if root.StatusCode != code || outer.StatusCode != code {
				t.Errorf("Expected status code %d, got outer=%d root=%d", code, outer.StatusCode, root.StatusCode)
			}
			want := "getStatus not ok, status code: " + strconv.Itoa(code)
			if root.Message != want {
				t.Errorf("Expected message '%s', got '%s'", want, root.Message)
			}
			if _, ok := root.Details.(*Response); !ok {
				t.Errorf("Expected response snapshot as details, got %T", root.Details)
			}
		})
	}
}

func TestGetStatus_EmptyEntity(t *testing.T) {
	for _, body := range []string{"", "   ", "null", "false", "0", `""`} {
		t.Run("body="+body, func(t *testing.T) {
			server := wurmtest.NewServer(t)
			server.Respond(http.StatusOK, body)

			client := newTestClient(t, server)
			_, err := client.GetStatus(context.Background())

			outer, root := requireAPIError(t, err)
			if outer.Kind != KindEmptyBody {
				t.Errorf("Expected kind %s, got %s", KindEmptyBody, outer.Kind)
			}
			if root.Message != "getStatus response entity is falsey" {
				t.Errorf("Unexpected message '%s'", root.Message)
			}
		})
	}
}

func TestGetStatus_MalformedEntity(t *testing.T) {
	for _, body := range []string{"<html>", "[1,2]", `"running"`, `{"running":"yes"}`} {
		t.Run("body="+body, func(t *testing.T) {
			server := wurmtest.NewServer(t)
			server.Respond(http.StatusOK, body)

			client := newTestClient(t, server)
			_, err := client.GetStatus(context.Background())

			_, root := requireAPIError(t, err)
			if root.Kind != KindMalformedBody {
				t.Errorf("Expected kind %s, got %s", KindMalformedBody, root.Kind)
			}
			if root.Message != "getStatus response entity is malformed" {
				t.Errorf("Unexpected message '%s'", root.Message)
			}
		})
	}
}

func TestGetStatus_RemoteError(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"message", `{"error":true,"message":"Server is shutting down"}`, "Server is shutting down"},
		{"error string", `{"error":"RMI registry unavailable"}`, "RMI registry unavailable"},
		{"no message", `{"error":1}`, "[no message provided]"},
		{"numeric message", `{"error":true,"message":42}`, "42"},
		{"zero message", `{"error":"maintenance","message":0}`, "maintenance"},
		{"error object", `{"error":{},"message":""}`, "[no message provided]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := wurmtest.NewServer(t)
			server.Respond(http.StatusOK, tt.body)

			client := newTestClient(t, server)
			_, err := client.GetStatus(context.Background())

			outer, root := requireAPIError(t, err)
			if outer.Kind != KindRemoteError {
				t.Errorf("Expected kind %s, got %s", KindRemoteError, outer.Kind)
			}
			if root.RemoteMessage != tt.want || outer.RemoteMessage != tt.want {
				t.Errorf("Expected remote message '%s', got outer='%s' root='%s'", tt.want, outer.RemoteMessage, root.RemoteMessage)
			}
			if root.Message != "getStatus returned error: "+tt.want {
				t.Errorf("Unexpected message '%s'", root.Message)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected rendered error to contain '%s', got '%s'", tt.want, err.Error())
			}
		})
	}
}

func TestGetStatus_FalseyErrorFieldIsIgnored(t *testing.T) {
	for _, flag := range []string{"false", "0", `""`, "null"} {
		server := wurmtest.NewServer(t)
		server.Respond(http.StatusOK, `{"running":true,"connected":false,"timeStamp":"`+testTimeStamp+`","error":`+flag+`}`)

		client := newTestClient(t, server)
		result, err := client.GetStatus(context.Background())
		if err != nil {
			t.Fatalf("error=%s: unexpected error: %v", flag, err)
		}
		if !result.Running || result.Connected {
			t.Errorf("error=%s: unexpected result %+v", flag, *result)
		}
	}
}

func TestGetStatus_Unreachable(t *testing.T) {
	host, port := wurmtest.UnusedAddr(t)
	client := NewClient(&ClientConfig{
		Host:    host,
		Port:    port,
		Timeout: 2 * time.Second,
		Logger:  discardLogger(),
	})

	_, err := client.GetStatus(context.Background())

	outer, root := requireAPIError(t, err)
	if outer.Kind != KindTransport || root.Kind != KindTransport {
		t.Errorf("Expected transport kind, got outer=%s root=%s", outer.Kind, root.Kind)
	}
	if !strings.Contains(root.Message, client.StatusURL()) {
		t.Errorf("Expected message to reference %s, got '%s'", client.StatusURL(), root.Message)
	}
	if root.Err == nil {
		t.Error("Expected transport cause to be kept")
	}
	if outer.URL != client.StatusURL() {
		t.Errorf("Expected URL %s, got %s", client.StatusURL(), outer.URL)
	}
}

func TestGetStatus_ContextCanceled(t *testing.T) {
	server := wurmtest.NewServer(t)
	client := newTestClient(t, server)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.GetStatus(ctx)
	_, root := requireAPIError(t, err)
	if root.Kind != KindTransport {
		t.Errorf("Expected transport kind, got %s", root.Kind)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected error chain to contain context.Canceled, got %v", err)
	}
}

func TestGetStatus_Independent(t *testing.T) {
	server := wurmtest.NewServer(t)
	client := newTestClient(t, server)

	first, err := client.GetStatus(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	second, err := client.GetStatus(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if first == second {
		t.Fatal("Expected independent results")
	}
	if *first != *second {
		t.Errorf("Expected identical results, got %+v and %+v", *first, *second)
	}

	first.Running = false
	if !second.Running {
		t.Error("Mutating one result must not affect another")
	}
}

func TestGetStatusAsync(t *testing.T) {
	server := wurmtest.NewServer(t)
	client := newTestClient(t, server)

	outcome, ok := <-client.GetStatusAsync(context.Background())
	if !ok {
		t.Fatal("Expected an outcome before close")
	}
	if outcome.Err != nil || outcome.Status == nil {
		t.Fatalf("Expected status only, got %+v", outcome)
	}

	server.Respond(http.StatusInternalServerError, `{}`)
	ch := client.GetStatusAsync(context.Background())
	outcome = <-ch
	if outcome.Err == nil || outcome.Status != nil {
		t.Fatalf("Expected error only, got %+v", outcome)
	}
	if _, ok := <-ch; ok {
		t.Error("Expected channel to be closed after one outcome")
	}
}

func TestGetStatusAsync_Concurrent(t *testing.T) {
	server := wurmtest.NewServer(t)
	client := newTestClient(t, server)

	const n = 10
	chans := make([]<-chan Outcome, n)
	for i := range chans {
		chans[i] = client.GetStatusAsync(context.Background())
	}
	for i, ch := range chans {
		outcome := <-ch
		if outcome.Err != nil {
			t.Errorf("call %d: unexpected error: %v", i, outcome.Err)
		}
	}
	if got := len(server.Requests()); got != n {
		t.Errorf("Expected %d requests, got %d", n, got)
	}
}

func TestAPIError_Root(t *testing.T) {
	inner := newAPIError(KindEmptyBody, "inner", nil)
	outer := newAPIError(KindEmptyBody, "outer", inner)

	if outer.Root() != inner {
		t.Error("Expected Root to return inner error")
	}
	if inner.Root() != inner {
		t.Error("Expected Root of innermost error to be itself")
	}
	if details, ok := inner.Details.(map[string]any); !ok || len(details) != 0 {
		t.Errorf("Expected empty details map by default, got %#v", inner.Details)
	}
}
