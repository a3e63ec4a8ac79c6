// Package wurmtest provides a fake Wurm REST API server for tests
package wurmtest

import (
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
)

// StatusPath is the endpoint served by the fake
const StatusPath = "/server/status"

// OKBody is a status body reporting a running, connected server
const OKBody = `{"running":true,"connected":true,"timeStamp":"2016-05-31T10:54:25.140Z"}`

// Server is a fake Wurm API answering GET /server/status with a canned response
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	code     int
	body     string
	requests []*http.Request
}

// NewServer starts a fake answering 200 with OKBody. It is closed when the test ends.
func NewServer(t testing.TB) *Server {
	t.Helper()

	s := &Server{code: http.StatusOK, body: OKBody}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.requests = append(s.requests, r.Clone(r.Context()))
	code, body := s.code, s.body
	s.mu.Unlock()

	if r.Method != http.MethodGet || r.URL.Path != StatusPath {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write([]byte(body))
}

// Respond sets the status code and raw body of subsequent responses
func (s *Server) Respond(code int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.code = code
	s.body = body
}

// Requests returns the requests received so far
func (s *Server) Requests() []*http.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*http.Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// HostPort returns the host and port the fake listens on
func (s *Server) HostPort(t testing.TB) (string, int) {
	t.Helper()
	return SplitHostPort(t, s.Listener.Addr().String())
}

// SplitHostPort splits addr into host and numeric port or fails the test
func SplitHostPort(t testing.TB, addr string) (string, int) {
	t.Helper()

	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("Failed to split address %s: %v", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("Failed to parse port %s: %v", portStr, err)
	}
	return host, port
}

// UnusedAddr returns an address nothing is listening on
func UnusedAddr(t testing.TB) (string, int) {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	addr := l.Addr().String()
	l.Close()
	return SplitHostPort(t, addr)
}
