// Package api provides the HTTP API for wurmstatus
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/alexbotov/wurmstatus/internal/auth"
	"github.com/alexbotov/wurmstatus/internal/domain"
	"github.com/alexbotov/wurmstatus/internal/history"
	"github.com/alexbotov/wurmstatus/internal/monitor"
	"github.com/gorilla/mux"
)

// Version is reported by GET /
const Version = "1.0.0"

const (
	maxHistoryLimit     = 1000
	defaultSummaryRange = 24 * time.Hour

	// DefaultLiveCheckMinAge is how long a check is reused by GET /api/v1/status
	DefaultLiveCheckMinAge = 5 * time.Second
)

// Handler contains all HTTP handlers
type Handler struct {
	monitor *monitor.Monitor
	history *history.Service
	auth    *auth.Service
	hub     *Hub

	liveMu     sync.Mutex
	liveMinAge time.Duration
}

// New creates a new API handler and subscribes its websocket hub to the monitor
func New(mon *monitor.Monitor, historySvc *history.Service, authSvc *auth.Service) *Handler {
	h := &Handler{
		monitor: mon,
		history: historySvc,
		auth:    authSvc,
		hub:     NewHub(),

		liveMinAge: DefaultLiveCheckMinAge,
	}
	mon.SetEventCallback(h.hub.Broadcast)
	return h
}

// SetLiveCheckMinAge sets how old the last check may be before
// GET /api/v1/status queries the Wurm server again. Zero always queries.
func (h *Handler) SetLiveCheckMinAge(d time.Duration) {
	h.liveMu.Lock()
	defer h.liveMu.Unlock()
	h.liveMinAge = d
}

// Hub returns the websocket hub fed by the monitor
func (h *Handler) Hub() *Hub {
	return h.hub
}

// Response helpers

type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(APIResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
	})
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(APIResponse{
		Success: false,
		Error: &APIError{
			Code:    code,
			Message: message,
		},
	})
}

// === Health & Info ===

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	data := map[string]interface{}{
		"status": "healthy",
	}
	if last := h.monitor.Last(); last != nil {
		data["last_check"] = map[string]interface{}{
			"outcome":    last.Outcome,
			"healthy":    last.Healthy(),
			"checked_at": last.CheckedAt,
		}
	}
	respondJSON(w, http.StatusOK, data)
}

// ServerInfo handles GET /
func (h *Handler) ServerInfo(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"name":        "wurmstatus",
		"version":     Version,
		"description": "Wurm server status monitor",
	})
}

// === Authentication ===

// LoginRequest contains operator credentials
type LoginRequest struct {
	Subject  string `json:"subject"`
	Password string `json:"password"`
}

// Login handles POST /api/v1/auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	token, err := h.auth.Login(req.Subject, req.Password)
	if err != nil {
		switch err {
		case auth.ErrInvalidCredentials:
			respondError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid password")
		case auth.ErrLoginDisabled:
			respondError(w, http.StatusForbidden, "LOGIN_DISABLED", "Operator login is not configured")
		default:
			respondError(w, http.StatusInternalServerError, "LOGIN_FAILED", "Login failed")
		}
		return
	}

	respondJSON(w, http.StatusOK, token)
}

// === Status ===

// GetStatus handles GET /api/v1/status. It runs a live check unless the last
// one is younger than the live check minimum age. Live checks are serialized
// so a burst of requests reaches the Wurm server once.
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	check := h.liveCheck(r)
	if check == nil {
		respondError(w, http.StatusServiceUnavailable, "CHECK_CANCELLED", "Status check cancelled")
		return
	}
	if check.Outcome != domain.OutcomeOK {
		code := "STATUS_CHECK_FAILED"
		if check.ErrorKind != "" {
			code = strings.ToUpper(string(check.ErrorKind))
		}
		respondError(w, http.StatusBadGateway, code, check.ErrorMessage)
		return
	}

	respondJSON(w, http.StatusOK, check)
}

func (h *Handler) liveCheck(r *http.Request) *domain.StatusCheck {
	h.liveMu.Lock()
	defer h.liveMu.Unlock()

	if last := h.monitor.Last(); last != nil && time.Since(last.CheckedAt) < h.liveMinAge {
		return last
	}
	return h.monitor.CheckNow(r.Context())
}

// GetLatest handles GET /api/v1/status/latest
func (h *Handler) GetLatest(w http.ResponseWriter, r *http.Request) {
	if last := h.monitor.Last(); last != nil {
		respondJSON(w, http.StatusOK, last)
		return
	}

	check, err := h.history.Latest(r.Context())
	if err != nil {
		if errors.Is(err, history.ErrNotFound) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "No status checks recorded yet")
			return
		}
		respondError(w, http.StatusInternalServerError, "HISTORY_ERROR", "Failed to get latest check")
		return
	}

	respondJSON(w, http.StatusOK, check)
}

// GetHistory handles GET /api/v1/status/history
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := &history.Filter{}

	switch outcome := domain.CheckOutcome(q.Get("outcome")); outcome {
	case "", domain.OutcomeOK, domain.OutcomeFailed:
		filter.Outcome = outcome
	default:
		respondError(w, http.StatusBadRequest, "INVALID_OUTCOME", "Outcome must be ok or failed")
		return
	}

	if l := q.Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n <= 0 || n > maxHistoryLimit {
			respondError(w, http.StatusBadRequest, "INVALID_LIMIT", "Limit must be between 1 and 1000")
			return
		}
		filter.Limit = n
	}

	var err error
	if filter.From, err = parseTime(q.Get("from")); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_FROM", "from must be an RFC 3339 timestamp")
		return
	}
	if filter.To, err = parseTime(q.Get("to")); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_TO", "to must be an RFC 3339 timestamp")
		return
	}

	checks, err := h.history.List(r.Context(), filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "HISTORY_ERROR", "Failed to get history")
		return
	}

	respondJSON(w, http.StatusOK, checks)
}

// GetCheck handles GET /api/v1/status/history/{id}
func (h *Handler) GetCheck(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	check, err := h.history.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, history.ErrNotFound) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "Status check not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "HISTORY_ERROR", "Failed to get status check")
		return
	}

	respondJSON(w, http.StatusOK, check)
}

// GetSummary handles GET /api/v1/status/summary?since=24h
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	window := defaultSummaryRange
	if s := r.URL.Query().Get("since"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil || d <= 0 {
			respondError(w, http.StatusBadRequest, "INVALID_SINCE", "since must be a positive duration such as 24h")
			return
		}
		window = d
	}

	summary, err := h.history.Summary(r.Context(), time.Now().Add(-window))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "HISTORY_ERROR", "Failed to summarize history")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"since":   summary.Since,
		"total":   summary.Total,
		"ok":      summary.OK,
		"failed":  summary.Failed,
		"healthy": summary.Healthy,
		"uptime":  summary.Uptime(),
	})
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}
