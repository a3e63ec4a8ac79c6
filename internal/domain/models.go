// Package domain contains core domain models for wurmstatus
package domain

import (
	"errors"
	"time"

	"github.com/alexbotov/wurmstatus/pkg/wurm"
)

// CheckOutcome represents the result of a single status check
type CheckOutcome string

const (
	OutcomeOK     CheckOutcome = "ok"
	OutcomeFailed CheckOutcome = "failed"
)

// StatusCheck is one recorded call to the Wurm status endpoint
type StatusCheck struct {
	ID              string         `json:"id" db:"id"`
	Target          string         `json:"target" db:"target"`
	CheckedAt       time.Time      `json:"checked_at" db:"checked_at"`
	Outcome         CheckOutcome   `json:"outcome" db:"outcome"`
	Running         bool           `json:"running" db:"running"`
	Connected       bool           `json:"connected" db:"connected"`
	RemoteTimeStamp string         `json:"remote_timestamp,omitempty" db:"remote_timestamp"`
	ErrorKind       wurm.ErrorKind `json:"error_kind,omitempty" db:"error_kind"`
	ErrorMessage    string         `json:"error_message,omitempty" db:"error_message"`
	LatencyMs       int64          `json:"latency_ms" db:"latency_ms"`
}

// NewStatusCheck builds a record from the result of wurm.Client.GetStatus
func NewStatusCheck(target string, status *wurm.StatusResult, err error, latency time.Duration) *StatusCheck {
	check := &StatusCheck{
		Target:    target,
		CheckedAt: time.Now().UTC(),
		LatencyMs: latency.Milliseconds(),
	}

	if err != nil {
		check.Outcome = OutcomeFailed
		check.ErrorMessage = err.Error()

		var apiErr *wurm.APIError
		if errors.As(err, &apiErr) {
			root := apiErr.Root()
			check.ErrorKind = root.Kind
			check.ErrorMessage = root.Message
		}
		return check
	}

	check.Outcome = OutcomeOK
	check.Running = status.Running
	check.Connected = status.Connected
	check.RemoteTimeStamp = status.TimeStamp
	return check
}

// Healthy reports whether the server was running and connected
func (c *StatusCheck) Healthy() bool {
	return c.Outcome == OutcomeOK && c.Running && c.Connected
}

// Summary aggregates status checks over a time window
type Summary struct {
	Since   time.Time `json:"since"`
	Total   int       `json:"total"`
	OK      int       `json:"ok"`
	Failed  int       `json:"failed"`
	Healthy int       `json:"healthy"`
}

// Uptime is the share of checks that found the server healthy
func (s Summary) Uptime() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Healthy) / float64(s.Total)
}
