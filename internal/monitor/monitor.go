// Package monitor polls the Wurm status endpoint and records every check
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/alexbotov/wurmstatus/internal/domain"
	"github.com/alexbotov/wurmstatus/internal/logger"
	"github.com/alexbotov/wurmstatus/pkg/wurm"
)

// StatusClient is the part of wurm.Client the monitor uses
type StatusClient interface {
	GetStatus(ctx context.Context) (*wurm.StatusResult, error)
	StatusURL() string
}

// Store persists status checks
type Store interface {
	Record(ctx context.Context, check *domain.StatusCheck) error
	Prune(ctx context.Context, olderThan time.Time) (int64, error)
}

// EventCallback is called with every check that becomes the latest one
type EventCallback func(check *domain.StatusCheck)

const pruneEvery = time.Minute

type Monitor struct {
	client    StatusClient
	store     Store
	interval  time.Duration
	retention time.Duration

	mu            sync.RWMutex
	last          *domain.StatusCheck
	seq           uint64
	lastSeq       uint64
	lastPruneTime time.Time
	eventCallback EventCallback
}

// New creates a monitor. A zero retention keeps history forever.
func New(client StatusClient, store Store, interval, retention time.Duration) *Monitor {
	return &Monitor{
		client:        client,
		store:         store,
		interval:      interval,
		retention:     retention,
		lastPruneTime: time.Now(),
	}
}

// SetEventCallback sets the callback notified about new checks
func (m *Monitor) SetEventCallback(cb EventCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.eventCallback = cb
}

// Last returns the most recent check, or nil before the first one
func (m *Monitor) Last() *domain.StatusCheck {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last
}

// Run polls until ctx is cancelled. The first check runs immediately.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.CheckNow(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CheckNow(ctx)
			m.prune(ctx)
		}
	}
}

// CheckNow performs one status check, records it and notifies the callback.
// It returns nil without recording anything when ctx ends before the check
// completes, since a cancelled request says nothing about the server.
// A check that finishes after a later-started one is recorded but does not
// replace Last.
func (m *Monitor) CheckNow(ctx context.Context) *domain.StatusCheck {
	m.mu.Lock()
	m.seq++
	seq := m.seq
	m.mu.Unlock()

	start := time.Now()
	status, err := m.client.GetStatus(ctx)
	if err != nil && ctx.Err() != nil {
		logger.Debug("Status check abandoned", "target", m.client.StatusURL(), "reason", ctx.Err())
		return nil
	}
	check := domain.NewStatusCheck(m.client.StatusURL(), status, err, time.Since(start))

	if err != nil {
		logger.Warn("Status check failed", "target", check.Target, "kind", check.ErrorKind, "error", check.ErrorMessage)
	} else {
		logger.Debug("Status check", "target", check.Target, "running", check.Running, "connected", check.Connected)
	}

	if m.store != nil {
		if err := m.store.Record(ctx, check); err != nil {
			logger.Warn("Record status check failed", "error", err)
		}
	}

	m.mu.Lock()
	latest := seq > m.lastSeq
	if latest {
		m.last = check
		m.lastSeq = seq
	}
	callback := m.eventCallback
	m.mu.Unlock()

	if latest && callback != nil {
		callback(check)
	}

	return check
}

func (m *Monitor) prune(ctx context.Context) {
	if m.retention <= 0 || m.store == nil || time.Since(m.lastPruneTime) < pruneEvery {
		return
	}

	now := time.Now()
	removed, err := m.store.Prune(ctx, now.Add(-m.retention))
	if err != nil {
		logger.Warn("Prune failed", "error", err)
		return
	}
	if removed > 0 {
		logger.Info("Pruned status history", "removed", removed)
	}
	m.lastPruneTime = now
}
