package server

import (
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"
)

// Metrics tracks server runtime statistics.
// All counters use atomic operations for lock-free concurrent access.
type Metrics struct {
	startTime time.Time

	// Connection counters
	TotalConnections  atomic.Int64 // lifetime TCP connections accepted
	ActiveConnections atomic.Int64 // current open connections, logged in or not
	TotalDisconnects  atomic.Int64 // connections closed for any reason
	SlowConsumers     atomic.Int64 // connections dropped because their send queue filled

	// Auth counters
	SuccessfulAuths atomic.Int64
	FailedAuths     atomic.Int64 // bad credentials or malformed LOGIN lines
	DuplicateLogins atomic.Int64 // valid credentials for a user already online

	// Routing counters
	ChatMessages    atomic.Int64 // broadcast chat lines relayed
	PrivateMessages atomic.Int64 // private messages delivered
	PrivateMisses   atomic.Int64 // private messages to users not online
}

// NewMetrics creates a new Metrics instance with the start time set to now.
func NewMetrics() *Metrics {
	return &Metrics{
		startTime: time.Now(),
	}
}

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	Uptime        string `json:"uptime"`
	UptimeSeconds int64  `json:"uptime_seconds"`

	UsersOnline       int   `json:"users_online"`
	ActiveConnections int64 `json:"active_connections"`
	TotalConnections  int64 `json:"total_connections"`
	TotalDisconnects  int64 `json:"total_disconnects"`
	SlowConsumers     int64 `json:"slow_consumers"`

	SuccessfulAuths int64 `json:"successful_auths"`
	FailedAuths     int64 `json:"failed_auths"`
	DuplicateLogins int64 `json:"duplicate_logins"`

	ChatMessages    int64 `json:"chat_messages"`
	PrivateMessages int64 `json:"private_messages"`
	PrivateMisses   int64 `json:"private_misses"`
}

// Snapshot returns a read-consistent snapshot of all metrics. online is the
// current number of logged-in users, which lives in the registry.
func (m *Metrics) Snapshot(online int) MetricsSnapshot {
	uptime := time.Since(m.startTime)
	return MetricsSnapshot{
		Uptime:            uptime.Truncate(time.Second).String(),
		UptimeSeconds:     int64(uptime.Seconds()),
		UsersOnline:       online,
		ActiveConnections: m.ActiveConnections.Load(),
		TotalConnections:  m.TotalConnections.Load(),
		TotalDisconnects:  m.TotalDisconnects.Load(),
		SlowConsumers:     m.SlowConsumers.Load(),
		SuccessfulAuths:   m.SuccessfulAuths.Load(),
		FailedAuths:       m.FailedAuths.Load(),
		DuplicateLogins:   m.DuplicateLogins.Load(),
		ChatMessages:      m.ChatMessages.Load(),
		PrivateMessages:   m.PrivateMessages.Load(),
		PrivateMisses:     m.PrivateMisses.Load(),
	}
}

// JSON returns the metrics snapshot as a JSON string.
func (m *Metrics) JSON(online int) string {
	data, err := json.MarshalIndent(m.Snapshot(online), "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

// LogSummary writes a metrics summary to the logger.
func (m *Metrics) LogSummary(online int) {
	s := m.Snapshot(online)
	slog.Info("metrics",
		"uptime", s.Uptime,
		"users_online", s.UsersOnline,
		"connections", s.ActiveConnections,
		"total_connections", s.TotalConnections,
		"chat_msgs", s.ChatMessages,
		"private_msgs", s.PrivateMessages,
		"failed_auths", s.FailedAuths,
	)
}

// StartPeriodicLog starts a goroutine that logs metrics every interval.
// It stops when the done channel is closed.
func (m *Metrics) StartPeriodicLog(interval time.Duration, reg *Registry, done <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				m.LogSummary(len(reg.Online()))
			}
		}
	}()
}
