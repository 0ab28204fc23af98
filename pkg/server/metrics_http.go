package server

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// StartMetricsHTTP starts a lightweight HTTP server that exposes /metrics
// in Prometheus text exposition format, /stats as JSON, and /healthz. It runs
// in the background and shuts down when the server context is cancelled.
//
// Disabled unless Config.Metrics.Addr is set.
func (s *Server) StartMetricsHTTP() {
	addr := s.cfg.Metrics.Addr
	if addr == "" {
		return
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.metricsMux(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("metrics HTTP listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics HTTP error", "err", err)
		}
	}()

	go func() {
		<-s.ctx.Done()
		_ = srv.Close()
	}()
}

func (s *Server) metricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", s.handleMetrics)
	mux.HandleFunc("/stats", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, s.metrics.JSON(len(s.registry.Online())))
	})
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	return mux
}

// handleMetrics writes all metrics in Prometheus text exposition format.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	m := s.metrics
	uptime := time.Since(m.startTime).Seconds()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	// Write errors to http.ResponseWriter are non-actionable; suppress errcheck.
	write := func(name, help, mtype string, value int64) {
		_, _ = fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		_, _ = fmt.Fprintf(w, "# TYPE %s %s\n", name, mtype)
		_, _ = fmt.Fprintf(w, "%s %d\n", name, value)
	}

	_, _ = fmt.Fprintf(w, "# HELP linechat_uptime_seconds Server uptime in seconds.\n")
	_, _ = fmt.Fprintf(w, "# TYPE linechat_uptime_seconds gauge\n")
	_, _ = fmt.Fprintf(w, "linechat_uptime_seconds %f\n", uptime)

	write("linechat_users_online", "Users currently logged in.", "gauge",
		int64(len(s.registry.Online())))
	write("linechat_connections_active", "Current open connections.", "gauge",
		m.ActiveConnections.Load())
	write("linechat_connections_total", "Lifetime TCP connections accepted.", "counter",
		m.TotalConnections.Load())
	write("linechat_disconnects_total", "Total client disconnects.", "counter",
		m.TotalDisconnects.Load())
	write("linechat_slow_consumers_total", "Connections dropped for a full send queue.", "counter",
		m.SlowConsumers.Load())

	write("linechat_auth_success_total", "Successful logins.", "counter",
		m.SuccessfulAuths.Load())
	write("linechat_auth_failed_total", "Failed login attempts.", "counter",
		m.FailedAuths.Load())
	write("linechat_auth_duplicate_total", "Logins rejected because the user was already online.", "counter",
		m.DuplicateLogins.Load())

	write("linechat_chat_messages_total", "Broadcast chat lines relayed.", "counter",
		m.ChatMessages.Load())
	write("linechat_private_messages_total", "Private messages delivered.", "counter",
		m.PrivateMessages.Load())
	write("linechat_private_misses_total", "Private messages to users not online.", "counter",
		m.PrivateMisses.Load())
}
