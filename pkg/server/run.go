package server

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// Run binds the listener, serves until SIGINT/SIGTERM, then shuts down.
func (s *Server) Run() error {
	ln, err := s.Listen()
	if err != nil {
		return err
	}

	s.StartMetricsHTTP()
	if interval := s.cfg.Metrics.LogInterval; interval > 0 {
		s.metrics.StartPeriodicLog(interval, s.registry, s.ctx.Done())
	}

	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(ln) }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		slog.Info("shutting down...", "signal", sig.String())
		s.Shutdown()
		return <-errCh
	case err := <-errCh:
		s.Shutdown()
		return err
	}
}
