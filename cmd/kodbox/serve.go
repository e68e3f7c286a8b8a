package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/vango-dev/kodbox/internal/config"
	"github.com/vango-dev/kodbox/pkg/httpapi"
	"github.com/vango-dev/kodbox/pkg/store"
)

const shutdownTimeout = 10 * time.Second

// serveOptions are the serve command's flags.
type serveOptions struct {
	host       string
	port       int
	metrics    bool
	newSession bool
}

func serveCmd(opts *rootOptions) *cobra.Command {
	var so serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the store over HTTP",
		Long: `Serve one store over HTTP until interrupted.

The store uses the same slot as the other commands, so a restarted server
recovers what it persisted and sees state written with "kodbox set".

Routes:
  GET/PUT/DELETE /state/{key}, GET /state, POST /touch,
  GET /inspect, GET /watch (websocket), GET /metrics

Examples:
  kodbox serve
  kodbox serve --backend=sqlite --port=8080
  kodbox serve --metrics
  kodbox serve --new-session`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			cmd.SetContext(ctx)

			return runServe(cmd, opts, so)
		},
	}

	cmd.Flags().IntVarP(&so.port, "port", "p", 0, "Port to listen on (default from config)")
	cmd.Flags().StringVarP(&so.host, "host", "H", "", "Host to bind to (default from config)")
	cmd.Flags().BoolVar(&so.metrics, "metrics", false, "Expose Prometheus metrics")
	cmd.Flags().BoolVar(&so.newSession, "new-session", false, "Mirror into a freshly generated session instead of the configured one")

	return cmd
}

// server is an opened env and the HTTP handler serving its store.
type server struct {
	*env
	handler http.Handler
}

// newServer opens the env for cfg and builds its handler. With metrics, the
// store's collectors and the /metrics endpoint share one registry.
func newServer(cmd *cobra.Command, cfg *config.Config, so serveOptions) (*server, error) {
	if so.newSession {
		cfg.Mirror.Session = uuid.NewString()
	}
	if so.host != "" {
		cfg.Server.Host = so.host
	}
	if so.port > 0 {
		cfg.Server.Port = so.port
	}

	var storeOpts []store.Option
	var handlerOpts []httpapi.Option
	if so.metrics || cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		storeOpts = append(storeOpts, store.WithMetrics(store.NewMetrics(
			store.WithRegistry(reg),
			store.WithNamespace(cfg.Metrics.Namespace),
		)))
		handlerOpts = append(handlerOpts, httpapi.WithGatherer(reg), httpapi.WithMetricsPath(cfg.Metrics.Path))
	}

	e, err := openEnv(cmd, cfg, storeOpts...)
	if err != nil {
		return nil, err
	}
	if so.newSession {
		e.logger.Info("generated session id", "session", cfg.Mirror.Session)
	}

	handlerOpts = append(handlerOpts, httpapi.WithLogger(e.logger))
	return &server{env: e, handler: httpapi.NewHandler(e.store, handlerOpts...)}, nil
}

func runServe(cmd *cobra.Command, opts *rootOptions, so serveOptions) error {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}

	srv, err := newServer(cmd, cfg, so)
	if err != nil {
		return err
	}
	defer srv.Close()

	addr := srv.cfg.Address()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	success(cmd, "Serving on http://%s", ln.Addr())
	info(cmd, "backend: %s, slot: %s", srv.cfg.Mirror.Backend, srv.slot.Key())

	return serveUntilDone(cmd.Context(), &http.Server{
		Handler:           srv.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}, ln, srv.logger)
}

// serveUntilDone serves on ln until ctx is done, then shuts hs down
// gracefully.
func serveUntilDone(ctx context.Context, hs *http.Server, ln net.Listener, logger *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- hs.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return hs.Shutdown(shutdownCtx)
}
