package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/meigma/safearchive"
	"github.com/meigma/safearchive/config"
	archivehttp "github.com/meigma/safearchive/http"
	"github.com/meigma/safearchive/metrics"
)

const (
	readHeaderTimeout = 10 * time.Second
	idleTimeout       = 2 * time.Minute
	shutdownTimeout   = 15 * time.Second
)

type server struct {
	cfg      *config.Config
	logger   *slog.Logger
	archives []*safearchive.Archive
	handler  http.Handler
	metrics  http.Handler
}

// newServer indexes every configured archive and builds the HTTP handlers.
// A nil registry gets a private one with Go runtime and process collectors.
func newServer(ctx context.Context, cfg *config.Config, logger *slog.Logger, reg *prometheus.Registry) (*server, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	prom, err := metrics.NewProm("", reg)
	if err != nil {
		return nil, err
	}

	s := &server{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics.Handler(reg),
	}
	mux := http.NewServeMux()
	for _, ac := range cfg.Archives {
		opts := append(ac.Options(),
			safearchive.WithLogger(logger),
			safearchive.WithMetrics(prom),
		)
		a, err := safearchive.New(ctx, ac.Root, opts...)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("archive %s: %w", ac.MountName(), err)
		}
		s.archives = append(s.archives, a)
		archivehttp.NewHandler(a, archivehttp.WithLogger(logger)).Mount(mux)
	}

	s.handler = mux
	if cfg.Compress {
		s.handler = gzhttp.GzipHandler(mux)
	}
	return s, nil
}

// Reindex rescans every archive. Failures are logged and leave the previous
// snapshot of that archive in service.
func (s *server) Reindex(ctx context.Context) error {
	var errs []error
	for _, a := range s.archives {
		if _, err := a.Reindex(ctx); err != nil {
			s.logger.Error("reindex failed",
				slog.String("archive", a.URLName()),
				slog.Any("error", err))
			errs = append(errs, fmt.Errorf("archive %s: %w", a.URLName(), err))
		}
	}
	return errors.Join(errs...)
}

// Run serves until ctx is done, re-indexing whenever hup fires.
func (s *server) Run(ctx context.Context, hup <-chan os.Signal) error {
	servers := []*http.Server{s.httpServer(s.cfg.Listen, s.handler)}
	if s.cfg.MetricsListen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", s.metrics)
		servers = append(servers, s.httpServer(s.cfg.MetricsListen, mux))
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, hs := range servers {
		g.Go(func() error {
			s.logger.Info("listening", slog.String("addr", hs.Addr))
			if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serve %s: %w", hs.Addr, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return s.shutdown(servers)
			case <-hup:
				s.logger.Info("reindexing on signal")
				_ = s.Reindex(gctx)
			}
		}
	})
	return g.Wait()
}

func (s *server) httpServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}
}

func (s *server) shutdown(servers []*http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.logger.Info("shutting down")
	var errs []error
	for _, hs := range servers {
		if err := hs.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown %s: %w", hs.Addr, err))
		}
	}
	return errors.Join(errs...)
}

// Close releases every archive's root handle.
func (s *server) Close() {
	for _, a := range s.archives {
		_ = a.Close()
	}
}
