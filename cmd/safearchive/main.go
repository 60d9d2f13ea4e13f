// safearchive serves directories of build artifacts over HTTP.
//
// Every configured archive is indexed at startup. Files whose extension is
// not on the archive's safe list are served only while their content still
// matches the fingerprint recorded at indexing time. SIGHUP re-indexes all
// archives; SIGINT and SIGTERM shut the server down gracefully.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/meigma/safearchive/config"
)

func main() {
	if err := run(os.Args[1:], os.Stderr); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type flags struct {
	config        string
	listen        string
	metricsListen string
	logLevel      string
	logFormat     string
	compress      bool
}

func parseFlags(args []string, stderr io.Writer) (*flags, *pflag.FlagSet, error) {
	var f flags
	fs := pflag.NewFlagSet("safearchive", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVarP(&f.config, "config", "c", "", "path to the YAML config file (default: $"+config.EnvVar+")")
	fs.StringVar(&f.listen, "listen", "", "address to serve archives on")
	fs.StringVar(&f.metricsListen, "metrics-listen", "", "address to serve /metrics on")
	fs.StringVar(&f.logLevel, "log-level", "", "log level: debug, info, warn, error")
	fs.StringVar(&f.logFormat, "log-format", "", "log format: text or json")
	fs.BoolVar(&f.compress, "compress", false, "gzip responses for clients that accept it")
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	return &f, fs, nil
}

// applyFlags overrides config values with flags given on the command line.
func applyFlags(cfg *config.Config, f *flags, fs *pflag.FlagSet) error {
	if fs.Changed("listen") {
		cfg.Listen = f.listen
	}
	if fs.Changed("metrics-listen") {
		cfg.MetricsListen = f.metricsListen
	}
	if fs.Changed("log-level") {
		cfg.Log.Level = f.logLevel
	}
	if fs.Changed("log-format") {
		cfg.Log.Format = f.logFormat
	}
	if fs.Changed("compress") {
		cfg.Compress = f.compress
	}
	return cfg.Validate()
}

func newLogger(w io.Writer, lc config.LogConfig) (*slog.Logger, error) {
	level, err := lc.SlogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	switch lc.Format {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", lc.Format)
	}
}

func run(args []string, stderr io.Writer) error {
	f, fs, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	cfg, err := config.Load(f.config)
	if err != nil {
		return err
	}
	if err := applyFlags(cfg, f, fs); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger, err := newLogger(stderr, cfg.Log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	srv, err := newServer(ctx, cfg, logger, nil)
	if err != nil {
		return err
	}
	defer srv.Close()

	return srv.Run(ctx, hup)
}
