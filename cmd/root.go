// Package cmd is the diskmond command line: flag parsing, logger and data
// directory setup, and the daemon run loop.
package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ftahirops/diskmon/collector"
	"github.com/ftahirops/diskmon/config"
	"github.com/ftahirops/diskmon/engine"
	"github.com/ftahirops/diskmon/persist"
	"github.com/ftahirops/diskmon/provider"
	"github.com/ftahirops/diskmon/provider/replay"
)

// Version is set at build time via ldflags.
var Version = "0.3.0"

// Options holds CLI configuration.
type Options struct {
	ConfigPath  string
	DataDir     string
	MetricsAddr string
	RecordPath  string
	ReplayPath  string
	Duration    time.Duration
	Debug       bool
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `diskmond v%s — continuous storage health monitor for Linux

Usage:
  diskmond [OPTIONS]

Options:
  -config PATH      Configuration file (default: none, built-in thresholds)
  -datadir PATH     State directory (default: $XDG_DATA_HOME/diskmon)
  -metrics ADDR     Serve Prometheus metrics on ADDR (default: :9572, "" = off)
  -record FILE      Record all readings to FILE while monitoring
  -replay FILE      Monitor a recorded file instead of live hardware
  -duration D       Exit after D (e.g. 30m); mainly for replay runs
  -debug            Verbose logging
  -version          Print version and exit

Examples:
  sudo diskmond                          Live monitoring, default thresholds
  sudo diskmond -config /etc/diskmon.yaml
  sudo diskmond -record /var/log/diskmon.frames
  diskmond -replay /var/log/diskmon.frames -duration 10s
`, Version)
}

// Run parses flags and runs the daemon until a signal or -duration elapses.
func Run() error {
	var opts Options
	var showVersion bool
	flag.StringVar(&opts.ConfigPath, "config", "", "configuration file")
	flag.StringVar(&opts.DataDir, "datadir", "", "state directory")
	flag.StringVar(&opts.MetricsAddr, "metrics", ":9572", "metrics listen address")
	flag.StringVar(&opts.RecordPath, "record", "", "record readings to file")
	flag.StringVar(&opts.ReplayPath, "replay", "", "replay a recorded file")
	flag.DurationVar(&opts.Duration, "duration", 0, "exit after duration")
	flag.BoolVar(&opts.Debug, "debug", false, "verbose logging")
	flag.BoolVar(&showVersion, "version", false, "print version")
	flag.Usage = printUsage
	flag.Parse()

	if showVersion {
		fmt.Printf("diskmond v%s\n", Version)
		return nil
	}
	return runDaemon(opts)
}

func runDaemon(opts Options) error {
	log, err := newLogger(opts.Debug)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()
	sugar := log.Sugar()

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	conf := config.NewStore(opts.ConfigPath, cfg, sugar)

	dataDir := opts.DataDir
	if dataDir == "" {
		dataDir, err = persist.DefaultDir()
		if err != nil {
			return err
		}
	}
	files, err := persist.NewFiles(dataDir)
	if err != nil {
		return err
	}

	providers, closer, err := buildProviders(opts)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer()
	}

	metrics := engine.NewMetrics()
	eng := engine.New(providers, conf, files, metrics, sugar)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if opts.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Duration)
		defer cancel()
	}

	if opts.MetricsAddr != "" {
		go serveMetrics(ctx, opts.MetricsAddr, metrics, sugar)
	}

	sugar.Infow("diskmond starting",
		"version", Version, "datadir", dataDir,
		"config", opts.ConfigPath, "replay", opts.ReplayPath)
	return eng.Run(ctx)
}

// buildProviders selects live collectors or a replay player, optionally
// wrapped with a frame recorder.
func buildProviders(opts Options) (provider.Set, func(), error) {
	var set provider.Set
	if opts.ReplayPath != "" {
		player, err := replay.Open(opts.ReplayPath)
		if err != nil {
			return set, nil, fmt.Errorf("open replay file: %w", err)
		}
		set = player.Set()
	} else {
		set = collector.Providers()
	}

	if opts.RecordPath == "" {
		return set, nil, nil
	}
	f, err := os.OpenFile(opts.RecordPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return set, nil, fmt.Errorf("open record file: %w", err)
	}
	return replay.Recording(set, replay.NewRecorder(f)), func() { f.Close() }, nil
}

func newLogger(debug bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.DisableStacktrace = true
	return cfg.Build()
}

func serveMetrics(ctx context.Context, addr string, metrics *engine.Metrics, log *zap.SugaredLogger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	log.Infow("metrics listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Warnw("metrics server stopped", "error", err)
	}
}
