// Command kms-device brings up the mode-setting stack and keeps it running.
//
// It loads the configuration, registers the configured drivers, probes the
// GPUs, and serves sessions through an optional interactive shell. The
// topology is compared with the previously saved state on start and saved
// again on exit.
//
// Usage:
//
//	kms-device [flags]
//
// Flags:
//
//	-config string      Configuration file path (YAML)
//	-log-level string   Log level: debug, info, warn, error (default "info")
//	-trace string       Trace file path (overrides the configuration)
//	-state-file string  Topology state file (overrides the configuration)
//	-interactive        Start the interactive shell
//
// Examples:
//
//	# Start with the built-in simpledrm device
//	kms-device -interactive
//
//	# Start from a config file and trace every command
//	kms-device -config /etc/kms/kms.yaml -trace /var/log/kms/card0.klog
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/kms-core/kms-go/cmd/kms-device/interactive"
	"github.com/kms-core/kms-go/internal/bringup"
	"github.com/kms-core/kms-go/pkg/config"
	"github.com/kms-core/kms-go/pkg/inspect"
	"github.com/kms-core/kms-go/pkg/persistence"
)

// Options holds the command-line flags.
type Options struct {
	ConfigFile  string
	LogLevel    string
	TracePath   string
	StateFile   string
	Interactive bool
}

var opts Options

func init() {
	flag.StringVar(&opts.ConfigFile, "config", "", "Configuration file path (YAML)")
	flag.StringVar(&opts.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flag.StringVar(&opts.TracePath, "trace", "", "Trace file path (overrides the configuration)")
	flag.StringVar(&opts.StateFile, "state-file", "", "Topology state file (overrides the configuration)")
	flag.BoolVar(&opts.Interactive, "interactive", false, "Start the interactive shell")
}

func main() {
	flag.Parse()

	level, err := parseLevel(opts.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := loadConfig()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sys, err := bringup.Start(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start", "error", err)
		os.Exit(1)
	}

	var store *persistence.TopologyStore
	if cfg.StateFile != "" {
		store = persistence.NewTopologyStore(cfg.StateFile)
		compareSaved(logger, store, sys)
	}

	if opts.Interactive {
		shell, err := interactive.New(sys, store)
		if err != nil {
			logger.Error("failed to start shell", "error", err)
			os.Exit(1)
		}
		logger = slog.New(slog.NewTextHandler(shell.Stdout(), &slog.HandlerOptions{Level: level}))
		go shell.Run(ctx, cancel)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("received signal", "signal", sig)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	if store != nil {
		if err := store.Save(persistence.Capture(sys.Devices)); err != nil {
			logger.Error("failed to save state", "path", store.Path(), "error", err)
		}
	}
	if err := sys.Close(); err != nil {
		logger.Error("error during shutdown", "error", err)
	}
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}

// loadConfig reads the config file if given and applies flag overrides.
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if opts.ConfigFile != "" {
		var err error
		if cfg, err = config.Load(opts.ConfigFile); err != nil {
			return nil, err
		}
	}
	if opts.TracePath != "" {
		cfg.Trace.Path = opts.TracePath
	}
	if opts.StateFile != "" {
		cfg.StateFile = opts.StateFile
	}
	return cfg, cfg.Validate()
}

// compareSaved logs how the probed topology differs from the saved one.
func compareSaved(logger *slog.Logger, store *persistence.TopologyStore, sys *bringup.System) {
	saved, err := store.Load()
	if err != nil {
		logger.Warn("ignoring saved state", "path", store.Path(), "error", err)
		return
	}
	if saved == nil {
		logger.Info("no saved state", "path", store.Path())
		return
	}
	for _, rec := range persistence.Capture(sys.Devices).Devices {
		old, ok := saved.Device(rec.Index)
		if !ok {
			logger.Info("new device", "index", rec.Index, "driver", rec.Driver)
			continue
		}
		if old.Driver != rec.Driver {
			logger.Warn("driver changed", "index", rec.Index, "was", old.Driver, "now", rec.Driver)
		}
		if d := inspect.Diff(old.Snapshot, rec.Snapshot); d != "" {
			logger.Info("topology changed since last run", "index", rec.Index, "diff", d)
		}
	}
}
