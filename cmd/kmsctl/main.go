// Command kmsctl runs one-shot queries against a freshly brought-up stack.
//
// Usage:
//
//	kmsctl [-config file] <command> [flags]
//
// Commands:
//
//	probe       List devices, drivers and minors
//	resources   List object ids seen through a minor
//	inspect     Show objects through a minor
//	dumb        Create, map and destroy a dumb buffer
//	snapshot    Write a registry snapshot as JSON or CBOR
package main

import (
	"context"
	"flag"
	"io"
	"log/slog"
	"os"

	"github.com/google/subcommands"
)

var (
	configFile = flag.String("config", "", "Configuration file path (YAML)")
	verbose    = flag.Bool("v", false, "Log stack bring-up")
)

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(&probeCmd{out: os.Stdout}, "")
	subcommands.Register(&resourcesCmd{out: os.Stdout}, "")
	subcommands.Register(&inspectCmd{out: os.Stdout}, "")
	subcommands.Register(&dumbCmd{out: os.Stdout}, "")
	subcommands.Register(&snapshotCmd{out: os.Stdout}, "")

	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx := context.WithValue(context.Background(), envKey{}, env{configFile: *configFile, logger: logger})
	os.Exit(int(subcommands.Execute(ctx)))
}

type envKey struct{}

// env carries the global flags to the subcommands.
type env struct {
	configFile string
	logger     *slog.Logger
}

func envFrom(ctx context.Context) env {
	e, _ := ctx.Value(envKey{}).(env)
	if e.logger == nil {
		e.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return e
}
