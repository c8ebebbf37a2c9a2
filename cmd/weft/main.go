// Package main implements the weft command line. Weft hosts native
// components in-process: it loads extension manifests, attaches the
// components they provide, and runs the tick scheduler until interrupted.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/weftworks/weft/metric"
	"github.com/weftworks/weft/runtime"
)

const (
	version = "0.1.0"
	appName = "weft"
)

type cliConfig struct {
	manifests   []string
	extensions  []string
	baseDir     string
	listTypes   bool
	logLevel    string
	showVersion bool
}

func main() {
	if err := run(); err != nil {
		slog.Error("startup failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		return err
	}
	if cfg.showVersion {
		fmt.Printf("%s %s\n", appName, version)
		return nil
	}

	logger, err := newLogger(cfg.logLevel)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	registry := metric.NewRegistry()
	rt, err := runtime.New(
		runtime.WithLogger(logger),
		runtime.WithMetrics(registry),
	)
	if err != nil {
		return err
	}

	if len(cfg.extensions) > 0 || len(cfg.manifests) > 0 {
		if err := rt.LoadExtensions(cfg.extensions, cfg.manifests, cfg.baseDir); err != nil {
			return err
		}
	}

	if cfg.listTypes {
		names := rt.TypeNames()
		sort.Strings(names)
		for _, name := range names {
			fmt.Println(name)
		}
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("runtime starting", "version", version, "extensions", len(cfg.extensions)+len(cfg.manifests))
	if err := rt.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	logger.Info("runtime stopped")
	return nil
}

func parseFlags(args []string) (*cliConfig, error) {
	cfg := &cliConfig{}
	var manifests, extensions string

	fs := flag.NewFlagSet(appName, flag.ContinueOnError)
	fs.StringVar(&manifests, "manifests", "", "comma-separated extension manifest files")
	fs.StringVar(&extensions, "extensions", "", "comma-separated extension names to load directly")
	fs.StringVar(&cfg.baseDir, "base-dir", "", "base directory for relative extension paths")
	fs.BoolVar(&cfg.listTypes, "list-types", false, "print registered type names and exit")
	fs.StringVar(&cfg.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	fs.BoolVar(&cfg.showVersion, "version", false, "print version and exit")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg.manifests = splitList(manifests)
	cfg.extensions = splitList(extensions)
	return cfg, nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func newLogger(level string) (*slog.Logger, error) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		return nil, fmt.Errorf("unknown log level %q", level)
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})), nil
}
