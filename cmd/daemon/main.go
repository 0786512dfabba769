// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ManuGH/zonectl/internal/config"
	"github.com/ManuGH/zonectl/internal/daemon"
	"github.com/ManuGH/zonectl/internal/health"
	xglog "github.com/ManuGH/zonectl/internal/log"
	buildinfo "github.com/ManuGH/zonectl/internal/version"
)

var version = buildinfo.Version

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "config":
			os.Exit(runConfigCLI(os.Args[2:], os.Stdout, os.Stderr))
		case "healthcheck":
			os.Exit(runHealthcheckCLI(os.Args[2:], os.Stdout, os.Stderr))
		}
	}

	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Println(buildinfo.String())
		os.Exit(0)
	}

	// Create a context that listens for the interrupt signal from the OS
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	path := resolveConfigPath(*configPath)

	// Load configuration with precedence: ENV > File > Defaults
	loader := config.NewLoader(path, version)
	cfg, err := loader.Load()
	if err != nil {
		xglog.Configure(xglog.Config{Level: "info", Service: "zonectl", Version: version})
		xglog.WithComponent("daemon").Fatal().
			Err(err).
			Str("event", "config.load_failed").
			Str("config_path", path).
			Msg("failed to load configuration")
	}

	xglog.Configure(xglog.Config{
		Level:   cfg.LogLevel,
		Service: "zonectl",
		Version: cfg.Version,
	})
	logger := xglog.WithComponent("daemon")

	if path != "" {
		logger.Info().
			Str("event", "config.loaded").
			Str("source", "file").
			Str("path", path).
			Msg("loaded configuration from file")
	} else {
		logger.Info().
			Str("event", "config.loaded").
			Str("source", "env+defaults").
			Msg("loaded configuration from environment and defaults")
	}

	if err := health.PerformStartupChecks(ctx, cfg); err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "startup.check_failed").
			Msg("Startup checks failed. Please verify configuration and permissions.")
	}

	logger.Info().
		Str("event", "startup").
		Str("version", version).
		Str("commit", buildinfo.Commit).
		Str("build_date", buildinfo.Date).
		Str("addr", cfg.API.ListenAddr).
		Str("store_backend", cfg.Store.Backend).
		Int("servers", len(cfg.Servers)).
		Msg("starting zonectl")

	// Sessions outlive the signal context so shutdown hooks can stop them in order.
	runtimeCtx, cancelRuntime := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelRuntime()

	rt, err := daemon.Bootstrap(runtimeCtx, cfg, daemon.Options{})
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "bootstrap.failed").
			Msg("failed to start sessions")
	}

	mgr, err := daemon.NewManager(cfg.API, daemon.Deps{
		Logger:     logger,
		APIHandler: rt.Handler,
	})
	if err != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = rt.Supervisor.Shutdown(shutdownCtx)
		logger.Fatal().
			Err(err).
			Str("event", "manager.creation.failed").
			Msg("failed to create daemon manager")
	}
	rt.RegisterShutdownHooks(mgr)

	cfgHolder := config.NewConfigHolder(cfg, loader, path)
	app := daemon.NewApp(logger, mgr, cfgHolder, rt, rt.Relay.Run)
	if err := app.Run(ctx); err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "manager.failed").
			Msg("daemon app failed")
	}

	logger.Info().Msg("server exiting")
}

// resolveConfigPath prefers the flag, then ZONECTL_CONFIG.
func resolveConfigPath(flagValue string) string {
	if p := strings.TrimSpace(flagValue); p != "" {
		return p
	}
	return strings.TrimSpace(config.ParseString(config.EnvPrefix+"CONFIG", ""))
}
