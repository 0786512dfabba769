// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/ManuGH/zonectl/internal/config"
	"github.com/ManuGH/zonectl/internal/log"
)

// PerformStartupChecks validates the environment before any session is started.
func PerformStartupChecks(_ context.Context, cfg config.AppConfig) error {
	logger := log.WithComponent("startup-check")
	logger.Info().Msg("running pre-flight startup checks")

	if err := checkListenAddr(logger, cfg.API.ListenAddr); err != nil {
		return fmt.Errorf("api listen address check failed: %w", err)
	}
	if err := checkStore(logger, cfg.Store); err != nil {
		return fmt.Errorf("store check failed: %w", err)
	}
	if cfg.Notify.DefaultWebhook == "" && len(cfg.Notify.Webhooks) == 0 {
		logger.Warn().Msg("no notification webhooks configured; notifications are only logged")
	}

	logger.Info().Msg("all startup checks passed")
	return nil
}

func checkListenAddr(logger zerolog.Logger, addr string) error {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid listen address %q: %w", addr, err)
	}
	portNum, err := strconv.Atoi(port)
	if err != nil || portNum < 0 || portNum > 65535 {
		return fmt.Errorf("invalid listen port %q in %q", port, addr)
	}
	logger.Info().Str("addr", addr).Msg("api listen address is valid")
	return nil
}

func checkStore(logger zerolog.Logger, cfg config.StoreConfig) error {
	switch cfg.Backend {
	case "memory":
		logger.Warn().
			Str("store_backend", cfg.Backend).
			Msg("in-memory store; servers, saves and mods are lost on restart")
		return nil
	case "sqlite":
		return checkDirWritable(logger, filepath.Dir(cfg.Path))
	case "badger":
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return fmt.Errorf("create badger directory %s: %w", cfg.Path, err)
		}
		return checkDirWritable(logger, cfg.Path)
	default:
		return nil
	}
}

func checkDirWritable(logger zerolog.Logger, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("directory does not exist: %s", path)
		}
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	testFile := filepath.Join(path, ".write_test")
	if err := os.WriteFile(testFile, []byte("ok"), 0o600); err != nil {
		return fmt.Errorf("directory is not writable: %s (error: %v)", path, err)
	}
	_ = os.Remove(testFile)

	logger.Info().Str("path", path).Msg("store directory is writable")
	return nil
}
