// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"fmt"
	"slices"

	"github.com/google/renameio/v2"
	"gopkg.in/yaml.v3"

	xglog "github.com/ManuGH/zonectl/internal/log"
)

const maskedValue = "***"

// MaskSecrets returns a copy of cfg with credentials and webhook URLs
// replaced. Server tokens are kept since they identify resources.
func MaskSecrets(cfg AppConfig) AppConfig {
	out := cfg
	if out.Store.Redis.Password != "" {
		out.Store.Redis.Password = maskedValue
	}
	if out.Notify.DefaultWebhook != "" {
		out.Notify.DefaultWebhook = maskedValue
	}
	if len(cfg.Notify.Webhooks) > 0 {
		out.Notify.Webhooks = make(map[string]string, len(cfg.Notify.Webhooks))
		for guild := range cfg.Notify.Webhooks {
			out.Notify.Webhooks[guild] = maskedValue
		}
	}
	out.Servers = slices.Clone(cfg.Servers)
	return out
}

// Marshal renders cfg as a single YAML document that Loader accepts.
func Marshal(cfg AppConfig) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteFile atomically replaces path with the rendered configuration.
func WriteFile(path string, cfg AppConfig) error {
	data, err := Marshal(cfg)
	if err != nil {
		return err
	}

	pendingFile, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o600))
	if err != nil {
		return fmt.Errorf("create pending config file: %w", err)
	}
	defer func() {
		if err := pendingFile.Cleanup(); err != nil {
			xglog.WithComponent("config").Debug().Err(err).Msg("cleanup pending config file")
		}
	}()

	if _, err := pendingFile.Write(data); err != nil {
		return fmt.Errorf("write config data: %w", err)
	}
	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace config file: %w", err)
	}
	return nil
}
