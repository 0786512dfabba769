// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ManuGH/zonectl/internal/domain/session/model"
	"github.com/ManuGH/zonectl/internal/domain/session/ports"
	"github.com/ManuGH/zonectl/internal/persistence/sqlite"
)

const schemaVersion = 1

// SqliteStore implements ports.Store using SQLite.
type SqliteStore struct {
	DB *sql.DB
}

var _ ports.Store = (*SqliteStore)(nil)

// NewSqliteStore opens the database at dbPath and applies the schema.
func NewSqliteStore(dbPath string) (*SqliteStore, error) {
	db, err := sqlite.Open(dbPath, sqlite.DefaultConfig())
	if err != nil {
		return nil, err
	}

	s := &SqliteStore{DB: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("session store: migration failed: %w", err)
	}
	return s, nil
}

func (s *SqliteStore) Close() error {
	return s.DB.Close()
}

// Check runs a quick integrity check for the readiness probe.
func (s *SqliteStore) Check(ctx context.Context) error {
	issues, err := sqlite.VerifyIntegrity(ctx, s.DB, "quick")
	if err != nil {
		return err
	}
	if len(issues) > 0 {
		return fmt.Errorf("sqlite integrity: %v", issues)
	}
	return nil
}

func (s *SqliteStore) migrate() error {
	var currentVersion int
	if err := s.DB.QueryRow("PRAGMA user_version").Scan(&currentVersion); err != nil {
		return err
	}
	if currentVersion >= schemaVersion {
		return nil
	}

	tx, err := s.DB.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	schema := `
	CREATE TABLE IF NOT EXISTS servers (
		guild_id TEXT NOT NULL,
		token TEXT NOT NULL,
		record_json TEXT NOT NULL,
		updated_at_ms INTEGER NOT NULL,
		PRIMARY KEY (guild_id, token)
	);

	CREATE TABLE IF NOT EXISTS saves (
		guild_id TEXT NOT NULL,
		token TEXT NOT NULL,
		slots_json TEXT NOT NULL,
		PRIMARY KEY (guild_id, token)
	);

	CREATE TABLE IF NOT EXISTS mods (
		guild_id TEXT NOT NULL,
		token TEXT NOT NULL,
		position INTEGER NOT NULL,
		name TEXT NOT NULL,
		record_json TEXT NOT NULL,
		PRIMARY KEY (guild_id, token, name)
	);

	CREATE INDEX IF NOT EXISTS idx_mods_position ON mods(guild_id, token, position);
	`
	if _, err := tx.Exec(schema); err != nil {
		return err
	}
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SqliteStore) GetServer(ctx context.Context, key model.ResourceKey) (model.Server, error) {
	var raw []byte
	err := s.DB.QueryRowContext(ctx,
		"SELECT record_json FROM servers WHERE guild_id = ? AND token = ?", key.GuildID, key.Token).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Server{}, ports.ErrNotFound
	}
	if err != nil {
		return model.Server{}, fmt.Errorf("get server %s: %w", key, err)
	}
	return decode[model.Server](raw)
}

func (s *SqliteStore) ListServers(ctx context.Context) ([]model.Server, error) {
	rows, err := s.DB.QueryContext(ctx, "SELECT record_json FROM servers ORDER BY guild_id, token")
	if err != nil {
		return nil, fmt.Errorf("list servers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Server
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		srv, err := decode[model.Server](raw)
		if err != nil {
			return nil, err
		}
		out = append(out, srv)
	}
	return out, rows.Err()
}

func (s *SqliteStore) PutServer(ctx context.Context, srv model.Server) error {
	if err := validateServer(srv); err != nil {
		return err
	}
	raw, err := json.Marshal(srv)
	if err != nil {
		return err
	}
	_, err = s.DB.ExecContext(ctx, `
		INSERT INTO servers (guild_id, token, record_json, updated_at_ms) VALUES (?, ?, ?, ?)
		ON CONFLICT(guild_id, token) DO UPDATE SET record_json = excluded.record_json, updated_at_ms = excluded.updated_at_ms`,
		srv.GuildID, srv.Token, string(raw), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("put server %s: %w", srv.Key(), err)
	}
	return nil
}

func (s *SqliteStore) DeleteServer(ctx context.Context, key model.ResourceKey) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"servers", "saves", "mods"} {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM "+table+" WHERE guild_id = ? AND token = ?", key.GuildID, key.Token); err != nil {
			return fmt.Errorf("delete %s for %s: %w", table, key, err)
		}
	}
	return tx.Commit()
}

func (s *SqliteStore) GetSaves(ctx context.Context, key model.ResourceKey) (model.Saves, error) {
	var raw []byte
	err := s.DB.QueryRowContext(ctx,
		"SELECT slots_json FROM saves WHERE guild_id = ? AND token = ?", key.GuildID, key.Token).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Saves{}, ports.ErrNotFound
	}
	if err != nil {
		return model.Saves{}, fmt.Errorf("get saves %s: %w", key, err)
	}
	slots, err := decode[map[model.SlotID]string](raw)
	if err != nil {
		return model.Saves{}, err
	}
	return model.Saves{Key: key, Slots: slots}, nil
}

func (s *SqliteStore) PutSaves(ctx context.Context, saves model.Saves) error {
	raw, err := json.Marshal(saves.Slots)
	if err != nil {
		return err
	}
	_, err = s.DB.ExecContext(ctx, `
		INSERT INTO saves (guild_id, token, slots_json) VALUES (?, ?, ?)
		ON CONFLICT(guild_id, token) DO UPDATE SET slots_json = excluded.slots_json`,
		saves.Key.GuildID, saves.Key.Token, string(raw))
	if err != nil {
		return fmt.Errorf("put saves %s: %w", saves.Key, err)
	}
	return nil
}

func (s *SqliteStore) ListMods(ctx context.Context, key model.ResourceKey) ([]model.Mod, error) {
	rows, err := s.DB.QueryContext(ctx,
		"SELECT record_json FROM mods WHERE guild_id = ? AND token = ? ORDER BY position", key.GuildID, key.Token)
	if err != nil {
		return nil, fmt.Errorf("list mods %s: %w", key, err)
	}
	defer func() { _ = rows.Close() }()

	out := []model.Mod{}
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		m, err := decode[model.Mod](raw)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *SqliteStore) PutMod(ctx context.Context, key model.ResourceKey, mod model.Mod) error {
	raw, err := json.Marshal(mod)
	if err != nil {
		return err
	}
	res, err := s.DB.ExecContext(ctx,
		"UPDATE mods SET record_json = ? WHERE guild_id = ? AND token = ? AND name = ?",
		string(raw), key.GuildID, key.Token, mod.Name)
	if err != nil {
		return fmt.Errorf("put mod %s: %w", mod.Name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("mod %q: %w", mod.Name, ports.ErrNotFound)
	}
	return nil
}

func (s *SqliteStore) ReplaceMods(ctx context.Context, key model.ResourceKey, mods []model.Mod) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM mods WHERE guild_id = ? AND token = ?", key.GuildID, key.Token); err != nil {
		return fmt.Errorf("replace mods %s: %w", key, err)
	}
	for i, m := range mods {
		raw, err := json.Marshal(m)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT OR REPLACE INTO mods (guild_id, token, position, name, record_json) VALUES (?, ?, ?, ?, ?)",
			key.GuildID, key.Token, i, m.Name, string(raw)); err != nil {
			return fmt.Errorf("replace mods %s: %w", key, err)
		}
	}
	return tx.Commit()
}
