// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ManuGH/zonectl/internal/domain/session/model"
	"github.com/ManuGH/zonectl/internal/domain/session/ports"
)

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// RedisStore keeps each record as a JSON string. Server keys are indexed
// in a set so ListServers avoids SCAN.
type RedisStore struct {
	client *redis.Client
	prefix string
}

var _ ports.Store = (*RedisStore)(nil)

// NewRedisStore connects and pings the server.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return newRedisStore(client, cfg.KeyPrefix), nil
}

func newRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "zonectl"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) indexKey() string { return s.prefix + ":servers" }

func (s *RedisStore) key(kind string, key model.ResourceKey) string {
	return s.prefix + ":" + kind + ":" + key.ID()
}

func (s *RedisStore) Close() error { return s.client.Close() }

// Check pings the server for the readiness probe.
func (s *RedisStore) Check(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) GetServer(ctx context.Context, key model.ResourceKey) (model.Server, error) {
	raw, err := s.client.Get(ctx, s.key("server", key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.Server{}, ports.ErrNotFound
	}
	if err != nil {
		return model.Server{}, fmt.Errorf("get server %s: %w", key, err)
	}
	return decode[model.Server](raw)
}

func (s *RedisStore) ListServers(ctx context.Context) ([]model.Server, error) {
	ids, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list servers: %w", err)
	}
	sort.Strings(ids)
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.prefix + ":server:" + id
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("list servers: %w", err)
	}

	out := make([]model.Server, 0, len(vals))
	for _, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue
		}
		srv, err := decode[model.Server]([]byte(str))
		if err != nil {
			return nil, err
		}
		out = append(out, srv)
	}
	return out, nil
}

func (s *RedisStore) PutServer(ctx context.Context, srv model.Server) error {
	if err := validateServer(srv); err != nil {
		return err
	}
	raw, err := json.Marshal(srv)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, s.key("server", srv.Key()), raw, 0)
		p.SAdd(ctx, s.indexKey(), srv.Key().ID())
		return nil
	})
	if err != nil {
		return fmt.Errorf("put server %s: %w", srv.Key(), err)
	}
	return nil
}

func (s *RedisStore) DeleteServer(ctx context.Context, key model.ResourceKey) error {
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, s.key("server", key), s.key("saves", key), s.key("mods", key))
		p.SRem(ctx, s.indexKey(), key.ID())
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete server %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) GetSaves(ctx context.Context, key model.ResourceKey) (model.Saves, error) {
	raw, err := s.client.Get(ctx, s.key("saves", key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.Saves{}, ports.ErrNotFound
	}
	if err != nil {
		return model.Saves{}, fmt.Errorf("get saves %s: %w", key, err)
	}
	return decode[model.Saves](raw)
}

func (s *RedisStore) PutSaves(ctx context.Context, saves model.Saves) error {
	raw, err := json.Marshal(saves)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key("saves", saves.Key), raw, 0).Err(); err != nil {
		return fmt.Errorf("put saves %s: %w", saves.Key, err)
	}
	return nil
}

func (s *RedisStore) ListMods(ctx context.Context, key model.ResourceKey) ([]model.Mod, error) {
	raw, err := s.client.Get(ctx, s.key("mods", key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return []model.Mod{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list mods %s: %w", key, err)
	}
	return decode[[]model.Mod](raw)
}

// PutMod is an optimistic read-modify-write guarded by WATCH.
func (s *RedisStore) PutMod(ctx context.Context, key model.ResourceKey, mod model.Mod) error {
	modsKey := s.key("mods", key)
	const maxRetries = 5
	for i := 0; i < maxRetries; i++ {
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			raw, err := tx.Get(ctx, modsKey).Bytes()
			if errors.Is(err, redis.Nil) {
				return fmt.Errorf("mod %q: %w", mod.Name, ports.ErrNotFound)
			}
			if err != nil {
				return err
			}
			mods, err := decode[[]model.Mod](raw)
			if err != nil {
				return err
			}
			if mods, err = replaceMod(mods, mod); err != nil {
				return err
			}
			buf, err := json.Marshal(mods)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
				p.Set(ctx, modsKey, buf, 0)
				return nil
			})
			return err
		}, modsKey)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("put mod %s: too much contention", mod.Name)
}

func (s *RedisStore) ReplaceMods(ctx context.Context, key model.ResourceKey, mods []model.Mod) error {
	if mods == nil {
		mods = []model.Mod{}
	}
	raw, err := json.Marshal(mods)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key("mods", key), raw, 0).Err(); err != nil {
		return fmt.Errorf("replace mods %s: %w", key, err)
	}
	return nil
}
