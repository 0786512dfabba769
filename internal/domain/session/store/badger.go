// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/ManuGH/zonectl/internal/domain/session/model"
	"github.com/ManuGH/zonectl/internal/domain/session/ports"
)

// BadgerStore keeps JSON records under typed key prefixes:
//   - server:<guild>/<token>
//   - saves:<guild>/<token>
//   - mods:<guild>/<token> (the whole ordered mod list)
type BadgerStore struct {
	db *badger.DB
}

var _ ports.Store = (*BadgerStore)(nil)

// OpenBadgerStore opens (or creates) the database directory at path.
func OpenBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger open %s: %w", path, err)
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Close() error { return s.db.Close() }

func badgerKey(kind string, key model.ResourceKey) []byte {
	return []byte(kind + ":" + key.ID())
}

func getJSON[T any](txn *badger.Txn, key []byte) (T, error) {
	var out T
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return out, ports.ErrNotFound
	}
	if err != nil {
		return out, err
	}
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &out)
	})
	return out, err
}

func setJSON(txn *badger.Txn, key []byte, v any) error {
	buf, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set(key, buf)
}

func (s *BadgerStore) GetServer(_ context.Context, key model.ResourceKey) (model.Server, error) {
	var out model.Server
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		out, err = getJSON[model.Server](txn, badgerKey("server", key))
		return err
	})
	return out, err
}

func (s *BadgerStore) ListServers(_ context.Context) ([]model.Server, error) {
	var out []model.Server
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := []byte("server:")
		it := txn.NewIterator(badger.IteratorOptions{PrefetchValues: true, Prefix: prefix})
		defer it.Close()
		for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
			var srv model.Server
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &srv)
			}); err != nil {
				return err
			}
			out = append(out, srv)
		}
		return nil
	})
	return out, err
}

func (s *BadgerStore) PutServer(_ context.Context, srv model.Server) error {
	if err := validateServer(srv); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, badgerKey("server", srv.Key()), srv)
	})
}

func (s *BadgerStore) DeleteServer(_ context.Context, key model.ResourceKey) error {
	return s.db.Update(func(txn *badger.Txn) error {
		for _, kind := range []string{"server", "saves", "mods"} {
			if err := txn.Delete(badgerKey(kind, key)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BadgerStore) GetSaves(_ context.Context, key model.ResourceKey) (model.Saves, error) {
	var out model.Saves
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		out, err = getJSON[model.Saves](txn, badgerKey("saves", key))
		return err
	})
	return out, err
}

func (s *BadgerStore) PutSaves(_ context.Context, saves model.Saves) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, badgerKey("saves", saves.Key), saves)
	})
}

func (s *BadgerStore) ListMods(_ context.Context, key model.ResourceKey) ([]model.Mod, error) {
	out := []model.Mod{}
	err := s.db.View(func(txn *badger.Txn) error {
		mods, err := getJSON[[]model.Mod](txn, badgerKey("mods", key))
		if errors.Is(err, ports.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		out = mods
		return nil
	})
	return out, err
}

func (s *BadgerStore) PutMod(_ context.Context, key model.ResourceKey, mod model.Mod) error {
	k := badgerKey("mods", key)
	return s.db.Update(func(txn *badger.Txn) error {
		mods, err := getJSON[[]model.Mod](txn, k)
		if errors.Is(err, ports.ErrNotFound) {
			return fmt.Errorf("mod %q: %w", mod.Name, ports.ErrNotFound)
		}
		if err != nil {
			return err
		}
		if mods, err = replaceMod(mods, mod); err != nil {
			return err
		}
		return setJSON(txn, k, mods)
	})
}

func (s *BadgerStore) ReplaceMods(_ context.Context, key model.ResourceKey, mods []model.Mod) error {
	if mods == nil {
		mods = []model.Mod{}
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, badgerKey("mods", key), mods)
	})
}
