// Audiographus - Multi-Source Music Scrobble Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/audiographus

// Package deadletter persists failed scrobbles across restarts.
//
// Each client keeps its dead-letter list in memory and writes through to
// this store; on startup the list is reloaded, so a crash between a
// failure and its successful replay loses nothing. Entries are keyed
// dl/<client>/<id> in a single BadgerDB instance shared by all clients.
package deadletter

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/audiographus/internal/config"
	"github.com/tomtom215/audiographus/internal/logging"
	"github.com/tomtom215/audiographus/internal/models"
)

// ErrNotFound is returned when the requested entry does not exist.
var ErrNotFound = errors.New("deadletter: entry not found")

const keyPrefix = "dl/"

// Store is the durable dead-letter backing store.
type Store struct {
	db *badger.DB
}

// Open creates or reopens the store. With InMemory set the store lives
// only for the process lifetime, which is what tests and explicitly
// ephemeral deployments want.
func Open(cfg config.DeadLetterConfig) (*Store, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, errors.New("deadletter: store path not configured")
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open dead-letter store: %w", err)
	}

	logging.Info().Str("path", cfg.Path).Bool("inMemory", cfg.InMemory).Msg("Dead-letter store opened")
	return &Store{db: db}, nil
}

func key(client, id string) []byte {
	return []byte(keyPrefix + client + "/" + id)
}

// Put writes one entry, replacing any previous version of the same id.
func (s *Store) Put(client string, entry models.DeadLetterScrobble) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal dead-letter entry: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(client, entry.ID), data)
	})
	if err != nil {
		return fmt.Errorf("store dead-letter entry: %w", err)
	}
	return nil
}

// Get returns one entry by id.
func (s *Store) Get(client, id string) (models.DeadLetterScrobble, error) {
	var entry models.DeadLetterScrobble
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(client, id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entry)
		})
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return models.DeadLetterScrobble{}, err
		}
		return models.DeadLetterScrobble{}, fmt.Errorf("read dead-letter entry: %w", err)
	}
	return entry, nil
}

// Delete removes one entry. Deleting an entry that is not there returns
// ErrNotFound so the API can answer 404 honestly.
func (s *Store) Delete(client, id string) error {
	k := key(client, id)
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(k); errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		} else if err != nil {
			return err
		}
		return txn.Delete(k)
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("delete dead-letter entry: %w", err)
	}
	return nil
}

// List returns every entry for one client, in key order. The caller
// imposes its own replay ordering.
func (s *Store) List(client string) ([]models.DeadLetterScrobble, error) {
	var entries []models.DeadLetterScrobble
	prefix := []byte(keyPrefix + client + "/")

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var entry models.DeadLetterScrobble
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			})
			if err != nil {
				logging.Warn().Err(err).Str("key", string(it.Item().Key())).Msg("Skipping undecodable dead-letter entry")
				continue
			}
			entries = append(entries, entry)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list dead-letter entries: %w", err)
	}
	return entries, nil
}

// All returns every entry grouped by client name.
func (s *Store) All() (map[string][]models.DeadLetterScrobble, error) {
	out := make(map[string][]models.DeadLetterScrobble)
	prefix := []byte(keyPrefix)

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			client, ok := clientFromKey(item.Key())
			if !ok {
				continue
			}
			var entry models.DeadLetterScrobble
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			})
			if err != nil {
				logging.Warn().Err(err).Str("key", string(item.Key())).Msg("Skipping undecodable dead-letter entry")
				continue
			}
			out[client] = append(out[client], entry)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list dead-letter entries: %w", err)
	}
	return out, nil
}

// clientFromKey extracts the client name from dl/<client>/<id>. Ids are
// UUIDs and never contain a slash, so the last separator is unambiguous.
func clientFromKey(k []byte) (string, bool) {
	rest, ok := bytes.CutPrefix(k, []byte(keyPrefix))
	if !ok {
		return "", false
	}
	idx := strings.LastIndexByte(string(rest), '/')
	if idx <= 0 {
		return "", false
	}
	return string(rest[:idx]), true
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
