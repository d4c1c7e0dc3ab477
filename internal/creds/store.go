// Audiographus - Multi-Source Music Scrobble Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/audiographus

// Package creds persists per-component credentials as
// currentCreds-<name>.json files under the config directory. Writes are
// atomic (temp file + fsync + rename) so a crash never leaves a torn
// token file, and writes to the same name are serialized. With an operator
// secret configured, file contents are encrypted at rest with AES-256-GCM.
package creds

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/goccy/go-json"
	"github.com/google/renameio/v2"
)

// ErrNotFound is returned by Load when no credentials exist for a name.
var ErrNotFound = errors.New("creds: not found")

// Store owns the credential files under one directory.
type Store struct {
	dir string
	enc *Encryptor

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// envelope wraps encrypted credential files on disk. Plaintext files written
// before a secret was configured lack the marker and still load.
type envelope struct {
	Encrypted string `json:"encrypted"`
}

// NewStore creates a Store rooted at dir. The directory is created on the
// first Save.
func NewStore(dir string) *Store {
	return &Store{
		dir:   dir,
		locks: make(map[string]*sync.Mutex),
	}
}

// NewEncryptedStore creates a Store that encrypts file contents at rest with
// a key derived from secret. Existing plaintext files are still readable and
// are upgraded to the encrypted form on their next Save.
func NewEncryptedStore(dir, secret string) (*Store, error) {
	enc, err := NewEncryptor(secret)
	if err != nil {
		return nil, err
	}
	s := NewStore(dir)
	s.enc = enc
	return s, nil
}

// Path returns the file a component's credentials live in.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, "currentCreds-"+name+".json")
}

// Load reads the credentials for name into v, decrypting when the file
// carries the encrypted envelope.
func (s *Store) Load(name string, v interface{}) error {
	data, err := os.ReadFile(s.Path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return fmt.Errorf("read credentials for %s: %w", name, err)
	}

	if s.enc != nil {
		var env envelope
		if err := json.Unmarshal(data, &env); err == nil && env.Encrypted != "" {
			data, err = s.enc.Decrypt(env.Encrypted)
			if err != nil {
				return fmt.Errorf("decrypt credentials for %s: %w", name, err)
			}
		}
		// No envelope marker: a plaintext file from before the secret
		// was configured. Parse it as-is.
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse credentials for %s: %w", name, err)
	}
	return nil
}

// Save writes the credentials for name atomically, replacing any previous
// file. Concurrent saves to the same name are serialized.
func (s *Store) Save(name string, v interface{}) error {
	lock := s.lockFor(name)
	lock.Lock()
	defer lock.Unlock()

	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("create credentials dir: %w", err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal credentials for %s: %w", name, err)
	}

	if s.enc != nil {
		sealed, err := s.enc.Encrypt(data)
		if err != nil {
			return fmt.Errorf("encrypt credentials for %s: %w", name, err)
		}
		data, err = json.MarshalIndent(envelope{Encrypted: sealed}, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal credential envelope for %s: %w", name, err)
		}
	}

	pending, err := renameio.NewPendingFile(s.Path(name), renameio.WithPermissions(0o600))
	if err != nil {
		return fmt.Errorf("create pending credentials file: %w", err)
	}
	defer pending.Cleanup() //nolint:errcheck // removes the temp file unless committed

	if _, err := pending.Write(data); err != nil {
		return fmt.Errorf("write credentials for %s: %w", name, err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("replace credentials for %s: %w", name, err)
	}
	return nil
}

// Delete removes the credentials for name. Missing files are not an error.
func (s *Store) Delete(name string) error {
	lock := s.lockFor(name)
	lock.Lock()
	defer lock.Unlock()

	if err := os.Remove(s.Path(name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete credentials for %s: %w", name, err)
	}
	return nil
}

// Exists reports whether credentials are on disk for name.
func (s *Store) Exists(name string) bool {
	_, err := os.Stat(s.Path(name))
	return err == nil
}

func (s *Store) lockFor(name string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[name]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[name] = lock
	}
	return lock
}
