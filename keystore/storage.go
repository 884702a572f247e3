// Copyright 2026 The QuicPair Authors
// SPDX-License-Identifier: Apache-2.0

package keystore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/quicpair/quicpair/lib/codec"
	"github.com/quicpair/quicpair/lib/sealed"
	"github.com/quicpair/quicpair/lib/secret"
)

// ErrNotFound is returned by SecureStorage.Load for a name that was
// never saved.
var ErrNotFound = errors.New("keystore entry not found")

// SecureStorage persists secret entries by logical name. Load returns
// a buffer the caller must close. Errors other than ErrNotFound mean
// the backend cannot be used.
type SecureStorage interface {
	Load(name string) (*secret.Buffer, error)
	Save(name string, data []byte) error
}

// MemoryStorage is a SecureStorage that lives as long as the process.
type MemoryStorage struct {
	mu      sync.Mutex
	entries map[string][]byte
}

// NewMemoryStorage returns an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{entries: make(map[string][]byte)}
}

func (m *MemoryStorage) Load(name string) (*secret.Buffer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.entries[name]
	if !ok {
		return nil, ErrNotFound
	}
	return secret.NewFromBytes(append([]byte(nil), data...))
}

func (m *MemoryStorage) Save(name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[name] = append([]byte(nil), data...)
	return nil
}

// recordVersion is the current on-disk record layout.
const recordVersion = 1

// record is the CBOR plaintext inside each sealed file.
type record struct {
	Version   int    `cbor:"version"`
	Name      string `cbor:"name"`
	Data      []byte `cbor:"data"`
	CreatedAt int64  `cbor:"created_at"`
}

var validName = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)

// FileStorage keeps each entry in <directory>/<name>.age, sealed under
// a passphrase.
type FileStorage struct {
	directory  string
	passphrase *secret.Buffer
	workFactor int
	now        func() time.Time
}

// NewFileStorage returns a FileStorage rooted at directory. The
// passphrase buffer is borrowed and must stay open while the storage
// is in use. A workFactor of zero means sealed.DefaultWorkFactor.
func NewFileStorage(directory string, passphrase *secret.Buffer, workFactor int) *FileStorage {
	if workFactor == 0 {
		workFactor = sealed.DefaultWorkFactor
	}
	return &FileStorage{
		directory:  directory,
		passphrase: passphrase,
		workFactor: workFactor,
		now:        time.Now,
	}
}

func (f *FileStorage) path(name string) (string, error) {
	if !validName.MatchString(name) {
		return "", fmt.Errorf("invalid keystore entry name %q", name)
	}
	return filepath.Join(f.directory, name+".age"), nil
}

func (f *FileStorage) Load(name string) (*secret.Buffer, error) {
	path, err := f.path(name)
	if err != nil {
		return nil, err
	}
	ciphertext, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	plaintext, err := sealed.Open(ciphertext, f.passphrase)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer plaintext.Close()

	var entry record
	if err := codec.Unmarshal(plaintext.Bytes(), &entry); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	defer secret.Zero(entry.Data)
	if entry.Version != recordVersion || entry.Name != name {
		return nil, fmt.Errorf("%s holds record %q version %d, want %q version %d", path, entry.Name, entry.Version, name, recordVersion)
	}
	return secret.NewFromBytes(entry.Data)
}

func (f *FileStorage) Save(name string, data []byte) error {
	path, err := f.path(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(f.directory, 0o700); err != nil {
		return fmt.Errorf("creating keystore directory: %w", err)
	}

	plaintext, err := codec.Marshal(record{
		Version:   recordVersion,
		Name:      name,
		Data:      data,
		CreatedAt: f.now().Unix(),
	})
	if err != nil {
		return fmt.Errorf("encoding record: %w", err)
	}
	defer secret.Zero(plaintext)

	ciphertext, err := sealed.Seal(plaintext, f.passphrase, f.workFactor)
	if err != nil {
		return fmt.Errorf("sealing record: %w", err)
	}

	temporary, err := os.CreateTemp(f.directory, "."+name+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temporary file: %w", err)
	}
	defer os.Remove(temporary.Name())
	if _, err := temporary.Write(ciphertext); err != nil {
		temporary.Close()
		return fmt.Errorf("writing %s: %w", temporary.Name(), err)
	}
	if err := temporary.Sync(); err != nil {
		temporary.Close()
		return fmt.Errorf("syncing %s: %w", temporary.Name(), err)
	}
	if err := temporary.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", temporary.Name(), err)
	}
	if err := os.Rename(temporary.Name(), path); err != nil {
		return fmt.Errorf("installing %s: %w", path, err)
	}
	return nil
}
