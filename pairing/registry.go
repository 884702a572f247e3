// Copyright 2026 The QuicPair Authors
// SPDX-License-Identifier: Apache-2.0

package pairing

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/quicpair/quicpair/lib/clock"
)

// MaxRecent is how many descriptors the registry keeps.
const MaxRecent = 5

// RegistryFileName is the registry file inside a state directory.
const RegistryFileName = "recent.json"

// Registry is the list of recently used descriptors, newest first.
// It is safe for concurrent use.
type Registry struct {
	path  string
	clock clock.Clock

	mu      sync.Mutex
	entries []ConnectionDescriptor
}

// OpenRegistry loads the registry at path. A missing file is an empty
// registry; the file is created on the first change.
func OpenRegistry(path string, c clock.Clock) (*Registry, error) {
	registry := &Registry{path: path, clock: c}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return registry, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading registry: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return registry, nil
	}
	if err := json.Unmarshal(data, &registry.entries); err != nil {
		return nil, fmt.Errorf("parsing registry %s: %w", path, err)
	}
	registry.entries = normalize(registry.entries)
	return registry, nil
}

// normalize enforces the invariants on entries read from disk: valid
// addresses, unique by address (first wins), at most MaxRecent.
func normalize(entries []ConnectionDescriptor) []ConnectionDescriptor {
	seen := make(map[string]bool, len(entries))
	result := make([]ConnectionDescriptor, 0, len(entries))
	for _, entry := range entries {
		address, err := NormalizeAddress(entry.ServerAddress)
		if err != nil || seen[address] {
			continue
		}
		seen[address] = true
		entry.ServerAddress = address
		result = append(result, entry)
		if len(result) == MaxRecent {
			break
		}
	}
	return result
}

// Remember moves descriptor to the front, stamped with the current
// time, dropping any older entry for the same address and the oldest
// entry beyond MaxRecent. A descriptor without a key keeps the key
// already pinned for its address.
func (r *Registry) Remember(descriptor ConnectionDescriptor) (ConnectionDescriptor, error) {
	address, err := NormalizeAddress(descriptor.ServerAddress)
	if err != nil {
		return ConnectionDescriptor{}, err
	}
	descriptor.ServerAddress = address
	descriptor.LastSeen = r.clock.Now().UTC()
	descriptor.StaticPublicKey = append([]byte(nil), descriptor.StaticPublicKey...)

	r.mu.Lock()
	defer r.mu.Unlock()

	updated := make([]ConnectionDescriptor, 0, MaxRecent)
	updated = append(updated, descriptor)
	for _, entry := range r.entries {
		if entry.ServerAddress == address {
			if len(descriptor.StaticPublicKey) == 0 {
				updated[0].StaticPublicKey = entry.StaticPublicKey
			}
			if descriptor.Label == "" {
				updated[0].Label = entry.Label
			}
			continue
		}
		if len(updated) < MaxRecent {
			updated = append(updated, entry)
		}
	}

	if err := r.save(updated); err != nil {
		return ConnectionDescriptor{}, err
	}
	r.entries = updated
	return clone(updated[0]), nil
}

// List returns a copy of the entries, newest first.
func (r *Registry) List() []ConnectionDescriptor {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]ConnectionDescriptor, len(r.entries))
	for index, entry := range r.entries {
		result[index] = clone(entry)
	}
	return result
}

// Lookup returns the entry for address.
func (r *Registry) Lookup(address string) (ConnectionDescriptor, bool) {
	normalized, err := NormalizeAddress(address)
	if err != nil {
		return ConnectionDescriptor{}, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, entry := range r.entries {
		if entry.ServerAddress == normalized {
			return clone(entry), true
		}
	}
	return ConnectionDescriptor{}, false
}

// Forget removes the entry for address. Forgetting an unknown address
// is not an error.
func (r *Registry) Forget(address string) error {
	normalized, err := NormalizeAddress(address)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	updated := make([]ConnectionDescriptor, 0, len(r.entries))
	for _, entry := range r.entries {
		if entry.ServerAddress != normalized {
			updated = append(updated, entry)
		}
	}
	if len(updated) == len(r.entries) {
		return nil
	}
	if err := r.save(updated); err != nil {
		return err
	}
	r.entries = updated
	return nil
}

// save writes entries atomically. Called with r.mu held.
func (r *Registry) save(entries []ConnectionDescriptor) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding registry: %w", err)
	}

	directory := filepath.Dir(r.path)
	if err := os.MkdirAll(directory, 0o700); err != nil {
		return fmt.Errorf("creating registry directory: %w", err)
	}
	temporary, err := os.CreateTemp(directory, "."+filepath.Base(r.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temporary registry: %w", err)
	}
	defer os.Remove(temporary.Name())
	if _, err := temporary.Write(append(data, '\n')); err != nil {
		temporary.Close()
		return fmt.Errorf("writing registry: %w", err)
	}
	if err := temporary.Close(); err != nil {
		return fmt.Errorf("closing registry: %w", err)
	}
	if err := os.Rename(temporary.Name(), r.path); err != nil {
		return fmt.Errorf("installing registry: %w", err)
	}
	return nil
}

func clone(descriptor ConnectionDescriptor) ConnectionDescriptor {
	descriptor.StaticPublicKey = append([]byte(nil), descriptor.StaticPublicKey...)
	if len(descriptor.StaticPublicKey) == 0 {
		descriptor.StaticPublicKey = nil
	}
	return descriptor
}
