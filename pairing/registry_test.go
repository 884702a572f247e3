// Copyright 2026 The QuicPair Authors
// SPDX-License-Identifier: Apache-2.0

package pairing

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/quicpair/quicpair/lib/clock"
	"github.com/quicpair/quicpair/lib/testutil"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func openTestRegistry(t *testing.T) (*Registry, *clock.FakeClock, string) {
	t.Helper()
	fake := clock.Fake(epoch)
	path := filepath.Join(testutil.StateDir(t), RegistryFileName)
	registry, err := OpenRegistry(path, fake)
	if err != nil {
		t.Fatalf("OpenRegistry: %v", err)
	}
	return registry, fake, path
}

func addresses(entries []ConnectionDescriptor) []string {
	result := make([]string, len(entries))
	for index, entry := range entries {
		result[index] = entry.ServerAddress
	}
	return result
}

func remember(t *testing.T, registry *Registry, address string) {
	t.Helper()
	if _, err := registry.Remember(ConnectionDescriptor{ServerAddress: address}); err != nil {
		t.Fatalf("Remember(%s): %v", address, err)
	}
}

func TestRememberOrdersNewestFirstAndCaps(t *testing.T) {
	registry, fake, _ := openTestRegistry(t)
	for index := 1; index <= 7; index++ {
		remember(t, registry, fmt.Sprintf("10.0.0.%d:8443", index))
		fake.Advance(time.Minute)
	}

	got := addresses(registry.List())
	want := []string{"10.0.0.7:8443", "10.0.0.6:8443", "10.0.0.5:8443", "10.0.0.4:8443", "10.0.0.3:8443"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("List() = %v, want %v", got, want)
	}
}

func TestRememberDeduplicatesByAddress(t *testing.T) {
	registry, fake, _ := openTestRegistry(t)
	remember(t, registry, "10.0.0.1:8443")
	remember(t, registry, "10.0.0.2:8443")
	fake.Advance(time.Hour)
	remember(t, registry, "10.0.0.1:8443")

	entries := registry.List()
	if got := addresses(entries); fmt.Sprint(got) != "[10.0.0.1:8443 10.0.0.2:8443]" {
		t.Fatalf("List() = %v", got)
	}
	if !entries[0].LastSeen.Equal(epoch.Add(time.Hour)) {
		t.Fatalf("LastSeen = %v, want %v", entries[0].LastSeen, epoch.Add(time.Hour))
	}
}

func TestRememberKeepsPinnedKey(t *testing.T) {
	registry, _, _ := openTestRegistry(t)
	if _, err := registry.Remember(ConnectionDescriptor{ServerAddress: "10.0.0.1:8443", StaticPublicKey: serverKey, Label: "Studio"}); err != nil {
		t.Fatalf("Remember: %v", err)
	}
	stored, err := registry.Remember(ConnectionDescriptor{ServerAddress: "10.0.0.1:8443"})
	if err != nil {
		t.Fatalf("Remember: %v", err)
	}
	if !bytes.Equal(stored.StaticPublicKey, serverKey) || stored.Label != "Studio" {
		t.Fatalf("stored = %+v, want pinned key and label kept", stored)
	}
}

func TestRegistryPersists(t *testing.T) {
	registry, fake, path := openTestRegistry(t)
	if _, err := registry.Remember(ConnectionDescriptor{ServerAddress: "10.0.0.1:8443", StaticPublicKey: serverKey}); err != nil {
		t.Fatalf("Remember: %v", err)
	}
	remember(t, registry, "10.0.0.2:8443")

	reopened, err := OpenRegistry(path, fake)
	if err != nil {
		t.Fatalf("OpenRegistry: %v", err)
	}
	entries := reopened.List()
	if got := addresses(entries); fmt.Sprint(got) != "[10.0.0.2:8443 10.0.0.1:8443]" {
		t.Fatalf("reopened List() = %v", got)
	}
	if !bytes.Equal(entries[1].StaticPublicKey, serverKey) {
		t.Fatalf("reopened key = %x, want %x", entries[1].StaticPublicKey, serverKey)
	}
}

func TestOpenRegistryRepairsFile(t *testing.T) {
	path := filepath.Join(testutil.StateDir(t), RegistryFileName)
	data := `[
  {"serverAddress":"10.0.0.1:8443","label":"a"},
  {"serverAddress":"10.0.0.1:8443","label":"duplicate"},
  {"serverAddress":"no-port","label":"bad"},
  {"serverAddress":"10.0.0.2:8443"},
  {"serverAddress":"10.0.0.3:8443"},
  {"serverAddress":"10.0.0.4:8443"},
  {"serverAddress":"10.0.0.5:8443"},
  {"serverAddress":"10.0.0.6:8443"}
]`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	registry, err := OpenRegistry(path, clock.Fake(epoch))
	if err != nil {
		t.Fatalf("OpenRegistry: %v", err)
	}
	entries := registry.List()
	if got := addresses(entries); fmt.Sprint(got) != "[10.0.0.1:8443 10.0.0.2:8443 10.0.0.3:8443 10.0.0.4:8443 10.0.0.5:8443]" {
		t.Fatalf("List() = %v", got)
	}
	if entries[0].Label != "a" {
		t.Fatalf("first duplicate should win, label = %q", entries[0].Label)
	}
}

func TestOpenRegistryRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(testutil.StateDir(t), RegistryFileName)
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenRegistry(path, clock.Fake(epoch)); err == nil {
		t.Fatal("OpenRegistry accepted a corrupt file")
	}
}

func TestForgetAndLookup(t *testing.T) {
	registry, _, path := openTestRegistry(t)
	remember(t, registry, "10.0.0.1:8443")
	remember(t, registry, "10.0.0.2:8443")

	if _, ok := registry.Lookup(" 10.0.0.1:8443"); !ok {
		t.Fatal("Lookup did not find a remembered address")
	}
	if err := registry.Forget("10.0.0.1:8443"); err != nil {
		t.Fatalf("Forget: %v", err)
	}
	if _, ok := registry.Lookup("10.0.0.1:8443"); ok {
		t.Fatal("Lookup found a forgotten address")
	}
	if err := registry.Forget("10.0.0.9:8443"); err != nil {
		t.Fatalf("Forget(unknown): %v", err)
	}

	reopened, err := OpenRegistry(path, clock.Fake(epoch))
	if err != nil {
		t.Fatalf("OpenRegistry: %v", err)
	}
	if got := addresses(reopened.List()); fmt.Sprint(got) != "[10.0.0.2:8443]" {
		t.Fatalf("after Forget, persisted List() = %v", got)
	}
}

func TestListReturnsCopies(t *testing.T) {
	registry, _, _ := openTestRegistry(t)
	if _, err := registry.Remember(ConnectionDescriptor{ServerAddress: "10.0.0.1:8443", StaticPublicKey: serverKey}); err != nil {
		t.Fatalf("Remember: %v", err)
	}
	entries := registry.List()
	entries[0].StaticPublicKey[0] ^= 0xff
	entries[0].Label = "mutated"

	again := registry.List()
	if !bytes.Equal(again[0].StaticPublicKey, serverKey) || again[0].Label == "mutated" {
		t.Fatal("List exposed internal state")
	}
}
