// Copyright 2026 The QuicPair Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	t.Setenv("HOME", "/home/tester")
	t.Setenv("XDG_STATE_HOME", "")

	cfg := Default()
	if cfg.Client.SignalingTimeout != 5*time.Second {
		t.Errorf("client.signaling_timeout = %v, want 5s", cfg.Client.SignalingTimeout)
	}
	if cfg.Client.HandshakeTimeout != cfg.Client.SignalingTimeout {
		t.Errorf("client.handshake_timeout = %v, want signaling timeout %v", cfg.Client.HandshakeTimeout, cfg.Client.SignalingTimeout)
	}
	if want := "/home/tester/.local/state/quicpair/client"; cfg.Client.StateDir != want {
		t.Errorf("client.state_dir = %q, want %q", cfg.Client.StateDir, want)
	}
	if cfg.Server.DefaultModel != "qwen2.5:3b" {
		t.Errorf("server.default_model = %q, want qwen2.5:3b", cfg.Server.DefaultModel)
	}
	if !cfg.Server.StrictLocal {
		t.Error("server.strict_local = false, want true")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
}

func TestDefaultHonorsXDGStateHome(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", "/var/state")
	if got, want := Default().Server.StateDir, "/var/state/quicpair/server"; got != want {
		t.Fatalf("server.state_dir = %q, want %q", got, want)
	}
}

func TestParseYAML(t *testing.T) {
	t.Setenv("HOME", "/home/tester")
	data := []byte(`
client:
  state_dir: ${HOME}/qp
  signaling_timeout: 2s
  ice_servers:
    - urls: ["stun:stun.example.net:3478"]
server:
  listen: 127.0.0.1:9000
  strict_local: false
`)
	cfg, err := Parse(data, ".yaml")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Client.StateDir != "/home/tester/qp" {
		t.Errorf("client.state_dir = %q, want /home/tester/qp", cfg.Client.StateDir)
	}
	if cfg.Client.SignalingTimeout != 2*time.Second || cfg.Client.HandshakeTimeout != 2*time.Second {
		t.Errorf("timeouts = %v/%v, want 2s/2s", cfg.Client.SignalingTimeout, cfg.Client.HandshakeTimeout)
	}
	if len(cfg.Client.ICEServers) != 1 || cfg.Client.ICEServers[0].URLs[0] != "stun:stun.example.net:3478" {
		t.Errorf("client.ice_servers = %+v", cfg.Client.ICEServers)
	}
	if cfg.Server.Listen != "127.0.0.1:9000" || cfg.Server.StrictLocal {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Server.OllamaURL != "http://127.0.0.1:11434" {
		t.Errorf("server.ollama_url = %q, want default kept", cfg.Server.OllamaURL)
	}
}

func TestParseExplicitHandshakeTimeout(t *testing.T) {
	cfg, err := Parse([]byte("client:\n  signaling_timeout: 2s\n  handshake_timeout: 7s\n"), ".yaml")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Client.HandshakeTimeout != 7*time.Second {
		t.Errorf("client.handshake_timeout = %v, want 7s", cfg.Client.HandshakeTimeout)
	}

	cfg, err = Parse([]byte("server:\n  listen: 127.0.0.1:9000\n"), ".yaml")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Client.HandshakeTimeout != 5*time.Second {
		t.Errorf("client.handshake_timeout = %v, want signaling default 5s", cfg.Client.HandshakeTimeout)
	}
}

func TestParseJSONC(t *testing.T) {
	data := []byte(`{
  // pairing server on the studio mac
  "server": {
    "listen": ":8443",
    "default_model": "llama3.2:3b", /* override */
  },
}`)
	cfg, err := Parse(data, ".jsonc")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Server.DefaultModel != "llama3.2:3b" {
		t.Fatalf("server.default_model = %q, want llama3.2:3b", cfg.Server.DefaultModel)
	}
}

func TestParseReportsAllProblems(t *testing.T) {
	data := []byte(`
client:
  signaling_timeout: -1s
server:
  listen: nonsense
  ollama_url: not a url
`)
	_, err := Parse(data, ".yaml")
	if err == nil {
		t.Fatal("Parse accepted an invalid config")
	}
	for _, want := range []string{"client.signaling_timeout", "server.listen", "server.ollama_url"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestLoadRequiresEnvironment(t *testing.T) {
	t.Setenv(EnvironmentVariable, "")
	if _, err := Load(); err == nil || !strings.Contains(err.Error(), EnvironmentVariable) {
		t.Fatalf("Load() error = %v, want mention of %s", err, EnvironmentVariable)
	}
}

func TestResolveOrder(t *testing.T) {
	directory := t.TempDir()
	flagPath := filepath.Join(directory, "flag.yaml")
	envPath := filepath.Join(directory, "env.yaml")
	if err := os.WriteFile(flagPath, []byte("server:\n  default_model: from-flag\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(envPath, []byte("server:\n  default_model: from-env\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv(EnvironmentVariable, envPath)
	cfg, err := Resolve(flagPath)
	if err != nil {
		t.Fatalf("Resolve(flag): %v", err)
	}
	if cfg.Server.DefaultModel != "from-flag" {
		t.Errorf("with flag: default_model = %q, want from-flag", cfg.Server.DefaultModel)
	}

	cfg, err = Resolve("")
	if err != nil {
		t.Fatalf("Resolve(env): %v", err)
	}
	if cfg.Server.DefaultModel != "from-env" {
		t.Errorf("with env: default_model = %q, want from-env", cfg.Server.DefaultModel)
	}

	t.Setenv(EnvironmentVariable, "")
	cfg, err = Resolve("")
	if err != nil {
		t.Fatalf("Resolve(default): %v", err)
	}
	if cfg.Server.DefaultModel != "qwen2.5:3b" {
		t.Errorf("default: default_model = %q, want qwen2.5:3b", cfg.Server.DefaultModel)
	}
}
