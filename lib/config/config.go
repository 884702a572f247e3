// Copyright 2026 The QuicPair Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// EnvironmentVariable names the configuration file when no --config
// flag is given.
const EnvironmentVariable = "QUICPAIR_CONFIG"

// Config is the whole configuration file. Each binary reads its own
// section.
type Config struct {
	Client ClientConfig `yaml:"client"`
	Server ServerConfig `yaml:"server"`
}

// ClientConfig configures cmd/quicpair.
type ClientConfig struct {
	// StateDir holds the recent connections file and the keystore.
	StateDir string `yaml:"state_dir"`

	// SignalingTimeout bounds one offer/answer exchange.
	SignalingTimeout time.Duration `yaml:"signaling_timeout"`

	// HandshakeTimeout bounds the key exchange after the data channel
	// opens. Zero means the same as SignalingTimeout.
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`

	// DefaultModel is sent when a prompt names no model. Empty leaves
	// the choice to the server.
	DefaultModel string `yaml:"default_model"`

	// ICEServers are STUN/TURN servers for candidate gathering. Empty
	// means host candidates only, which is enough on one LAN.
	ICEServers []ICEServer `yaml:"ice_servers"`

	// KeystoreWorkFactor is the scrypt work factor (log2 N) protecting
	// the private key at rest.
	KeystoreWorkFactor int `yaml:"keystore_work_factor"`
}

// ServerConfig configures cmd/quicpaird.
type ServerConfig struct {
	// Listen is the HTTP listen address for signaling and metrics.
	Listen string `yaml:"listen"`

	// AdvertiseAddress is the host:port written into the pairing
	// payload. Empty derives it from Listen and the first private
	// interface address.
	AdvertiseAddress string `yaml:"advertise_address"`

	StateDir string `yaml:"state_dir"`

	// OllamaURL is the base URL of the local inference engine.
	OllamaURL string `yaml:"ollama_url"`

	// DefaultModel is used for chat envelopes that name no model.
	DefaultModel string `yaml:"default_model"`

	// StrictLocal refuses peers outside loopback, private, link-local
	// and CGNAT ranges, and refuses a non-local OllamaURL.
	StrictLocal bool `yaml:"strict_local"`

	ICEServers []ICEServer `yaml:"ice_servers"`

	KeystoreWorkFactor int `yaml:"keystore_work_factor"`
}

// ICEServer is one STUN or TURN server.
type ICEServer struct {
	URLs       []string `yaml:"urls"`
	Username   string   `yaml:"username,omitempty"`
	Credential string   `yaml:"credential,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := defaults()
	cfg.finish()
	return cfg
}

// defaults is Default before derived fields are filled in, so that a
// file overriding signaling_timeout also moves the handshake timeout.
func defaults() *Config {
	stateRoot := filepath.Join("${XDG_STATE_HOME:-${HOME}/.local/state}", "quicpair")
	return &Config{
		Client: ClientConfig{
			StateDir:           filepath.Join(stateRoot, "client"),
			SignalingTimeout:   5 * time.Second,
			KeystoreWorkFactor: 18,
		},
		Server: ServerConfig{
			Listen:             ":8443",
			StateDir:           filepath.Join(stateRoot, "server"),
			OllamaURL:          "http://127.0.0.1:11434",
			DefaultModel:       "qwen2.5:3b",
			StrictLocal:        true,
			KeystoreWorkFactor: 18,
		},
	}
}

// Resolve loads flagPath if it is set, otherwise the file named by
// QUICPAIR_CONFIG, otherwise returns Default().
func Resolve(flagPath string) (*Config, error) {
	if flagPath != "" {
		return LoadFile(flagPath)
	}
	if os.Getenv(EnvironmentVariable) != "" {
		return Load()
	}
	return Default(), nil
}

// Load loads the file named by QUICPAIR_CONFIG. It fails when the
// variable is unset.
func Load() (*Config, error) {
	path := os.Getenv(EnvironmentVariable)
	if path == "" {
		return nil, fmt.Errorf("%s environment variable not set; set it to the path of a quicpair.yaml file, or use --config", EnvironmentVariable)
	}
	return LoadFile(path)
}

// LoadFile loads path over the defaults and validates the result.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return Parse(data, filepath.Ext(path))
}

// Parse decodes configuration data over the defaults. extension
// selects JSONC stripping for ".json" and ".jsonc"; anything else is
// YAML.
func Parse(data []byte, extension string) (*Config, error) {
	switch strings.ToLower(extension) {
	case ".json", ".jsonc":
		data = jsonc.ToJSON(data)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.finish()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) finish() {
	if c.Client.HandshakeTimeout == 0 {
		c.Client.HandshakeTimeout = c.Client.SignalingTimeout
	}
	c.Client.StateDir = expandVars(c.Client.StateDir)
	c.Server.StateDir = expandVars(c.Server.StateDir)
}

// Validate reports every problem in the configuration at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Client.StateDir == "" {
		errs = append(errs, errors.New("client.state_dir is required"))
	}
	if c.Client.SignalingTimeout <= 0 {
		errs = append(errs, fmt.Errorf("client.signaling_timeout must be positive, got %v", c.Client.SignalingTimeout))
	}
	if c.Client.HandshakeTimeout < 0 {
		errs = append(errs, fmt.Errorf("client.handshake_timeout must not be negative, got %v", c.Client.HandshakeTimeout))
	}
	errs = append(errs, validateWorkFactor("client", c.Client.KeystoreWorkFactor)...)
	errs = append(errs, validateICE("client", c.Client.ICEServers)...)

	if _, _, err := net.SplitHostPort(c.Server.Listen); err != nil {
		errs = append(errs, fmt.Errorf("server.listen %q: %w", c.Server.Listen, err))
	}
	if c.Server.AdvertiseAddress != "" {
		if _, _, err := net.SplitHostPort(c.Server.AdvertiseAddress); err != nil {
			errs = append(errs, fmt.Errorf("server.advertise_address %q: %w", c.Server.AdvertiseAddress, err))
		}
	}
	if c.Server.StateDir == "" {
		errs = append(errs, errors.New("server.state_dir is required"))
	}
	if parsed, err := url.Parse(c.Server.OllamaURL); err != nil || parsed.Host == "" {
		errs = append(errs, fmt.Errorf("server.ollama_url %q is not an absolute URL", c.Server.OllamaURL))
	}
	if c.Server.DefaultModel == "" {
		errs = append(errs, errors.New("server.default_model is required"))
	}
	errs = append(errs, validateWorkFactor("server", c.Server.KeystoreWorkFactor)...)
	errs = append(errs, validateICE("server", c.Server.ICEServers)...)

	return errors.Join(errs...)
}

func validateWorkFactor(section string, factor int) []error {
	if factor < 10 || factor > 30 {
		return []error{fmt.Errorf("%s.keystore_work_factor must be between 10 and 30, got %d", section, factor)}
	}
	return nil
}

func validateICE(section string, servers []ICEServer) []error {
	var errs []error
	for index, server := range servers {
		if len(server.URLs) == 0 {
			errs = append(errs, fmt.Errorf("%s.ice_servers[%d] has no urls", section, index))
		}
	}
	return errs
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-((?:[^{}]|\$\{[^}]*\})*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default}. A default may itself
// contain ${VAR} references.
func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		return expandVars(parts[2])
	})
}
