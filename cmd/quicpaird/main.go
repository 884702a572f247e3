// Copyright 2026 The QuicPair Authors
// SPDX-License-Identifier: Apache-2.0

// Quicpaird is the QuicPair server. It answers WebRTC offers from
// paired clients and streams completions from a local Ollama server
// over an encrypted data channel.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/quicpair/quicpair/inference"
	"github.com/quicpair/quicpair/keystore"
	"github.com/quicpair/quicpair/lib/config"
	"github.com/quicpair/quicpair/lib/version"
	"github.com/quicpair/quicpair/pairing"
	"github.com/quicpair/quicpair/server"
	"github.com/quicpair/quicpair/transport"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath   string
		label        string
		printPairing bool
		showVersion  bool
		debug        bool
	)
	pflag.StringVar(&configPath, "config", "", "config file (default: $"+config.EnvironmentVariable+")")
	pflag.StringVar(&label, "label", "", "name shown to clients when pairing (default: hostname)")
	pflag.BoolVar(&printPairing, "print-pairing", false, "print the pairing payload and exit")
	pflag.BoolVar(&showVersion, "version", false, "print version information and exit")
	pflag.BoolVar(&debug, "debug", false, "log at debug level")
	pflag.Parse()

	if showVersion {
		fmt.Printf("quicpaird %s\n", version.Full())
		return nil
	}

	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := config.Resolve(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	serverConfig := cfg.Server

	if label == "" {
		label, _ = os.Hostname()
	}

	key, persistent, err := keystore.LoadOrEphemeral(filepath.Join(serverConfig.StateDir, "keys"), serverConfig.KeystoreWorkFactor, logger)
	if err != nil {
		return fmt.Errorf("loading server key: %w", err)
	}
	defer key.Close()
	public := key.PublicKey()
	if !persistent {
		logger.Warn("using an ephemeral server key; paired clients must pair again after restart")
	}

	ollama, err := inference.NewClient(inference.ClientConfig{
		BaseURL:     serverConfig.OllamaURL,
		StrictLocal: serverConfig.StrictLocal,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("inference client: %w", err)
	}

	srv, err := server.New(server.Config{
		ListenAddress:    serverConfig.Listen,
		AdvertiseAddress: serverConfig.AdvertiseAddress,
		Label:            label,
		KeyPair:          key,
		Inference:        ollama,
		DefaultModel:     serverConfig.DefaultModel,
		StrictLocal:      serverConfig.StrictLocal,
		ICE:              transport.ICEConfigFromServers(serverConfig.ICEServers),
		Logger:           logger,
	})
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	if printPairing {
		payload, err := srv.PairingPayload()
		if err != nil {
			return err
		}
		fmt.Println(string(payload))
		return nil
	}

	logger.Info("starting quicpaird",
		"version", version.Info(),
		"fingerprint", pairing.Fingerprint(public[:]),
		"persistent_key", persistent,
	)
	checkInference(ollama, logger)

	if err := srv.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	if payload, err := srv.PairingPayload(); err != nil {
		logger.Warn("no pairing address; set server.advertise_address", "error", err)
	} else {
		fmt.Fprintf(os.Stderr, "pair with: %s\n", payload)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info("received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}

	summary := srv.Latency().Summary()
	logger.Info("shutdown complete",
		"exchanges", summary.Count,
		"ttft_p50", summary.P50,
		"ttft_p90", summary.P90,
	)
	return nil
}

// checkInference logs whether Ollama answers. The server starts
// either way; each chat reports its own failure to the client.
func checkInference(client *inference.Client, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	ollamaVersion, err := client.Version(ctx)
	if err != nil {
		logger.Warn("inference server not reachable", "error", err)
		return
	}
	logger.Info("inference server reachable", "ollama_version", ollamaVersion)
}
