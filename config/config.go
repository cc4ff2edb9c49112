// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Config holds the data-dir configuration for a dividend fund.
type Config struct {
	DataDir  string // ledger database, operator key, deposit log
	NodeURL  string // bitcoin node JSON-RPC endpoint; empty = offline mode
	NodeUser string // node RPC username
	NodePass string // node RPC password
	Network  string // "mainnet", "testnet", or "regtest"
	MinConf  int64  // confirmations required before a deposit mints
	FeeRate  uint64 // payout fee rate in satoshis per kilobyte
	LogLevel string // "debug", "info", "warn", or "error"
	LogFile  string // log destination for the embedding application; empty = stderr
}

// DefaultConfig returns a configuration with sensible defaults.
// The node endpoint is left empty: without it the fund runs offline and
// cannot settle payouts.
func DefaultConfig() Config {
	return Config{
		DataDir:  DefaultDataDir(),
		Network:  "mainnet",
		MinConf:  1,
		FeeRate:  500,
		LogLevel: "info",
	}
}

// DefaultDataDir returns the default data directory (~/.divfund).
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".divfund"
	}
	return filepath.Join(home, ".divfund")
}

// ConfigPath returns the config file path inside a data directory.
func ConfigPath(dataDir string) string {
	return filepath.Join(dataDir, "config")
}

// LoadConfig reads a config file. Missing keys keep their defaults,
// unknown keys are ignored so newer files load under older code.
// Returns ErrConfigNotFound if the file does not exist.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}

	for i, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, err := parseKeyValue(line)
		if err != nil {
			return cfg, fmt.Errorf("%w: line %d: %q", ErrInvalidConfigLine, i+1, line)
		}
		if err := applyKey(&cfg, key, value); err != nil {
			return cfg, fmt.Errorf("%w: line %d: %w", ErrInvalidConfigLine, i+1, err)
		}
	}
	return cfg, nil
}

// parseKeyValue splits a "key = value" line on the first '='.
func parseKeyValue(line string) (string, string, error) {
	idx := strings.Index(line, "=")
	if idx < 0 {
		return "", "", fmt.Errorf("missing '='")
	}
	key := strings.ToLower(strings.TrimSpace(line[:idx]))
	value := strings.TrimSpace(line[idx+1:])
	return key, value, nil
}

// applyKey sets one config field from a parsed key/value pair.
// Unknown keys are ignored.
func applyKey(cfg *Config, key, value string) error {
	switch key {
	case "datadir":
		cfg.DataDir = value
	case "node":
		cfg.NodeURL = value
	case "nodeuser":
		cfg.NodeUser = value
	case "nodepass":
		cfg.NodePass = value
	case "network":
		cfg.Network = value
	case "minconf":
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("minconf %q: %w", value, err)
		}
		cfg.MinConf = n
	case "feerate":
		n, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return fmt.Errorf("feerate %q: %w", value, err)
		}
		cfg.FeeRate = n
	case "loglevel":
		cfg.LogLevel = value
	case "logfile":
		cfg.LogFile = value
	}
	return nil
}

// SaveConfig writes the config file, creating parent directories as
// needed. The file is written with 0600 permissions since it may hold
// node credentials.
func SaveConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}

	var b strings.Builder
	b.WriteString("# DivFund Configuration\n")
	b.WriteString("# Lines are \"key = value\"; '#' starts a comment.\n\n")
	fmt.Fprintf(&b, "datadir = %s\n", cfg.DataDir)
	fmt.Fprintf(&b, "node = %s\n", cfg.NodeURL)
	fmt.Fprintf(&b, "nodeuser = %s\n", cfg.NodeUser)
	fmt.Fprintf(&b, "nodepass = %s\n", cfg.NodePass)
	fmt.Fprintf(&b, "network = %s\n", cfg.Network)
	fmt.Fprintf(&b, "minconf = %d\n", cfg.MinConf)
	fmt.Fprintf(&b, "feerate = %d\n", cfg.FeeRate)
	fmt.Fprintf(&b, "loglevel = %s\n", cfg.LogLevel)
	fmt.Fprintf(&b, "logfile = %s\n", cfg.LogFile)

	if err := os.WriteFile(path, []byte(b.String()), 0600); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}
