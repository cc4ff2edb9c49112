// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

package config

import "errors"

var (
	// ErrInvalidNetwork indicates the network name is not recognized.
	ErrInvalidNetwork = errors.New("config: invalid network (must be \"mainnet\", \"testnet\", or \"regtest\")")

	// ErrInvalidNodeURL indicates the node endpoint is malformed.
	ErrInvalidNodeURL = errors.New("config: invalid node URL (must be http or https)")

	// ErrInvalidMinConf indicates the confirmation threshold is negative.
	ErrInvalidMinConf = errors.New("config: invalid minconf (must not be negative)")

	// ErrInvalidFeeRate indicates the payout fee rate is zero.
	ErrInvalidFeeRate = errors.New("config: invalid feerate (must be positive)")

	// ErrInvalidLogLevel indicates the log level is not recognized.
	ErrInvalidLogLevel = errors.New("config: invalid log level (must be \"debug\", \"info\", \"warn\", or \"error\")")

	// ErrEmptyDataDir indicates the data directory path is empty.
	ErrEmptyDataDir = errors.New("config: data directory must not be empty")

	// ErrConfigNotFound indicates the configuration file does not exist.
	ErrConfigNotFound = errors.New("config: configuration file not found")

	// ErrInvalidConfigLine indicates a line in the config file is malformed.
	ErrInvalidConfigLine = errors.New("config: invalid configuration line")
)
