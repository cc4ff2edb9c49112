package settle

import "errors"

var (
	// ErrNilParam indicates a required parameter is nil.
	ErrNilParam = errors.New("settle: required parameter is nil")

	// ErrInvalidParams indicates invalid payout parameters.
	ErrInvalidParams = errors.New("settle: invalid parameters")

	// ErrInsufficientReserve indicates the reserve UTXOs cannot cover the
	// payout amount plus the transaction fee.
	ErrInsufficientReserve = errors.New("settle: insufficient reserve funds")

	// ErrBuildFailed indicates payout transaction construction failed.
	ErrBuildFailed = errors.New("settle: transaction build failed")

	// ErrSigningFailed indicates payout transaction signing failed.
	ErrSigningFailed = errors.New("settle: signing failed")
)
