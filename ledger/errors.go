package ledger

import "errors"

var (
	// ErrInvalidAmount indicates a zero-value mint or distribution.
	ErrInvalidAmount = errors.New("ledger: invalid amount")

	// ErrInsufficientBalance indicates the sender's balance does not cover the transfer.
	ErrInsufficientBalance = errors.New("ledger: insufficient balance")

	// ErrAllowanceExceeded indicates the spender's allowance does not cover the transfer.
	ErrAllowanceExceeded = errors.New("ledger: allowance exceeded")

	// ErrNoSupply indicates a distribution was attempted with zero total supply.
	ErrNoSupply = errors.New("ledger: no supply")

	// ErrNothingToBurn indicates the caller has no balance to redeem.
	ErrNothingToBurn = errors.New("ledger: nothing to burn")

	// ErrNoDividend indicates the caller has no withdrawable accrual.
	ErrNoDividend = errors.New("ledger: no dividend")

	// ErrInvalidIndex indicates a holder index outside [1, count].
	ErrInvalidIndex = errors.New("ledger: invalid holder index")

	// ErrTransferFailed indicates the payout gateway rejected the value transfer.
	ErrTransferFailed = errors.New("ledger: value transfer failed")

	// ErrAmountOverflow indicates an amount would overflow 64-bit arithmetic.
	ErrAmountOverflow = errors.New("ledger: amount overflow")

	// ErrNoGateway indicates a payout was requested but no gateway is configured.
	ErrNoGateway = errors.New("ledger: no payout gateway configured")

	// ErrCorruptState indicates persisted state that cannot be decoded.
	ErrCorruptState = errors.New("ledger: corrupt persisted state")
)
