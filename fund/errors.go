package fund

import "errors"

var (
	// ErrDepositReplayed indicates the deposit transaction was already
	// credited to an account.
	ErrDepositReplayed = errors.New("fund: deposit already credited")

	// ErrDepositSpent indicates the deposit output does not exist on the
	// node or has already been spent.
	ErrDepositSpent = errors.New("fund: deposit output not found or spent")

	// ErrDepositUnconfirmed indicates the deposit has fewer confirmations
	// than the configured minimum.
	ErrDepositUnconfirmed = errors.New("fund: deposit not confirmed")

	// ErrOffline indicates the operation needs a blockchain service but
	// none is configured.
	ErrOffline = errors.New("fund: no blockchain service configured (offline mode)")
)
