package ledger

import (
	"context"
	"fmt"
	"math/bits"
)

// RecordDividend distributes amount proportionally across the current
// holders, crediting each holder's withdrawable accrual with
// floor(amount * balance / totalSupply). The division truncates; the
// undistributed remainder is not tracked and never reallocated. The
// credit reflects balances exactly as they stand at the call, so later
// transfers or burns do not disturb what was accrued here.
//
// Fails with ErrInvalidAmount for a zero amount and ErrNoSupply when no
// balance exists to distribute against. All shares are computed and
// overflow-checked before any accrual is touched, so a failure credits
// nobody.
func (l *Ledger) RecordDividend(amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if amount == 0 {
		return fmt.Errorf("%w: distribution of zero units", ErrInvalidAmount)
	}
	if l.totalSupply == 0 {
		return ErrNoSupply
	}

	holders := l.holders.holders
	credits := make([]uint64, len(holders))
	for i, h := range holders {
		share := mulDiv(amount, l.balances[h], l.totalSupply)
		credited, ok := addChecked(l.accruals[h], share)
		if !ok {
			return fmt.Errorf("%w: accrual for %s", ErrAmountOverflow, h)
		}
		credits[i] = credited
	}

	prevAccruals := make(map[Address]uint64, len(holders))
	for i, h := range holders {
		if credits[i] == 0 {
			continue
		}
		prevAccruals[h] = l.accruals[h]
		l.accruals[h] = credits[i]
	}

	if err := l.persistLocked(); err != nil {
		for h, prev := range prevAccruals {
			if prev == 0 {
				delete(l.accruals, h)
			} else {
				l.accruals[h] = prev
			}
		}
		return err
	}
	return nil
}

// WithdrawableDividend returns the account's accrued, not yet withdrawn
// dividend. The accrual is independent of the account's current balance
// or holder status.
func (l *Ledger) WithdrawableDividend(account Address) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.accruals[account]
}

// WithdrawDividend pays the caller's entire accrued dividend to
// destination through the gateway. The accrual is zeroed before the
// payment is attempted; a gateway failure restores it and fails the
// operation with ErrTransferFailed. Accruals survive burns and
// transfers, so an account that no longer holds any balance can still
// withdraw what it accrued while it did.
//
// Returns the gateway's settlement reference. If persisting after a
// successful payment fails, the reference is returned together with the
// store error; the in-memory ledger keeps the committed state.
func (l *Ledger) WithdrawDividend(ctx context.Context, caller, destination Address) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	amount := l.accruals[caller]
	if amount == 0 {
		return "", fmt.Errorf("%w: account %s", ErrNoDividend, caller)
	}
	if l.gateway == nil {
		return "", ErrNoGateway
	}

	// Zero the accrual before paying out; a reentrant observer cannot
	// withdraw twice.
	delete(l.accruals, caller)

	ref, err := l.gateway.Pay(ctx, destination, amount)
	if err != nil {
		l.accruals[caller] = amount
		return "", fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}

	if err := l.persistLocked(); err != nil {
		return ref, err
	}
	return ref, nil
}

// mulDiv returns floor(a*b/den) using a 128-bit intermediate product.
// The caller guarantees den > 0 and b <= den, which bounds the quotient
// by a and keeps Div64 from overflowing.
func mulDiv(a, b, den uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	q, _ := bits.Div64(hi, lo, den)
	return q
}
