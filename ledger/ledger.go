package ledger

import (
	"context"
	"fmt"
	"math/bits"
	"sync"
)

// Ledger is a single-asset account ledger with value-backed balances,
// allowance-mediated delegated transfers, and pull-based dividend
// accrual. Balances are 1:1 backed by deposited native-currency units
// (satoshis); burning a balance or withdrawing accrued dividends pays
// real units out through the configured PayoutGateway.
//
// Every public operation executes as one indivisible step under an
// internal lock: no two operations interleave, and a failing operation
// leaves no observable state change. Operations that end in an external
// payment (Burn, WithdrawDividend) commit all internal state before the
// gateway call and roll everything back if the payment fails.
//
// Two derived structures are kept consistent with the balance map on
// every mutation path: the holder registry (an account is a member
// exactly while its balance is non-zero) and the total supply (always
// the sum of all balances).
type Ledger struct {
	mu          sync.RWMutex
	balances    map[Address]uint64
	totalSupply uint64
	holders     *HolderRegistry
	allowances  *AllowanceTable
	accruals    map[Address]uint64

	gateway PayoutGateway
	store   StateStore // nil = no persistence
}

// New creates an empty in-memory ledger with no persistence and no
// payout gateway. Burn and WithdrawDividend fail with ErrNoGateway
// until SetGateway is called.
func New() *Ledger {
	return &Ledger{
		balances:   make(map[Address]uint64),
		accruals:   make(map[Address]uint64),
		holders:    NewHolderRegistry(),
		allowances: NewAllowanceTable(),
	}
}

// Open restores a ledger from the given store and persists every
// subsequent successful operation back to it. The store's state is
// verified on load: the supply must equal the balance sum and the
// holder sequence must mirror the non-zero balances exactly.
// The caller owns the store and closes it when done with the ledger.
func Open(store StateStore) (*Ledger, error) {
	state, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("ledger: load state: %w", err)
	}
	l := New()
	l.store = store
	if err := l.restore(state); err != nil {
		return nil, err
	}
	return l, nil
}

// SetGateway wires the payout gateway used by Burn and WithdrawDividend.
func (l *Ledger) SetGateway(g PayoutGateway) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.gateway = g
}

// restore loads a persisted snapshot, rejecting state whose invariants
// do not hold.
func (l *Ledger) restore(state *State) error {
	var sum uint64
	for addr, bal := range state.Balances {
		if bal == 0 {
			return fmt.Errorf("%w: zero balance record for %s", ErrCorruptState, addr)
		}
		s, ok := addChecked(sum, bal)
		if !ok {
			return fmt.Errorf("%w: balance sum overflows", ErrCorruptState)
		}
		sum = s
		l.balances[addr] = bal
	}
	if sum != state.TotalSupply {
		return fmt.Errorf("%w: total supply %d, balance sum %d", ErrCorruptState, state.TotalSupply, sum)
	}
	l.totalSupply = state.TotalSupply

	l.allowances.restore(state.Allowances)
	for addr, amount := range state.Accruals {
		l.accruals[addr] = amount
	}

	l.holders.reset(state.Holders)
	if l.holders.Count() != len(l.balances) {
		return fmt.Errorf("%w: %d holders, %d funded accounts", ErrCorruptState, l.holders.Count(), len(l.balances))
	}
	for _, h := range state.Holders {
		if l.balances[h] == 0 {
			return fmt.Errorf("%w: holder %s has no balance", ErrCorruptState, h)
		}
	}
	return nil
}

// snapshotLocked assembles the persistent view of the current state.
// The returned State shares the live maps; StateStore.Save must not
// retain it past the call. Callers hold at least a read lock.
func (l *Ledger) snapshotLocked() *State {
	return &State{
		Balances:    l.balances,
		Allowances:  l.allowances.snapshot(),
		Accruals:    l.accruals,
		TotalSupply: l.totalSupply,
		Holders:     l.holders.holders,
	}
}

// persistLocked saves the current state if a store is configured.
func (l *Ledger) persistLocked() error {
	if l.store == nil {
		return nil
	}
	if err := l.store.Save(l.snapshotLocked()); err != nil {
		return fmt.Errorf("ledger: persist state: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Supply operations
// ---------------------------------------------------------------------------

// Mint credits the caller with newly issued balance backed by a deposit
// of the same amount, and registers the caller as a holder.
// Fails with ErrInvalidAmount for a zero amount.
func (l *Ledger) Mint(caller Address, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if amount == 0 {
		return fmt.Errorf("%w: mint of zero units", ErrInvalidAmount)
	}
	newSupply, ok := addChecked(l.totalSupply, amount)
	if !ok {
		return fmt.Errorf("%w: supply %d + %d", ErrAmountOverflow, l.totalSupply, amount)
	}

	prev := l.balances[caller]
	// prev <= totalSupply, so this add cannot overflow when the supply
	// add did not.
	l.balances[caller] = prev + amount
	l.totalSupply = newSupply
	l.holders.Add(caller)

	if err := l.persistLocked(); err != nil {
		if prev == 0 {
			delete(l.balances, caller)
			l.holders.Remove(caller)
		} else {
			l.balances[caller] = prev
		}
		l.totalSupply = newSupply - amount
		return err
	}
	return nil
}

// Burn redeems the caller's entire balance: the balance is zeroed, the
// supply reduced, the caller deregistered as holder, and the prior
// balance paid to destination through the gateway. A gateway failure
// aborts the whole operation with ErrTransferFailed and restores all
// state, holder order included.
//
// Returns the gateway's settlement reference. If persisting after a
// successful payment fails, the reference is returned together with the
// store error; the in-memory ledger keeps the committed state.
func (l *Ledger) Burn(ctx context.Context, caller, destination Address) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	amount := l.balances[caller]
	if amount == 0 {
		return "", fmt.Errorf("%w: account %s", ErrNothingToBurn, caller)
	}
	if l.gateway == nil {
		return "", ErrNoGateway
	}

	// Commit effects before the external call: a reentrant observer
	// must see the post-burn state and cannot double-redeem.
	prevHolders := l.holders.Members()
	delete(l.balances, caller)
	l.totalSupply -= amount
	l.holders.Remove(caller)

	ref, err := l.gateway.Pay(ctx, destination, amount)
	if err != nil {
		l.balances[caller] = amount
		l.totalSupply += amount
		l.holders.reset(prevHolders)
		return "", fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}

	if err := l.persistLocked(); err != nil {
		return ref, err
	}
	return ref, nil
}

// ---------------------------------------------------------------------------
// Transfers
// ---------------------------------------------------------------------------

// Transfer moves amount from one account to another, keeping the holder
// registry in sync: the receiver is registered when its balance becomes
// positive and the sender deregistered when its balance reaches zero.
// Self-transfers still enforce the balance check but change nothing.
func (l *Ledger) Transfer(from, to Address, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.checkBalanceLocked(from, amount); err != nil {
		return err
	}
	if from == to || amount == 0 {
		return nil
	}
	return l.moveLocked(from, to, amount)
}

// TransferFrom moves amount from one account to another on behalf of
// spender, consuming exactly amount from spender's allowance. The
// balance is checked before the allowance; approving the maximum uint64
// is not treated as unlimited.
func (l *Ledger) TransferFrom(spender, from, to Address, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.checkBalanceLocked(from, amount); err != nil {
		return err
	}
	prevAllowance := l.allowances.Allowance(from, spender)
	if err := l.allowances.consume(from, spender, amount); err != nil {
		return err
	}

	if from == to || amount == 0 {
		if err := l.persistLocked(); err != nil {
			l.allowances.Approve(from, spender, prevAllowance)
			return err
		}
		return nil
	}

	if err := l.moveLocked(from, to, amount); err != nil {
		l.allowances.Approve(from, spender, prevAllowance)
		return err
	}
	return nil
}

// Approve sets spender's allowance from owner to exactly amount,
// overwriting any previous approval. There are no failure conditions
// beyond persistence.
func (l *Ledger) Approve(owner, spender Address, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	prev := l.allowances.Allowance(owner, spender)
	l.allowances.Approve(owner, spender, amount)
	if err := l.persistLocked(); err != nil {
		l.allowances.Approve(owner, spender, prev)
		return err
	}
	return nil
}

// checkBalanceLocked fails with ErrInsufficientBalance when from's
// balance does not cover amount.
func (l *Ledger) checkBalanceLocked(from Address, amount uint64) error {
	if bal := l.balances[from]; bal < amount {
		return fmt.Errorf("%w: balance %d, requested %d", ErrInsufficientBalance, bal, amount)
	}
	return nil
}

// moveLocked performs the balance move and registry sync shared by
// Transfer and TransferFrom, persisting the result. The caller has
// already validated the balance and guarantees from != to and
// amount > 0. On persist failure every change is undone.
func (l *Ledger) moveLocked(from, to Address, amount uint64) error {
	fromBal := l.balances[from]
	toBal := l.balances[to]
	prevHolders := l.holders.Members()

	if fromBal == amount {
		delete(l.balances, from)
		l.holders.Remove(from)
	} else {
		l.balances[from] = fromBal - amount
	}
	// toBal + amount is bounded by the total supply, so it cannot
	// overflow.
	l.balances[to] = toBal + amount
	l.holders.Add(to)

	if err := l.persistLocked(); err != nil {
		l.balances[from] = fromBal
		if toBal == 0 {
			delete(l.balances, to)
		} else {
			l.balances[to] = toBal
		}
		l.holders.reset(prevHolders)
		return err
	}
	return nil
}

// ---------------------------------------------------------------------------
// Reads
// ---------------------------------------------------------------------------

// BalanceOf returns the account's current balance.
func (l *Ledger) BalanceOf(account Address) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[account]
}

// Allowance returns the amount spender may still move from owner.
func (l *Ledger) Allowance(owner, spender Address) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.allowances.Allowance(owner, spender)
}

// TotalSupply returns the sum of all balances.
func (l *Ledger) TotalSupply() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.totalSupply
}

// NumHolders returns the number of accounts with a non-zero balance.
func (l *Ledger) NumHolders() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.holders.Count()
}

// HolderAt returns the holder at the given 1-based position. Positions
// are unstable: any mutation may reorder them.
func (l *Ledger) HolderAt(index int) (Address, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.holders.MemberAt(index)
}

// Holders returns a snapshot of the current holder sequence.
func (l *Ledger) Holders() []Address {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.holders.Members()
}

// addChecked returns a+b and whether the sum fits in 64 bits.
func addChecked(a, b uint64) (uint64, bool) {
	sum, carry := bits.Add64(a, b, 0)
	return sum, carry == 0
}
