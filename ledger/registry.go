package ledger

import "fmt"

// HolderRegistry tracks the set of accounts with a non-zero balance as a
// compact sequence plus a membership flag per account. The sequence order
// is not stable: removal relocates the last element into the freed slot,
// so positions observed via MemberAt are only valid until the next
// mutation. The registry is not safe for concurrent use on its own; the
// owning Ledger serializes access.
type HolderRegistry struct {
	holders  []Address
	isHolder map[Address]bool
}

// NewHolderRegistry creates an empty registry.
func NewHolderRegistry() *HolderRegistry {
	return &HolderRegistry{
		isHolder: make(map[Address]bool),
	}
}

// Add registers an account as a holder. No-op if already registered.
func (r *HolderRegistry) Add(account Address) {
	if r.isHolder[account] {
		return
	}
	r.holders = append(r.holders, account)
	r.isHolder[account] = true
}

// Remove deregisters an account. No-op if not registered. The freed slot
// is filled by the current last element (swap-and-shrink), so removal
// costs one linear scan plus O(1) and does not preserve order.
func (r *HolderRegistry) Remove(account Address) {
	if !r.isHolder[account] {
		return
	}
	for i, h := range r.holders {
		if h == account {
			last := len(r.holders) - 1
			r.holders[i] = r.holders[last]
			r.holders = r.holders[:last]
			break
		}
	}
	delete(r.isHolder, account)
}

// Contains reports whether the account is currently registered.
func (r *HolderRegistry) Contains(account Address) bool {
	return r.isHolder[account]
}

// Count returns the current number of registered holders.
func (r *HolderRegistry) Count() int {
	return len(r.holders)
}

// MemberAt returns the holder at the given 1-based position.
// The position is unstable across mutations; callers must re-enumerate
// after any ledger operation.
func (r *HolderRegistry) MemberAt(index int) (Address, error) {
	if index < 1 || index > len(r.holders) {
		return Address{}, fmt.Errorf("%w: %d not in [1, %d]", ErrInvalidIndex, index, len(r.holders))
	}
	return r.holders[index-1], nil
}

// Members returns a copy of the current holder sequence.
func (r *HolderRegistry) Members() []Address {
	out := make([]Address, len(r.holders))
	copy(out, r.holders)
	return out
}

// reset replaces the registry contents with the given sequence.
// Used when restoring persisted state; duplicates are ignored.
func (r *HolderRegistry) reset(holders []Address) {
	r.holders = r.holders[:0]
	r.isHolder = make(map[Address]bool, len(holders))
	for _, h := range holders {
		r.Add(h)
	}
}
