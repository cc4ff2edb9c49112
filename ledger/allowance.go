package ledger

import "fmt"

// AllowanceTable holds owner to spender approval amounts.
// Approvals overwrite; spending decrements by the exact amount spent.
// There is no unlimited-allowance sentinel: approving the maximum uint64
// grants exactly that much, no more.
type AllowanceTable struct {
	grants map[Address]map[Address]uint64
}

// NewAllowanceTable creates an empty table.
func NewAllowanceTable() *AllowanceTable {
	return &AllowanceTable{
		grants: make(map[Address]map[Address]uint64),
	}
}

// Approve sets the spender's allowance from owner to exactly amount,
// replacing any prior approval.
func (t *AllowanceTable) Approve(owner, spender Address, amount uint64) {
	row := t.grants[owner]
	if row == nil {
		row = make(map[Address]uint64)
		t.grants[owner] = row
	}
	if amount == 0 {
		delete(row, spender)
		if len(row) == 0 {
			delete(t.grants, owner)
		}
		return
	}
	row[spender] = amount
}

// Allowance returns the amount spender may still move from owner.
func (t *AllowanceTable) Allowance(owner, spender Address) uint64 {
	return t.grants[owner][spender]
}

// consume decrements the spender's allowance by amount.
// Fails with ErrAllowanceExceeded if the remaining allowance is smaller.
func (t *AllowanceTable) consume(owner, spender Address, amount uint64) error {
	have := t.grants[owner][spender]
	if have < amount {
		return fmt.Errorf("%w: allowance %d, requested %d", ErrAllowanceExceeded, have, amount)
	}
	t.Approve(owner, spender, have-amount)
	return nil
}

// snapshot returns a flat copy of all non-zero grants keyed by owner and
// spender, for persistence.
func (t *AllowanceTable) snapshot() map[AllowanceKey]uint64 {
	out := make(map[AllowanceKey]uint64)
	for owner, row := range t.grants {
		for spender, amount := range row {
			out[AllowanceKey{Owner: owner, Spender: spender}] = amount
		}
	}
	return out
}

// restore replaces the table contents with the given grants.
func (t *AllowanceTable) restore(grants map[AllowanceKey]uint64) {
	t.grants = make(map[Address]map[Address]uint64)
	for k, amount := range grants {
		t.Approve(k.Owner, k.Spender, amount)
	}
}

// AllowanceKey identifies one owner to spender grant.
type AllowanceKey struct {
	Owner   Address
	Spender Address
}
