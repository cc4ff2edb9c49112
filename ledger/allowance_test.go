package ledger

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowanceTable_ApproveOverwrites(t *testing.T) {
	tab := NewAllowanceTable()
	owner, spender := makeAddr(0x01), makeAddr(0x02)

	tab.Approve(owner, spender, 500)
	tab.Approve(owner, spender, 200)

	assert.Equal(t, uint64(200), tab.Allowance(owner, spender))

	// Approving the same amount again is idempotent, not additive.
	tab.Approve(owner, spender, 200)
	assert.Equal(t, uint64(200), tab.Allowance(owner, spender))
}

func TestAllowanceTable_UnknownPairIsZero(t *testing.T) {
	tab := NewAllowanceTable()
	assert.Equal(t, uint64(0), tab.Allowance(makeAddr(0x01), makeAddr(0x02)))
}

func TestAllowanceTable_ConsumeExact(t *testing.T) {
	tab := NewAllowanceTable()
	owner, spender := makeAddr(0x01), makeAddr(0x02)
	tab.Approve(owner, spender, 100)

	require.NoError(t, tab.consume(owner, spender, 60))
	assert.Equal(t, uint64(40), tab.Allowance(owner, spender))

	require.NoError(t, tab.consume(owner, spender, 40))
	assert.Equal(t, uint64(0), tab.Allowance(owner, spender))

	err := tab.consume(owner, spender, 1)
	assert.ErrorIs(t, err, ErrAllowanceExceeded)
}

func TestAllowanceTable_MaxIsNotUnlimited(t *testing.T) {
	tab := NewAllowanceTable()
	owner, spender := makeAddr(0x01), makeAddr(0x02)
	tab.Approve(owner, spender, math.MaxUint64)

	require.NoError(t, tab.consume(owner, spender, 1))

	// The maximum value is an ordinary amount: spending decrements it.
	assert.Equal(t, uint64(math.MaxUint64-1), tab.Allowance(owner, spender))
}

func TestAllowanceTable_SnapshotRestoreRoundTrip(t *testing.T) {
	tab := NewAllowanceTable()
	tab.Approve(makeAddr(0x01), makeAddr(0x02), 100)
	tab.Approve(makeAddr(0x01), makeAddr(0x03), 200)
	tab.Approve(makeAddr(0x04), makeAddr(0x02), 300)

	snap := tab.snapshot()
	require.Len(t, snap, 3)

	restored := NewAllowanceTable()
	restored.restore(snap)
	assert.Equal(t, uint64(100), restored.Allowance(makeAddr(0x01), makeAddr(0x02)))
	assert.Equal(t, uint64(200), restored.Allowance(makeAddr(0x01), makeAddr(0x03)))
	assert.Equal(t, uint64(300), restored.Allowance(makeAddr(0x04), makeAddr(0x02)))
}
