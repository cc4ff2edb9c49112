package ledger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempBoltStateStore(t *testing.T) *BoltStateStore {
	t.Helper()
	dir := t.TempDir()
	store, err := OpenBoltStateStore(filepath.Join(dir, "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testState() *State {
	s := NewState()
	s.Balances[makeAddr(0xAA)] = 100
	s.Balances[makeAddr(0xBB)] = 300
	s.Allowances[AllowanceKey{Owner: makeAddr(0xAA), Spender: makeAddr(0xCC)}] = 25
	s.Accruals[makeAddr(0xAA)] = 10
	s.Accruals[makeAddr(0xDD)] = 5 // former holder with remaining accrual
	s.TotalSupply = 400
	s.Holders = []Address{makeAddr(0xAA), makeAddr(0xBB)}
	return s
}

func TestBoltStateStore_EmptyLoad(t *testing.T) {
	store := tempBoltStateStore(t)

	state, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, state.Balances)
	assert.Empty(t, state.Allowances)
	assert.Empty(t, state.Accruals)
	assert.Empty(t, state.Holders)
	assert.Equal(t, uint64(0), state.TotalSupply)
}

func TestBoltStateStore_SaveLoadRoundTrip(t *testing.T) {
	store := tempBoltStateStore(t)
	state := testState()

	require.NoError(t, store.Save(state))

	got, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, state.Balances, got.Balances)
	assert.Equal(t, state.Allowances, got.Allowances)
	assert.Equal(t, state.Accruals, got.Accruals)
	assert.Equal(t, state.TotalSupply, got.TotalSupply)
	assert.Equal(t, state.Holders, got.Holders)
}

func TestBoltStateStore_SaveReplacesPriorState(t *testing.T) {
	store := tempBoltStateStore(t)
	require.NoError(t, store.Save(testState()))

	// A smaller state must fully replace the earlier one, not merge.
	next := NewState()
	next.Balances[makeAddr(0xBB)] = 300
	next.TotalSupply = 300
	next.Holders = []Address{makeAddr(0xBB)}
	require.NoError(t, store.Save(next))

	got, err := store.Load()
	require.NoError(t, err)
	assert.Len(t, got.Balances, 1)
	assert.Empty(t, got.Allowances)
	assert.Empty(t, got.Accruals)
	assert.Equal(t, uint64(300), got.TotalSupply)
	assert.Equal(t, []Address{makeAddr(0xBB)}, got.Holders)
}

func TestBoltStateStore_HolderOrderPreserved(t *testing.T) {
	store := tempBoltStateStore(t)
	state := NewState()
	// Deliberately not in byte order: positions, not keys, must decide.
	state.Holders = []Address{makeAddr(0x05), makeAddr(0x01), makeAddr(0x03)}
	for _, h := range state.Holders {
		state.Balances[h] = 10
	}
	state.TotalSupply = 30

	require.NoError(t, store.Save(state))

	got, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, state.Holders, got.Holders)
}

func TestBoltStateStore_Persistence(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "ledger.db")

	store1, err := OpenBoltStateStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, store1.Save(testState()))
	store1.Close()

	store2, err := OpenBoltStateStore(dbPath)
	require.NoError(t, err)
	defer store2.Close()

	got, err := store2.Load()
	require.NoError(t, err)
	assert.Equal(t, uint64(400), got.TotalSupply)
	assert.Len(t, got.Balances, 2)
}

func TestBoltStateStore_CreateDirectory(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "a", "b")
	dbPath := filepath.Join(nested, "ledger.db")

	store, err := OpenBoltStateStore(dbPath)
	require.NoError(t, err)
	defer store.Close()

	_, err = os.Stat(nested)
	assert.NoError(t, err, "nested directory should be created")
}

func TestLedger_BoltReopenEndToEnd(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "ledger.db")
	a, b := makeAddr(0xAA), makeAddr(0xBB)

	store1, err := OpenBoltStateStore(dbPath)
	require.NoError(t, err)
	l1, err := Open(store1)
	require.NoError(t, err)
	require.NoError(t, l1.Mint(a, 100))
	require.NoError(t, l1.Mint(b, 300))
	require.NoError(t, l1.RecordDividend(40))
	holders := l1.Holders()
	require.NoError(t, store1.Close())

	store2, err := OpenBoltStateStore(dbPath)
	require.NoError(t, err)
	defer store2.Close()
	l2, err := Open(store2)
	require.NoError(t, err)

	assert.Equal(t, uint64(400), l2.TotalSupply())
	assert.Equal(t, uint64(100), l2.BalanceOf(a))
	assert.Equal(t, uint64(10), l2.WithdrawableDividend(a))
	assert.Equal(t, uint64(30), l2.WithdrawableDividend(b))
	assert.Equal(t, holders, l2.Holders())
	checkInvariants(t, l2)
}
