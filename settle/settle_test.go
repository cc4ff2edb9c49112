package settle

import (
	"context"
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/bsv-blockchain/go-sdk/script"
	"github.com/bsv-blockchain/go-sdk/transaction"
	"github.com/bsv-blockchain/go-sdk/transaction/template/p2pkh"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitfsorg/libdividend-go/ledger"
	"github.com/bitfsorg/libdividend-go/network"
	"github.com/bitfsorg/libdividend-go/treasury"
)

// --- Test helpers ---

func testOperator(t *testing.T) *treasury.Operator {
	t.Helper()
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i + 1)
	}
	op, err := treasury.OperatorFromBytes(key, "mainnet")
	require.NoError(t, err)
	return op
}

// reserveUTXO builds an unspent output locked to the operator's reserve
// address, as listunspent would report it.
func reserveUTXO(t *testing.T, op *treasury.Operator, txid string, vout uint32, amount uint64) *network.UTXO {
	t.Helper()
	reserve, err := op.ReserveAddress()
	require.NoError(t, err)
	addr, err := script.NewAddressFromString(reserve)
	require.NoError(t, err)
	lock, err := p2pkh.Lock(addr)
	require.NoError(t, err)
	return &network.UTXO{
		TxID:          txid,
		Vout:          vout,
		Amount:        amount,
		ScriptPubKey:  hex.EncodeToString([]byte(*lock)),
		Address:       reserve,
		Confirmations: 6,
	}
}

func newTestGateway(t *testing.T, op *treasury.Operator, utxos []*network.UTXO, broadcast *string) *Gateway {
	t.Helper()
	mock := &network.MockBlockchainService{
		ImportAddressFn: func(ctx context.Context, address string) error { return nil },
		ListUnspentFn: func(ctx context.Context, address string) ([]*network.UTXO, error) {
			return utxos, nil
		},
		BroadcastTxFn: func(ctx context.Context, rawTxHex string) (string, error) {
			if broadcast != nil {
				*broadcast = rawTxHex
			}
			return "payout-txid", nil
		},
	}
	g, err := NewGateway(context.Background(), mock, op, 500)
	require.NoError(t, err)
	return g
}

func parseTxHex(t *testing.T, rawHex string) *transaction.Transaction {
	t.Helper()
	raw, err := hex.DecodeString(rawHex)
	require.NoError(t, err)
	tx, err := transaction.NewTransactionFromBytes(raw)
	require.NoError(t, err)
	return tx
}

func destAddress(t *testing.T) ledger.Address {
	t.Helper()
	addr, err := script.NewAddressFromString("1BvBMSEYstWetqTFn5Au4m4GFg7xJaNVN2")
	require.NoError(t, err)
	dest, ok := ledger.AddressFromBytes([]byte(addr.PublicKeyHash))
	require.True(t, ok)
	return dest
}

// --- NewGateway tests ---

func TestNewGateway_ImportsReserveAddress(t *testing.T) {
	op := testOperator(t)
	reserve, err := op.ReserveAddress()
	require.NoError(t, err)

	var imported string
	mock := &network.MockBlockchainService{
		ImportAddressFn: func(ctx context.Context, address string) error {
			imported = address
			return nil
		},
	}

	g, err := NewGateway(context.Background(), mock, op, 500)
	require.NoError(t, err)
	assert.Equal(t, reserve, imported)
	assert.Equal(t, reserve, g.ReserveAddress())
}

func TestNewGateway_NilChain(t *testing.T) {
	_, err := NewGateway(context.Background(), nil, testOperator(t), 500)
	assert.ErrorIs(t, err, ErrNilParam)
}

func TestNewGateway_NilOperator(t *testing.T) {
	mock := &network.MockBlockchainService{}
	_, err := NewGateway(context.Background(), mock, nil, 500)
	assert.ErrorIs(t, err, ErrNilParam)
}

func TestNewGateway_ZeroFeeRateUsesDefault(t *testing.T) {
	mock := &network.MockBlockchainService{
		ImportAddressFn: func(ctx context.Context, address string) error { return nil },
	}
	g, err := NewGateway(context.Background(), mock, testOperator(t), 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultFeeRate, g.feeRate)
}

func TestNewGateway_ImportError(t *testing.T) {
	mock := &network.MockBlockchainService{
		ImportAddressFn: func(ctx context.Context, address string) error {
			return errors.New("rescan aborted")
		},
	}
	_, err := NewGateway(context.Background(), mock, testOperator(t), 500)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "import reserve address")
}

// --- Pay tests ---

func TestPay_ZeroAmount(t *testing.T) {
	op := testOperator(t)
	g := newTestGateway(t, op, nil, nil)

	_, err := g.Pay(context.Background(), destAddress(t), 0)
	assert.ErrorIs(t, err, ErrInvalidParams)
}

func TestPay_Success(t *testing.T) {
	op := testOperator(t)
	utxos := []*network.UTXO{
		reserveUTXO(t, op, strings.Repeat("11", 32), 0, 100_000),
	}
	var broadcast string
	g := newTestGateway(t, op, utxos, &broadcast)

	dest := destAddress(t)
	txid, err := g.Pay(context.Background(), dest, 50_000)
	require.NoError(t, err)
	assert.Equal(t, "payout-txid", txid)

	tx := parseTxHex(t, broadcast)
	require.Len(t, tx.Inputs, 1)
	require.Len(t, tx.Outputs, 2)

	// Output 0 pays the destination.
	assert.Equal(t, uint64(50_000), tx.Outputs[0].Satoshis)
	require.True(t, tx.Outputs[0].LockingScript.IsP2PKH())
	destPKH, err := tx.Outputs[0].LockingScript.PublicKeyHash()
	require.NoError(t, err)
	assert.Equal(t, dest[:], destPKH)

	// Output 1 returns change to the reserve.
	reserve, err := op.ReserveAddress()
	require.NoError(t, err)
	reserveAddr, err := script.NewAddressFromString(reserve)
	require.NoError(t, err)
	changePKH, err := tx.Outputs[1].LockingScript.PublicKeyHash()
	require.NoError(t, err)
	assert.Equal(t, []byte(reserveAddr.PublicKeyHash), changePKH)

	wantChange := uint64(100_000) - 50_000 - estimateFee(1, 2, 500)
	assert.Equal(t, wantChange, tx.Outputs[1].Satoshis)
}

func TestPay_SignsInputs(t *testing.T) {
	op := testOperator(t)
	utxos := []*network.UTXO{
		reserveUTXO(t, op, strings.Repeat("22", 32), 1, 100_000),
	}
	var broadcast string
	g := newTestGateway(t, op, utxos, &broadcast)

	_, err := g.Pay(context.Background(), destAddress(t), 10_000)
	require.NoError(t, err)

	tx := parseTxHex(t, broadcast)
	require.Len(t, tx.Inputs, 1)
	require.NotNil(t, tx.Inputs[0].UnlockingScript)
	assert.NotEmpty(t, []byte(*tx.Inputs[0].UnlockingScript))
}

func TestPay_InsufficientReserve(t *testing.T) {
	op := testOperator(t)
	utxos := []*network.UTXO{
		reserveUTXO(t, op, strings.Repeat("33", 32), 0, 1000),
	}
	broadcastCalled := false
	mock := &network.MockBlockchainService{
		ImportAddressFn: func(ctx context.Context, address string) error { return nil },
		ListUnspentFn: func(ctx context.Context, address string) ([]*network.UTXO, error) {
			return utxos, nil
		},
		BroadcastTxFn: func(ctx context.Context, rawTxHex string) (string, error) {
			broadcastCalled = true
			return "", nil
		},
	}
	g, err := NewGateway(context.Background(), mock, op, 500)
	require.NoError(t, err)

	_, err = g.Pay(context.Background(), destAddress(t), 5000)
	assert.ErrorIs(t, err, ErrInsufficientReserve)
	assert.False(t, broadcastCalled, "failed payout must not broadcast")
}

func TestPay_SelectsLargestFirst(t *testing.T) {
	op := testOperator(t)
	bigTxID := strings.Repeat("bb", 32)
	utxos := []*network.UTXO{
		reserveUTXO(t, op, strings.Repeat("aa", 32), 0, 1000),
		reserveUTXO(t, op, bigTxID, 0, 80_000),
		reserveUTXO(t, op, strings.Repeat("cc", 32), 0, 5000),
	}
	var broadcast string
	g := newTestGateway(t, op, utxos, &broadcast)

	_, err := g.Pay(context.Background(), destAddress(t), 50_000)
	require.NoError(t, err)

	tx := parseTxHex(t, broadcast)
	require.Len(t, tx.Inputs, 1, "largest output alone covers the payout")
	assert.Equal(t, bigTxID, tx.Inputs[0].SourceTXID.String())
}

func TestPay_CombinesInputs(t *testing.T) {
	op := testOperator(t)
	utxos := []*network.UTXO{
		reserveUTXO(t, op, strings.Repeat("dd", 32), 0, 30_000),
		reserveUTXO(t, op, strings.Repeat("ee", 32), 1, 30_000),
	}
	var broadcast string
	g := newTestGateway(t, op, utxos, &broadcast)

	_, err := g.Pay(context.Background(), destAddress(t), 50_000)
	require.NoError(t, err)

	tx := parseTxHex(t, broadcast)
	require.Len(t, tx.Inputs, 2)
	require.Len(t, tx.Outputs, 2)
	wantChange := uint64(60_000) - 50_000 - estimateFee(2, 2, 500)
	assert.Equal(t, wantChange, tx.Outputs[1].Satoshis)
}

func TestPay_DustChangeDropped(t *testing.T) {
	op := testOperator(t)
	// Input leaves exactly 500 sat of change, below the dust limit.
	amount := uint64(50_000)
	input := amount + estimateFee(1, 2, 500) + 500
	utxos := []*network.UTXO{
		reserveUTXO(t, op, strings.Repeat("ff", 32), 0, input),
	}
	var broadcast string
	g := newTestGateway(t, op, utxos, &broadcast)

	_, err := g.Pay(context.Background(), destAddress(t), amount)
	require.NoError(t, err)

	tx := parseTxHex(t, broadcast)
	require.Len(t, tx.Outputs, 1, "dust change goes to the miner, not a change output")
	assert.Equal(t, amount, tx.Outputs[0].Satoshis)
}

func TestPay_ListUnspentError(t *testing.T) {
	op := testOperator(t)
	mock := &network.MockBlockchainService{
		ImportAddressFn: func(ctx context.Context, address string) error { return nil },
		ListUnspentFn: func(ctx context.Context, address string) ([]*network.UTXO, error) {
			return nil, errors.New("connection refused")
		},
	}
	g, err := NewGateway(context.Background(), mock, op, 500)
	require.NoError(t, err)

	_, err = g.Pay(context.Background(), destAddress(t), 1000)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list unspent")
}

func TestPay_BroadcastError(t *testing.T) {
	op := testOperator(t)
	utxos := []*network.UTXO{
		reserveUTXO(t, op, strings.Repeat("11", 32), 0, 100_000),
	}
	mock := &network.MockBlockchainService{
		ImportAddressFn: func(ctx context.Context, address string) error { return nil },
		ListUnspentFn: func(ctx context.Context, address string) ([]*network.UTXO, error) {
			return utxos, nil
		},
		BroadcastTxFn: func(ctx context.Context, rawTxHex string) (string, error) {
			return "", errors.New("txn-mempool-conflict")
		},
	}
	g, err := NewGateway(context.Background(), mock, op, 500)
	require.NoError(t, err)

	_, err = g.Pay(context.Background(), destAddress(t), 1000)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broadcast payout")
}

// --- ReserveBalance tests ---

func TestReserveBalance(t *testing.T) {
	op := testOperator(t)
	utxos := []*network.UTXO{
		reserveUTXO(t, op, strings.Repeat("11", 32), 0, 1000),
		reserveUTXO(t, op, strings.Repeat("22", 32), 0, 2500),
	}
	g := newTestGateway(t, op, utxos, nil)

	balance, err := g.ReserveBalance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(3500), balance)
}

func TestReserveBalance_Empty(t *testing.T) {
	op := testOperator(t)
	g := newTestGateway(t, op, nil, nil)

	balance, err := g.ReserveBalance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(0), balance)
}

// --- Fee estimation tests ---

func TestEstimateFee(t *testing.T) {
	tests := []struct {
		name    string
		inputs  int
		outputs int
		rate    uint64
		want    uint64
	}{
		{"one_in_two_out", 1, 2, 500, 113},
		{"two_in_two_out", 2, 2, 500, 187},
		{"one_in_one_out", 1, 1, 500, 96},
		{"rounds_up", 1, 2, 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, estimateFee(tt.inputs, tt.outputs, tt.rate))
		})
	}
}

func TestSelectUTXOs_Empty(t *testing.T) {
	_, _, err := selectUTXOs(nil, 1000, 500)
	assert.ErrorIs(t, err, ErrInsufficientReserve)
}

// --- Interface compliance ---

func TestGatewayImplementsPayoutGateway(t *testing.T) {
	var g interface{} = &Gateway{}
	_, ok := g.(ledger.PayoutGateway)
	assert.True(t, ok)
}
