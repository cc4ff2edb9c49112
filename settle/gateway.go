// Package settle implements the fund's on-chain payout gateway. A payout
// spends unspent outputs held at the reserve address into a single P2PKH
// payment to the destination holder, with change back to the reserve. The
// ledger calls the gateway as the final step of a burn or a dividend
// withdrawal, after all internal state has been committed.
package settle

import (
	"context"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"

	"github.com/bsv-blockchain/go-sdk/chainhash"
	"github.com/bsv-blockchain/go-sdk/script"
	"github.com/bsv-blockchain/go-sdk/transaction"
	"github.com/bsv-blockchain/go-sdk/transaction/template/p2pkh"

	"github.com/bitfsorg/libdividend-go/ledger"
	"github.com/bitfsorg/libdividend-go/network"
	"github.com/bitfsorg/libdividend-go/treasury"
)

const (
	// DustLimit is the minimum P2PKH output value in satoshis. Change
	// below this threshold is left to the miner as extra fee.
	DustLimit = uint64(546)

	// DefaultFeeRate is the default fee rate in sat/KB.
	DefaultFeeRate = uint64(500)
)

// Transaction size accounting for fee estimation. A signed P2PKH input
// contributes ~148 bytes (prevout 36, unlocking script ~107, sequence 4,
// varint 1) and a P2PKH output 34 bytes (value 8, varint 1, script 25).
// The base covers version, locktime, and the two count varints.
const (
	txBaseSize   = 10
	txInputSize  = 148
	txOutputSize = 34
)

// Gateway pays holders from the fund's reserve address. It implements
// ledger.PayoutGateway on top of a node RPC connection and the operator
// signing key.
type Gateway struct {
	chain    network.BlockchainService
	operator *treasury.Operator
	feeRate  uint64

	reserveAddr string
	reserveLock *script.Script

	// mu serializes payouts; concurrent payments would select the same
	// reserve outputs and double-spend them.
	mu sync.Mutex
}

var _ ledger.PayoutGateway = (*Gateway)(nil)

// NewGateway creates a payout gateway backed by the given node connection
// and operator key. The reserve address is imported into the node's wallet
// so ListUnspent can find its outputs; on a node that has never seen the
// address this triggers a chain rescan, which can take a while.
//
// A feeRate of 0 selects DefaultFeeRate.
func NewGateway(ctx context.Context, chain network.BlockchainService, op *treasury.Operator, feeRate uint64) (*Gateway, error) {
	if chain == nil {
		return nil, fmt.Errorf("%w: blockchain service", ErrNilParam)
	}
	if op == nil {
		return nil, fmt.Errorf("%w: operator", ErrNilParam)
	}
	if feeRate == 0 {
		feeRate = DefaultFeeRate
	}

	reserveAddr, err := op.ReserveAddress()
	if err != nil {
		return nil, err
	}
	addr, err := script.NewAddressFromString(reserveAddr)
	if err != nil {
		return nil, fmt.Errorf("%w: reserve address: %w", ErrBuildFailed, err)
	}
	reserveLock, err := p2pkh.Lock(addr)
	if err != nil {
		return nil, fmt.Errorf("%w: reserve lock script: %w", ErrBuildFailed, err)
	}

	if err := chain.ImportAddress(ctx, reserveAddr); err != nil {
		return nil, fmt.Errorf("settle: import reserve address: %w", err)
	}

	return &Gateway{
		chain:       chain,
		operator:    op,
		feeRate:     feeRate,
		reserveAddr: reserveAddr,
		reserveLock: reserveLock,
	}, nil
}

// ReserveAddress returns the base58 P2PKH address holding the fund's
// reserve. Deposits are paid to this address and payouts are funded
// from it.
func (g *Gateway) ReserveAddress() string {
	return g.reserveAddr
}

// ReserveBalance returns the sum of all unspent outputs at the reserve
// address.
func (g *Gateway) ReserveBalance(ctx context.Context) (uint64, error) {
	utxos, err := g.chain.ListUnspent(ctx, g.reserveAddr)
	if err != nil {
		return 0, fmt.Errorf("settle: list unspent: %w", err)
	}
	var total uint64
	for _, u := range utxos {
		total += u.Amount
	}
	return total, nil
}

// Pay builds, signs, and broadcasts a payout of amount satoshis to the
// destination public key hash. Returns the transaction ID of the payout.
//
// Reserve outputs are selected largest-first until they cover the amount
// plus the estimated fee. Change above the dust limit returns to the
// reserve address; dust change is left to the miner.
func (g *Gateway) Pay(ctx context.Context, destination ledger.Address, amount uint64) (string, error) {
	if amount == 0 {
		return "", fmt.Errorf("%w: zero amount", ErrInvalidParams)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	utxos, err := g.chain.ListUnspent(ctx, g.reserveAddr)
	if err != nil {
		return "", fmt.Errorf("settle: list unspent: %w", err)
	}

	selected, totalIn, err := selectUTXOs(utxos, amount, g.feeRate)
	if err != nil {
		return "", err
	}
	fee := estimateFee(len(selected), 2, g.feeRate)

	// Build the payout transaction.
	sdkTx := transaction.NewTransaction()

	for _, u := range selected {
		txidBytes := displayHexToInternal(u.TxID)
		if len(txidBytes) != 32 {
			return "", fmt.Errorf("%w: invalid utxo txid %q", ErrBuildFailed, u.TxID)
		}
		utxoHash, err := chainhash.NewHash(txidBytes)
		if err != nil {
			return "", fmt.Errorf("%w: invalid utxo txid: %w", ErrBuildFailed, err)
		}
		sdkTx.AddInput(&transaction.TransactionInput{
			SourceTXID:       utxoHash,
			SourceTxOutIndex: u.Vout,
			SequenceNumber:   transaction.DefaultSequenceNumber,
		})
	}

	// Payout output.
	destAddr, err := script.NewAddressFromPublicKeyHash(destination[:], g.operator.Network == "mainnet")
	if err != nil {
		return "", fmt.Errorf("%w: destination address: %w", ErrBuildFailed, err)
	}
	destLock, err := p2pkh.Lock(destAddr)
	if err != nil {
		return "", fmt.Errorf("%w: destination lock script: %w", ErrBuildFailed, err)
	}
	sdkTx.AddOutput(&transaction.TransactionOutput{
		Satoshis:      amount,
		LockingScript: destLock,
	})

	// Change output back to the reserve.
	change := totalIn - amount - fee
	if change > DustLimit {
		sdkTx.AddOutput(&transaction.TransactionOutput{
			Satoshis:      change,
			LockingScript: g.reserveLock,
		})
	}

	// Attach source outputs and P2PKH unlockers, then sign all inputs.
	for i, u := range selected {
		scriptPK, err := hex.DecodeString(u.ScriptPubKey)
		if err != nil {
			return "", fmt.Errorf("%w: invalid utxo script: %w", ErrBuildFailed, err)
		}
		sdkTx.Inputs[i].SetSourceTxOutput(&transaction.TransactionOutput{
			Satoshis:      u.Amount,
			LockingScript: script.NewFromBytes(scriptPK),
		})
		unlocker, err := p2pkh.Unlock(g.operator.PrivKey, nil)
		if err != nil {
			return "", fmt.Errorf("%w: create unlocker for input %d: %w", ErrSigningFailed, i, err)
		}
		sdkTx.Inputs[i].UnlockingScriptTemplate = unlocker
	}

	if err := sdkTx.Sign(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrSigningFailed, err)
	}

	txid, err := g.chain.BroadcastTx(ctx, sdkTx.Hex())
	if err != nil {
		return "", fmt.Errorf("settle: broadcast payout: %w", err)
	}
	return txid, nil
}

// selectUTXOs picks reserve outputs largest-first until they cover the
// amount plus the estimated fee for the resulting input count. Returns
// the selection and its total value.
func selectUTXOs(utxos []*network.UTXO, amount, feeRate uint64) ([]*network.UTXO, uint64, error) {
	sorted := make([]*network.UTXO, len(utxos))
	copy(sorted, utxos)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Amount > sorted[j].Amount })

	var selected []*network.UTXO
	var totalIn uint64
	need := amount + estimateFee(1, 2, feeRate)
	for _, u := range sorted {
		selected = append(selected, u)
		totalIn += u.Amount
		need = amount + estimateFee(len(selected), 2, feeRate)
		if totalIn >= need {
			return selected, totalIn, nil
		}
	}
	return nil, 0, fmt.Errorf("%w: need %d sat, have %d sat", ErrInsufficientReserve, need, totalIn)
}

// estimateFee returns ceil(size * feeRate / 1000) for a transaction with
// the given input and output counts.
func estimateFee(numInputs, numOutputs int, feeRate uint64) uint64 {
	size := txBaseSize + numInputs*txInputSize + numOutputs*txOutputSize
	fee := uint64(size) * feeRate
	return (fee + 999) / 1000
}

// displayHexToInternal converts a display hex txid (big-endian) to the
// internal byte order used by chainhash.
func displayHexToInternal(displayHex string) []byte {
	b, err := hex.DecodeString(displayHex)
	if err != nil {
		return nil
	}
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return b
}
