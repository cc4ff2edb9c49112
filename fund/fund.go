// Package fund wires the account ledger to its backing value: deposits
// that mint balances, an on-chain gateway that settles redemptions and
// dividend withdrawals, and payout-handle resolution for paying people
// instead of addresses.
package fund

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bitfsorg/libdividend-go/config"
	"github.com/bitfsorg/libdividend-go/deposit"
	"github.com/bitfsorg/libdividend-go/handle"
	"github.com/bitfsorg/libdividend-go/ledger"
	"github.com/bitfsorg/libdividend-go/network"
	"github.com/bitfsorg/libdividend-go/settle"
	"github.com/bitfsorg/libdividend-go/treasury"
)

// LedgerFile is the name of the ledger database inside a fund data
// directory.
const LedgerFile = "ledger.db"

// LockFile is the name of the data-directory lock file. The lock is
// held for the fund's lifetime so two processes cannot credit the same
// deposit twice.
const LockFile = "fund.lock"

// HandleResolver resolves a payout handle (alias@domain) to a ledger
// address. *handle.Resolver satisfies it.
type HandleResolver interface {
	Resolve(ctx context.Context, rawHandle string) (ledger.Address, error)
}

// Fund is the shared business logic layer. Embedding applications call
// Fund methods to take deposits, move balances, and settle payouts.
type Fund struct {
	Ledger   *ledger.Ledger
	Store    *ledger.BoltStateStore
	Operator *treasury.Operator
	Resolver HandleResolver // payout handle resolution for WithdrawToHandle
	State    *LocalState
	Config   config.Config
	DataDir  string
	Chain    network.BlockchainService // optional; nil = offline mode
	Gateway  *settle.Gateway           // nil in offline mode; Redeem and Withdraw need it

	lock *os.File // exclusive data-directory lock, held until Close
}

// Result holds the output of a fund operation.
type Result struct {
	TxID    string // deposit or settlement transaction ID hex
	Amount  uint64 // satoshis moved by the operation
	Message string // human-readable summary
}

// Init creates a new fund data directory: it writes the config file and
// generates a fresh operator key encrypted with the password. Fails if
// an operator key already exists in the directory.
func Init(dataDir, password string, cfg config.Config) error {
	if password == "" {
		return fmt.Errorf("fund: password is required")
	}

	opPath := treasury.OperatorPath(dataDir)
	if _, err := os.Stat(opPath); err == nil {
		return fmt.Errorf("fund: operator key already exists at %s", opPath)
	}

	cfg.DataDir = dataDir
	if err := config.ValidateConfig(cfg); err != nil {
		return fmt.Errorf("fund: invalid config: %w", err)
	}
	if err := config.SaveConfig(config.ConfigPath(dataDir), cfg); err != nil {
		return err
	}

	op, err := treasury.NewOperator(cfg.Network)
	if err != nil {
		return err
	}
	return treasury.SaveOperator(opPath, op, password)
}

// Open loads a fund from its data directory.
//
// A node connection is made when the config file or DIVFUND_RPC_URL
// names a node endpoint; the reserve address is then imported for
// watching and the payout gateway is wired into the ledger. Without a
// node the fund runs offline: deposits mint on local verification
// alone, and redemption and withdrawal are unavailable.
func Open(ctx context.Context, dataDir, password string) (*Fund, error) {
	if password == "" {
		return nil, fmt.Errorf("fund: password is required")
	}

	cfg, err := config.LoadConfig(config.ConfigPath(dataDir))
	if err != nil && !errors.Is(err, config.ErrConfigNotFound) {
		return nil, fmt.Errorf("fund: load config: %w", err)
	}
	cfg.DataDir = dataDir
	if err := config.ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("fund: invalid config: %w", err)
	}

	op, err := treasury.LoadOperator(treasury.OperatorPath(dataDir), password, cfg.Network)
	if err != nil {
		return nil, fmt.Errorf("fund: load operator: %w", err)
	}

	lock, err := tryLock(filepath.Join(dataDir, LockFile))
	if err != nil {
		return nil, fmt.Errorf("fund: %w", err)
	}

	store, err := ledger.OpenBoltStateStore(filepath.Join(dataDir, LedgerFile))
	if err != nil {
		releaseLock(lock)
		return nil, fmt.Errorf("fund: open ledger store: %w", err)
	}

	led, err := ledger.Open(store)
	if err != nil {
		_ = store.Close()
		releaseLock(lock)
		return nil, err
	}

	state, err := LoadLocalState(filepath.Join(dataDir, StateFile))
	if err != nil {
		_ = store.Close()
		releaseLock(lock)
		return nil, err
	}

	f := &Fund{
		Ledger:   led,
		Store:    store,
		Operator: op,
		Resolver: handle.NewResolver(),
		State:    state,
		Config:   cfg,
		DataDir:  dataDir,
		lock:     lock,
	}

	nodeURL := cfg.NodeURL
	if nodeURL == "" {
		nodeURL = os.Getenv("DIVFUND_RPC_URL")
	}
	if nodeURL != "" {
		rpcCfg, err := network.ResolveConfig(&network.RPCConfig{
			URL:      cfg.NodeURL,
			User:     cfg.NodeUser,
			Password: cfg.NodePass,
		}, rpcEnv(), cfg.Network)
		if err != nil {
			_ = store.Close()
			releaseLock(lock)
			return nil, err
		}
		f.Chain = network.NewRPCClient(*rpcCfg)

		gw, err := settle.NewGateway(ctx, f.Chain, op, cfg.FeeRate)
		if err != nil {
			_ = store.Close()
			releaseLock(lock)
			return nil, fmt.Errorf("fund: wire payout gateway: %w", err)
		}
		f.Gateway = gw
		f.Ledger.SetGateway(gw)
	}

	return f, nil
}

// rpcEnv collects the DIVFUND_RPC_* environment overrides.
func rpcEnv() map[string]string {
	return map[string]string{
		"DIVFUND_RPC_URL":  os.Getenv("DIVFUND_RPC_URL"),
		"DIVFUND_RPC_USER": os.Getenv("DIVFUND_RPC_USER"),
		"DIVFUND_RPC_PASS": os.Getenv("DIVFUND_RPC_PASS"),
	}
}

// Close persists local state, releases the ledger store, and drops the
// data-directory lock. Should be called when done.
func (f *Fund) Close() error {
	var firstErr error
	if err := f.State.Save(); err != nil {
		firstErr = err
	}
	if f.Store != nil {
		if err := f.Store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	releaseLock(f.lock)
	f.lock = nil
	return firstErr
}

// ReserveAddress returns the fund's base58 reserve address. Deposits
// pay it, and every settlement transaction spends from it.
func (f *Fund) ReserveAddress() (string, error) {
	return f.Operator.ReserveAddress()
}

// ReserveBalance returns the spendable satoshis held at the reserve
// address. Requires a blockchain service.
func (f *Fund) ReserveBalance(ctx context.Context) (uint64, error) {
	if f.Gateway == nil {
		return 0, ErrOffline
	}
	return f.Gateway.ReserveBalance(ctx)
}

// NewInvoice creates a deposit invoice paying the fund's reserve
// address. amount is the minimum deposit in satoshis.
func (f *Fund) NewInvoice(amount uint64, ttlSeconds int64) (*deposit.Invoice, error) {
	addr, err := f.Operator.ReserveAddress()
	if err != nil {
		return nil, err
	}
	return deposit.NewInvoice(amount, addr, ttlSeconds), nil
}

// Deposit verifies a funding transaction against an invoice and mints
// the deposited amount to the account.
//
// Each transaction ID is credited at most once. When a node is
// connected, the deposit output must exist unspent with at least the
// configured confirmations before it mints.
func (f *Fund) Deposit(ctx context.Context, account ledger.Address, inv *deposit.Invoice, rawTx []byte) (*Result, error) {
	receipt, err := deposit.VerifyDeposit(rawTx, inv)
	if err != nil {
		return nil, err
	}

	if f.State.DepositUsed(receipt.TxID) {
		return nil, fmt.Errorf("%w: %s", ErrDepositReplayed, receipt.TxID)
	}

	if f.Chain != nil {
		u, err := f.Chain.GetUTXO(ctx, receipt.TxID, receipt.Vout)
		if err != nil {
			if errors.Is(err, network.ErrTxNotFound) {
				return nil, fmt.Errorf("%w: output %s:%d", ErrDepositSpent, receipt.TxID, receipt.Vout)
			}
			return nil, fmt.Errorf("fund: look up deposit output: %w", err)
		}
		if u.Confirmations < f.Config.MinConf {
			return nil, fmt.Errorf("%w: %d of %d confirmations",
				ErrDepositUnconfirmed, u.Confirmations, f.Config.MinConf)
		}
	}

	if !f.State.MarkDeposit(receipt.TxID, account.String()) {
		return nil, fmt.Errorf("%w: %s", ErrDepositReplayed, receipt.TxID)
	}
	if err := f.Ledger.Mint(account, receipt.Amount); err != nil {
		f.State.UnmarkDeposit(receipt.TxID)
		return nil, err
	}
	if err := f.State.Save(); err != nil {
		return nil, fmt.Errorf("fund: save deposit log: %w", err)
	}

	return &Result{
		TxID:    receipt.TxID,
		Amount:  receipt.Amount,
		Message: fmt.Sprintf("Credited %d sats to %s", receipt.Amount, account),
	}, nil
}

// DepositTxID credits a deposit by transaction ID, fetching the raw
// transaction from the node. Requires a blockchain service.
func (f *Fund) DepositTxID(ctx context.Context, account ledger.Address, inv *deposit.Invoice, txid string) (*Result, error) {
	if f.Chain == nil {
		return nil, ErrOffline
	}
	rawTx, err := f.Chain.GetRawTx(ctx, txid)
	if err != nil {
		return nil, fmt.Errorf("fund: fetch deposit tx: %w", err)
	}
	return f.Deposit(ctx, account, inv, rawTx)
}

// Redeem burns the account's entire balance and pays the backing
// satoshis to the destination address.
func (f *Fund) Redeem(ctx context.Context, account, destination ledger.Address) (*Result, error) {
	amount := f.Ledger.BalanceOf(account)
	txid, err := f.Ledger.Burn(ctx, account, destination)
	if err != nil {
		return nil, err
	}
	return &Result{
		TxID:    txid,
		Amount:  amount,
		Message: fmt.Sprintf("Redeemed %d sats from %s", amount, account),
	}, nil
}

// RedeemToHandle resolves a payout handle and redeems the account's
// balance to the resolved address.
func (f *Fund) RedeemToHandle(ctx context.Context, account ledger.Address, rawHandle string) (*Result, error) {
	destination, err := f.resolveHandle(ctx, rawHandle)
	if err != nil {
		return nil, err
	}
	return f.Redeem(ctx, account, destination)
}

// RecordRevenue distributes received revenue across current holders in
// proportion to their balances.
func (f *Fund) RecordRevenue(amount uint64) error {
	return f.Ledger.RecordDividend(amount)
}

// Withdrawable returns the dividends an account has accrued and not yet
// withdrawn.
func (f *Fund) Withdrawable(account ledger.Address) uint64 {
	return f.Ledger.WithdrawableDividend(account)
}

// Withdraw pays an account's accrued dividends to the destination
// address.
func (f *Fund) Withdraw(ctx context.Context, account, destination ledger.Address) (*Result, error) {
	amount := f.Ledger.WithdrawableDividend(account)
	txid, err := f.Ledger.WithdrawDividend(ctx, account, destination)
	if err != nil {
		return nil, err
	}
	return &Result{
		TxID:    txid,
		Amount:  amount,
		Message: fmt.Sprintf("Withdrew %d sats for %s", amount, account),
	}, nil
}

// WithdrawToHandle resolves a payout handle and withdraws the account's
// accrued dividends to the resolved address.
func (f *Fund) WithdrawToHandle(ctx context.Context, account ledger.Address, rawHandle string) (*Result, error) {
	destination, err := f.resolveHandle(ctx, rawHandle)
	if err != nil {
		return nil, err
	}
	return f.Withdraw(ctx, account, destination)
}

// resolveHandle resolves alias@domain to a destination address.
func (f *Fund) resolveHandle(ctx context.Context, rawHandle string) (ledger.Address, error) {
	if f.Resolver == nil {
		return ledger.Address{}, fmt.Errorf("fund: no handle resolver configured")
	}
	destination, err := f.Resolver.Resolve(ctx, rawHandle)
	if err != nil {
		return ledger.Address{}, fmt.Errorf("fund: resolve %q: %w", rawHandle, err)
	}
	return destination, nil
}

// PayoutStatus returns the confirmation status of a deposit or payout
// transaction. Requires a blockchain service.
func (f *Fund) PayoutStatus(ctx context.Context, txid string) (*network.TxStatus, error) {
	if f.Chain == nil {
		return nil, ErrOffline
	}
	return f.Chain.GetTxStatus(ctx, txid)
}
