package deposit

import (
	"bytes"
	"fmt"
	"time"

	"github.com/bsv-blockchain/go-sdk/script"
	"github.com/bsv-blockchain/go-sdk/transaction"
)

// Receipt identifies the verified deposit output inside a transaction.
// Amount is the actual output value, which may exceed the invoice amount
// when the depositor overpays; the fund credits the actual value.
type Receipt struct {
	TxID   string `json:"txid"`
	Vout   uint32 `json:"vout"`
	Amount uint64 `json:"amount"`
}

// VerifyDeposit checks that a submitted transaction contains an output paying
// at least the invoice amount to the invoice's deposit address.
//
// WARNING: This function does NOT verify input signatures. Callers MUST
// independently confirm the transaction is accepted by the network (mempool
// or confirmed) before crediting the deposit.
//
// WARNING: This function does NOT bind the deposit to a specific InvoiceID.
// Callers MUST track used TxIDs to prevent the same transaction being
// credited twice.
func VerifyDeposit(rawTx []byte, invoice *Invoice) (*Receipt, error) {
	if invoice == nil {
		return nil, fmt.Errorf("%w: nil invoice", ErrInvalidParams)
	}

	// Check invoice expiry
	if time.Now().Unix() > invoice.Expiry {
		return nil, ErrInvoiceExpired
	}

	// Deserialize the transaction
	if len(rawTx) == 0 {
		return nil, fmt.Errorf("%w: empty raw transaction", ErrInvalidTx)
	}

	tx, err := transaction.NewTransactionFromBytes(rawTx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTx, err)
	}

	// Parse the expected deposit address to get its script
	expectedAddr, err := script.NewAddressFromString(invoice.DepositAddr)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid deposit address: %w", ErrInvalidParams, err)
	}

	expectedPKH := []byte(expectedAddr.PublicKeyHash)
	if len(expectedPKH) == 0 {
		return nil, fmt.Errorf("%w: empty public key hash from address", ErrInvalidParams)
	}

	// Search for a matching output
	for vout, output := range tx.Outputs {
		if output.LockingScript == nil {
			continue
		}

		// Check if the output is a P2PKH to the deposit address
		if !output.LockingScript.IsP2PKH() {
			continue
		}

		outputPKH, err := output.LockingScript.PublicKeyHash()
		if err != nil {
			continue
		}

		if !bytes.Equal(outputPKH, expectedPKH) {
			continue
		}

		// Check amount
		if output.Satoshis < invoice.Amount {
			return nil, fmt.Errorf("%w: output has %d satoshis, need %d",
				ErrInsufficientDeposit, output.Satoshis, invoice.Amount)
		}

		return &Receipt{
			TxID:   tx.TxID().String(),
			Vout:   uint32(vout),
			Amount: output.Satoshis,
		}, nil
	}

	return nil, ErrNoMatchingOutput
}
