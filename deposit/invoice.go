// Package deposit implements deposit intake for the fund.
//
// A depositor asks the fund for an invoice naming the reserve address
// and the amount to send, pays it on-chain, and submits the transaction
// for verification. A verified deposit is credited to the depositor by
// minting the matching number of units.
package deposit

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// Invoice represents a pending deposit request.
type Invoice struct {
	ID          string `json:"id"`
	Amount      uint64 `json:"amount"`       // Minimum deposit in satoshis
	DepositAddr string `json:"deposit_addr"` // Fund reserve address to pay
	Expiry      int64  `json:"expiry"`       // Unix timestamp
}

// NewInvoice creates a new deposit invoice.
// amount is the minimum deposit in satoshis.
// depositAddr is the fund reserve address the deposit must pay.
// ttlSeconds is the invoice time-to-live in seconds.
func NewInvoice(amount uint64, depositAddr string, ttlSeconds int64) *Invoice {
	return &Invoice{
		ID:          generateInvoiceID(),
		Amount:      amount,
		DepositAddr: depositAddr,
		Expiry:      time.Now().Unix() + ttlSeconds,
	}
}

// IsExpired returns true if the invoice has passed its expiry time.
func (inv *Invoice) IsExpired() bool {
	return time.Now().Unix() > inv.Expiry
}

// generateInvoiceID creates a random 16-byte hex-encoded invoice ID.
func generateInvoiceID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		// Fallback to timestamp-based ID
		return fmt.Sprintf("dep-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}
