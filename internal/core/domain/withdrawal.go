package domain

import (
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/google/uuid"
)

// WithdrawalStatus is the position of a withdrawal in the journal lifecycle:
// PENDING -> BROADCAST -> DEBITED, or PENDING -> FAILED.
type WithdrawalStatus string

const (
	WithdrawalStatusPending   WithdrawalStatus = "PENDING"   // reserved, not yet confirmed broadcast
	WithdrawalStatusBroadcast WithdrawalStatus = "BROADCAST" // on chain, ledger debit outstanding
	WithdrawalStatusDebited   WithdrawalStatus = "DEBITED"
	WithdrawalStatusFailed    WithdrawalStatus = "FAILED"
)

// Withdrawal is a durable journal entry for an on-chain send.
type Withdrawal struct {
	ID             uuid.UUID        `json:"id"`
	Username       string           `json:"username"`
	Coin           string           `json:"coin"`
	Address        string           `json:"address"`
	Amount         btcutil.Amount   `json:"amount"`
	Fee            btcutil.Amount   `json:"fee"`
	TxID           *string          `json:"txid,omitempty"`
	Status         WithdrawalStatus `json:"status"`
	IdempotencyKey *string          `json:"-"`
	LastError      *string          `json:"last_error,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// Total is what the ledger debits from addr_sent for this withdrawal.
func (w *Withdrawal) Total() btcutil.Amount {
	return w.Amount + w.Fee
}

// IsOutstanding reports whether the withdrawal still reserves funds.
func (w *Withdrawal) IsOutstanding() bool {
	return w.Status == WithdrawalStatusPending || w.Status == WithdrawalStatusBroadcast
}

// IsTerminal returns true if the withdrawal is in a final state.
func (w *Withdrawal) IsTerminal() bool {
	return w.Status == WithdrawalStatusDebited || w.Status == WithdrawalStatusFailed
}

// NeedsReplay reports whether the chain send happened but the debit did not.
func (w *Withdrawal) NeedsReplay() bool {
	return w.Status == WithdrawalStatusBroadcast
}
