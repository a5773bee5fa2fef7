package domain

import (
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/google/uuid"
)

// LedgerEventType identifies a published ledger event.
type LedgerEventType string

const (
	EventTipSent              LedgerEventType = "TIP_SENT"
	EventWithdrawalDebited    LedgerEventType = "WITHDRAWAL_DEBITED"
	EventReconciliationHazard LedgerEventType = "RECONCILIATION_HAZARD"
	EventAddressCreated       LedgerEventType = "ADDRESS_CREATED"
)

// LedgerEvent is emitted after a ledger change commits. Amounts are base units.
type LedgerEvent struct {
	ID           uuid.UUID       `json:"id"`
	Type         LedgerEventType `json:"type"`
	Coin         string          `json:"coin"`
	From         string          `json:"from,omitempty"`
	To           string          `json:"to,omitempty"`
	Address      string          `json:"address,omitempty"`
	Amount       btcutil.Amount  `json:"amount,omitempty"`
	Fee          btcutil.Amount  `json:"fee,omitempty"`
	TxID         string          `json:"txid,omitempty"`
	WithdrawalID *uuid.UUID      `json:"withdrawal_id,omitempty"`
	OccurredAt   time.Time       `json:"occurred_at"`
}

// NewLedgerEvent stamps an event with a fresh id and the current time.
func NewLedgerEvent(eventType LedgerEventType, coin string) *LedgerEvent {
	return &LedgerEvent{
		ID:         uuid.New(),
		Type:       eventType,
		Coin:       coin,
		OccurredAt: time.Now().UTC(),
	}
}
