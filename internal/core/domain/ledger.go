package domain

import (
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcutil"
)

// Counter names one of the four cumulative bookkeeping columns of a ledger row.
type Counter string

const (
	CounterAddrReceived Counter = "addr_received"
	CounterAddrSent     Counter = "addr_sent"
	CounterTipsReceived Counter = "tips_received"
	CounterTipsSent     Counter = "tips_sent"
)

// Valid reports whether c is one of the known counters.
func (c Counter) Valid() bool {
	switch c {
	case CounterAddrReceived, CounterAddrSent, CounterTipsReceived, CounterTipsSent:
		return true
	}
	return false
}

// LedgerRow is the per-(username, coin) accounting record.
// Balance is a cached value and must equal ComputeBalance of the counters at rest.
type LedgerRow struct {
	Username     string         `json:"username"`
	Coin         string         `json:"coin"`
	Address      *string        `json:"address,omitempty"` // last deposit address handed out
	AddrReceived btcutil.Amount `json:"addr_received"`
	AddrSent     btcutil.Amount `json:"addr_sent"`
	TipsReceived btcutil.Amount `json:"tips_received"`
	TipsSent     btcutil.Amount `json:"tips_sent"`
	Balance      btcutil.Amount `json:"balance"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// ComputeBalance is the single balance formula of the ledger.
func ComputeBalance(addrReceived, tipsReceived, addrSent, tipsSent btcutil.Amount) btcutil.Amount {
	return (addrReceived + tipsReceived) - (addrSent + tipsSent)
}

// ExpectedBalance evaluates the balance formula over the row's counters.
func (r *LedgerRow) ExpectedBalance() btcutil.Amount {
	return ComputeBalance(r.AddrReceived, r.TipsReceived, r.AddrSent, r.TipsSent)
}

// Consistent reports whether the cached balance matches the counters.
func (r *LedgerRow) Consistent() bool {
	return r.Balance == r.ExpectedBalance()
}

// Add increments a monotonic counter by delta and recomputes the balance.
func (r *LedgerRow) Add(c Counter, delta btcutil.Amount) error {
	if delta <= 0 {
		return fmt.Errorf("counter %s: delta must be positive, got %d", c, delta)
	}
	switch c {
	case CounterAddrReceived:
		r.AddrReceived += delta
	case CounterAddrSent:
		r.AddrSent += delta
	case CounterTipsReceived:
		r.TipsReceived += delta
	case CounterTipsSent:
		r.TipsSent += delta
	default:
		return fmt.Errorf("unknown counter %q", c)
	}
	r.Balance = r.ExpectedBalance()
	return nil
}

// SetAddrReceived replaces the daemon-observed counter and recomputes the balance.
func (r *LedgerRow) SetAddrReceived(received btcutil.Amount) {
	r.AddrReceived = received
	r.Balance = r.ExpectedBalance()
}

// Available is the spendable balance once outstanding withdrawals are reserved.
func (r *LedgerRow) Available(outstanding btcutil.Amount) btcutil.Amount {
	return r.Balance - outstanding
}
