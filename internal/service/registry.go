package service

import (
	"sort"
	"strings"

	"coin-tip-ledger/internal/core/ports"
	"coin-tip-ledger/pkg/apperror"
)

// Registry implements ports.CoinRegistry over a fixed set of coins.
type Registry struct {
	ledgers map[string]ports.LedgerService
}

// NewRegistry indexes ledgers by their coin unit.
func NewRegistry(ledgers ...ports.LedgerService) *Registry {
	r := &Registry{ledgers: make(map[string]ports.LedgerService, len(ledgers))}
	for _, l := range ledgers {
		r.ledgers[strings.ToUpper(l.Coin())] = l
	}
	return r
}

// Ledger returns the ledger for coin, matched case-insensitively.
func (r *Registry) Ledger(coin string) (ports.LedgerService, error) {
	l, ok := r.ledgers[strings.ToUpper(coin)]
	if !ok {
		return nil, apperror.ErrUnknownCoin(coin)
	}
	return l, nil
}

// Coins lists the configured units in sorted order.
func (r *Registry) Coins() []string {
	coins := make([]string, 0, len(r.ledgers))
	for c := range r.ledgers {
		coins = append(coins, c)
	}
	sort.Strings(coins)
	return coins
}
