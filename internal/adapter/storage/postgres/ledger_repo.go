package postgres

import (
	"context"
	"errors"
	"fmt"

	"coin-tip-ledger/internal/core/domain"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/jackc/pgx/v5"
)

const ledgerColumns = `username, coin, address, addr_received, addr_sent, tips_received, tips_sent, balance, updated_at`

// LedgerRepo implements ports.LedgerRepository over the t_addrs table.
// Amounts are passed to pgx as int64: btcutil.Amount is a fmt.Stringer and
// would otherwise be encoded as "0.1 BTC".
type LedgerRepo struct {
	pool Pool
}

// NewLedgerRepo creates a new LedgerRepo.
func NewLedgerRepo(pool Pool) *LedgerRepo {
	return &LedgerRepo{pool: pool}
}

// Get fetches a ledger row without locking. Returns nil, nil when absent.
func (r *LedgerRepo) Get(ctx context.Context, username, coin string) (*domain.LedgerRow, error) {
	query := `SELECT ` + ledgerColumns + ` FROM t_addrs WHERE username = $1 AND coin = $2`

	row, err := scanLedgerRow(r.pool.QueryRow(ctx, query, username, coin))
	if err != nil {
		return nil, fmt.Errorf("get ledger row: %w", err)
	}
	return row, nil
}

// GetForUpdate fetches a ledger row with pessimistic locking.
// This MUST be called within a transaction.
func (r *LedgerRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, username, coin string) (*domain.LedgerRow, error) {
	query := `SELECT ` + ledgerColumns + ` FROM t_addrs WHERE username = $1 AND coin = $2 FOR UPDATE`

	row, err := scanLedgerRow(tx.QueryRow(ctx, query, username, coin))
	if err != nil {
		return nil, fmt.Errorf("get ledger row for update: %w", err)
	}
	return row, nil
}

// ApplyDelta adds delta to counter and recomputes balance in a single
// UPDATE ... RETURNING, so the read-modify-write cannot lose an update.
// Returns nil, nil when the row does not exist.
func (r *LedgerRepo) ApplyDelta(ctx context.Context, tx pgx.Tx, username, coin string, counter domain.Counter, delta btcutil.Amount) (*domain.LedgerRow, error) {
	if !counter.Valid() {
		return nil, fmt.Errorf("apply delta: unknown counter %q", counter)
	}
	if delta <= 0 {
		return nil, fmt.Errorf("apply delta: %s delta must be positive, got %d", counter, delta)
	}

	query := fmt.Sprintf(`UPDATE t_addrs SET %[1]s = %[1]s + $1, balance = %[2]s, updated_at = NOW()
		WHERE username = $2 AND coin = $3 RETURNING `+ledgerColumns, counter, balanceAfter(counter))

	row, err := scanLedgerRow(tx.QueryRow(ctx, query, int64(delta), username, coin))
	if err != nil {
		return nil, fmt.Errorf("apply %s delta: %w", counter, err)
	}
	return row, nil
}

// SetAddrReceived replaces addr_received with the daemon's figure and recomputes balance.
func (r *LedgerRepo) SetAddrReceived(ctx context.Context, tx pgx.Tx, username, coin string, received btcutil.Amount) (*domain.LedgerRow, error) {
	query := `UPDATE t_addrs SET addr_received = $1, balance = ($1 + tips_received) - (addr_sent + tips_sent), updated_at = NOW()
		WHERE username = $2 AND coin = $3 RETURNING ` + ledgerColumns

	row, err := scanLedgerRow(tx.QueryRow(ctx, query, int64(received), username, coin))
	if err != nil {
		return nil, fmt.Errorf("set addr_received: %w", err)
	}
	return row, nil
}

// Provision creates the row with zero counters when missing and records
// address as the user's current deposit address.
func (r *LedgerRepo) Provision(ctx context.Context, tx pgx.Tx, username, coin, address string) (*domain.LedgerRow, error) {
	query := `INSERT INTO t_addrs (username, coin, address, addr_received, addr_sent, tips_received, tips_sent, balance, updated_at)
		VALUES ($1, $2, $3, 0, 0, 0, 0, 0, NOW())
		ON CONFLICT (username, coin) DO UPDATE SET address = EXCLUDED.address, updated_at = NOW()
		RETURNING ` + ledgerColumns

	row, err := scanLedgerRow(tx.QueryRow(ctx, query, username, coin, address))
	if err != nil {
		return nil, fmt.Errorf("provision ledger row: %w", err)
	}
	if row == nil {
		return nil, fmt.Errorf("provision ledger row: no row returned")
	}
	return row, nil
}

// balanceAfter is the balance formula evaluated with counter already
// incremented by $1. SET expressions see the pre-update column values.
func balanceAfter(counter domain.Counter) string {
	term := func(c domain.Counter) string {
		if c == counter {
			return "(" + string(c) + " + $1)"
		}
		return string(c)
	}
	return fmt.Sprintf("(%s + %s) - (%s + %s)",
		term(domain.CounterAddrReceived), term(domain.CounterTipsReceived),
		term(domain.CounterAddrSent), term(domain.CounterTipsSent))
}

func scanLedgerRow(row pgx.Row) (*domain.LedgerRow, error) {
	var l domain.LedgerRow
	var addrReceived, addrSent, tipsReceived, tipsSent, balance int64
	err := row.Scan(
		&l.Username, &l.Coin, &l.Address,
		&addrReceived, &addrSent, &tipsReceived, &tipsSent,
		&balance, &l.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	l.AddrReceived = btcutil.Amount(addrReceived)
	l.AddrSent = btcutil.Amount(addrSent)
	l.TipsReceived = btcutil.Amount(tipsReceived)
	l.TipsSent = btcutil.Amount(tipsSent)
	l.Balance = btcutil.Amount(balance)
	return &l, nil
}
