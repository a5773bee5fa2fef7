package postgres

import (
	"context"
	"errors"
	"fmt"

	"coin-tip-ledger/internal/core/domain"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const withdrawalColumns = `id, username, coin, address, amount, fee, txid, status, idempotency_key, last_error, created_at, updated_at`

// WithdrawalRepo implements ports.WithdrawalRepository.
type WithdrawalRepo struct {
	pool Pool
}

// NewWithdrawalRepo creates a new WithdrawalRepo.
func NewWithdrawalRepo(pool Pool) *WithdrawalRepo {
	return &WithdrawalRepo{pool: pool}
}

// Create inserts a journal entry within a database transaction.
func (r *WithdrawalRepo) Create(ctx context.Context, tx pgx.Tx, w *domain.Withdrawal) error {
	query := `INSERT INTO withdrawals (` + withdrawalColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := tx.Exec(ctx, query,
		w.ID, w.Username, w.Coin, w.Address,
		int64(w.Amount), int64(w.Fee), w.TxID, w.Status,
		w.IdempotencyKey, w.LastError, w.CreatedAt, w.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert withdrawal: %w", err)
	}
	return nil
}

// GetByID fetches a journal entry by UUID.
func (r *WithdrawalRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Withdrawal, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawals WHERE id = $1`

	w, err := scanWithdrawal(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("get withdrawal: %w", err)
	}
	return w, nil
}

// GetByIDForUpdate fetches a journal entry with pessimistic locking.
// This MUST be called within a transaction.
func (r *WithdrawalRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Withdrawal, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawals WHERE id = $1 FOR UPDATE`

	w, err := scanWithdrawal(tx.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("get withdrawal for update: %w", err)
	}
	return w, nil
}

// GetByIdempotencyKey is the DB fallback of the idempotency check.
func (r *WithdrawalRepo) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Withdrawal, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawals WHERE idempotency_key = $1`

	w, err := scanWithdrawal(r.pool.QueryRow(ctx, query, key))
	if err != nil {
		return nil, fmt.Errorf("get withdrawal by idempotency key: %w", err)
	}
	return w, nil
}

// SetBroadcast records the txid of a PENDING entry.
func (r *WithdrawalRepo) SetBroadcast(ctx context.Context, tx pgx.Tx, id uuid.UUID, txid string) error {
	query := `UPDATE withdrawals SET txid = $1, status = $2, updated_at = NOW() WHERE id = $3 AND status = $4`

	tag, err := tx.Exec(ctx, query, txid, domain.WithdrawalStatusBroadcast, id, domain.WithdrawalStatusPending)
	if err != nil {
		return fmt.Errorf("set withdrawal broadcast: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("pending withdrawal not found: %s", id)
	}
	return nil
}

// SetStatus moves an entry to status. A nil lastError keeps the previous one.
func (r *WithdrawalRepo) SetStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.WithdrawalStatus, lastError *string) error {
	query := `UPDATE withdrawals SET status = $1, last_error = COALESCE($2, last_error), updated_at = NOW() WHERE id = $3`

	tag, err := tx.Exec(ctx, query, status, lastError, id)
	if err != nil {
		return fmt.Errorf("update withdrawal status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("withdrawal not found: %s", id)
	}
	return nil
}

// SumOutstanding totals amount+fee of the sender's unresolved withdrawals.
func (r *WithdrawalRepo) SumOutstanding(ctx context.Context, tx pgx.Tx, username, coin string) (btcutil.Amount, error) {
	query := `SELECT COALESCE(SUM(amount + fee), 0) FROM withdrawals
		WHERE username = $1 AND coin = $2 AND status IN ($3, $4)`

	var total int64
	err := tx.QueryRow(ctx, query, username, coin,
		domain.WithdrawalStatusPending, domain.WithdrawalStatusBroadcast,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum outstanding withdrawals: %w", err)
	}
	return btcutil.Amount(total), nil
}

// ListUnreconciled returns PENDING and BROADCAST entries for coin, oldest first.
func (r *WithdrawalRepo) ListUnreconciled(ctx context.Context, coin string) ([]domain.Withdrawal, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawals
		WHERE coin = $1 AND status IN ($2, $3) ORDER BY created_at`

	rows, err := r.pool.Query(ctx, query, coin, domain.WithdrawalStatusPending, domain.WithdrawalStatusBroadcast)
	if err != nil {
		return nil, fmt.Errorf("list unreconciled withdrawals: %w", err)
	}
	defer rows.Close()

	var out []domain.Withdrawal
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan withdrawal row: %w", err)
		}
		out = append(out, *w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate withdrawal rows: %w", err)
	}
	return out, nil
}

func scanWithdrawal(row pgx.Row) (*domain.Withdrawal, error) {
	var w domain.Withdrawal
	var amount, fee int64
	err := row.Scan(
		&w.ID, &w.Username, &w.Coin, &w.Address,
		&amount, &fee, &w.TxID, &w.Status,
		&w.IdempotencyKey, &w.LastError, &w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	w.Amount = btcutil.Amount(amount)
	w.Fee = btcutil.Amount(fee)
	return &w, nil
}
