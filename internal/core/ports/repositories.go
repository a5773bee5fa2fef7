package ports

import (
	"context"

	"coin-tip-ledger/internal/core/domain"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// LedgerRepository defines persistence operations for per-(user, coin) ledger rows.
// Methods accepting pgx.Tx are used inside transaction blocks for pessimistic locking.
// A missing row is reported as a nil row with a nil error.
type LedgerRepository interface {
	Get(ctx context.Context, username, coin string) (*domain.LedgerRow, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, username, coin string) (*domain.LedgerRow, error)
	// ApplyDelta adds delta to counter and recomputes balance in one statement.
	ApplyDelta(ctx context.Context, tx pgx.Tx, username, coin string, counter domain.Counter, delta btcutil.Amount) (*domain.LedgerRow, error)
	SetAddrReceived(ctx context.Context, tx pgx.Tx, username, coin string, received btcutil.Amount) (*domain.LedgerRow, error)
	// Provision creates the row with zero counters if missing and records address on it.
	Provision(ctx context.Context, tx pgx.Tx, username, coin, address string) (*domain.LedgerRow, error)
}

// WithdrawalRepository defines persistence for the withdrawal journal.
type WithdrawalRepository interface {
	Create(ctx context.Context, tx pgx.Tx, w *domain.Withdrawal) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Withdrawal, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Withdrawal, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*domain.Withdrawal, error)
	SetBroadcast(ctx context.Context, tx pgx.Tx, id uuid.UUID, txid string) error
	SetStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.WithdrawalStatus, lastError *string) error
	// SumOutstanding totals amount+fee of PENDING and BROADCAST entries for a sender.
	SumOutstanding(ctx context.Context, tx pgx.Tx, username, coin string) (btcutil.Amount, error)
	ListUnreconciled(ctx context.Context, coin string) ([]domain.Withdrawal, error)
}

// AuditRepository persists audit log entries.
type AuditRepository interface {
	Create(ctx context.Context, log *domain.AuditLog) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
