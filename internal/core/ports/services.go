package ports

import (
	"context"
	"time"

	"coin-tip-ledger/internal/core/domain"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/google/uuid"
)

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(clientID string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	ClientID string
}

// IdempotencyCache is the Redis-layer idempotency check (fast path).
// The withdrawal journal is the durable fallback.
type IdempotencyCache interface {
	GetWithdrawal(ctx context.Context, key string) (*WithdrawalResult, error) // nil on miss
	SetWithdrawal(ctx context.Context, key string, result *WithdrawalResult, ttl time.Duration) error
}

// EventPublisher emits ledger events after commit. Delivery is best effort.
type EventPublisher interface {
	Publish(ctx context.Context, evt *domain.LedgerEvent) error
}

// --- Service Ports (Business Logic) ---

// LedgerService is the transfer orchestrator for one coin.
type LedgerService interface {
	Coin() string
	// BalanceMinconf is the configured confirmation count for balance checks.
	BalanceMinconf() int
	GetBalance(ctx context.Context, user string, minconf int) (*BalanceResult, error)
	GetReceived(ctx context.Context, user string, minconf int) (btcutil.Amount, error)
	SendToUser(ctx context.Context, req TransferRequest) (*TransferResult, error)
	SendToAddr(ctx context.Context, req WithdrawalRequest) (*WithdrawalResult, error)
	ValidateAddr(ctx context.Context, addr string) (bool, error)
	GetNewAddr(ctx context.Context, user string) (string, error)
}

// ReconcileService resolves withdrawals left between broadcast and debit.
type ReconcileService interface {
	ListUnreconciled(ctx context.Context, coin string) ([]domain.Withdrawal, error)
	// Replay debits a withdrawal whose coins left the wallet. txid is
	// required when the entry is still PENDING.
	Replay(ctx context.Context, id uuid.UUID, txid string) (*domain.Withdrawal, error)
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) (*domain.Withdrawal, error)
}

// CoinRegistry resolves the ledger service for a coin unit.
type CoinRegistry interface {
	Ledger(coin string) (LedgerService, error)
	Coins() []string
}

// AuditService records audited actions without blocking the request.
type AuditService interface {
	Log(entry *domain.AuditLog)
}

// BalanceResult is the outcome of a balance check. Provisioned is false when
// the user has no ledger row, in which case Balance is zero.
type BalanceResult struct {
	Username    string
	Coin        string
	Balance     btcutil.Amount
	Provisioned bool
}

// TransferRequest holds input for an internal tip.
type TransferRequest struct {
	From    string
	To      string
	Amount  btcutil.Amount
	Minconf int
}

// TransferResult holds both balances after a committed tip.
type TransferResult struct {
	Coin        string
	From        string
	To          string
	Amount      btcutil.Amount
	FromBalance btcutil.Amount
	ToBalance   btcutil.Amount
}

// WithdrawalRequest holds input for an on-chain withdrawal.
type WithdrawalRequest struct {
	From           string
	Address        string
	Amount         btcutil.Amount
	IdempotencyKey string // optional
}

// WithdrawalResult is returned once a withdrawal is debited.
type WithdrawalResult struct {
	WithdrawalID uuid.UUID      `json:"withdrawal_id"`
	TxID         string         `json:"txid"`
	Amount       btcutil.Amount `json:"amount"`
	Fee          btcutil.Amount `json:"fee"`
	Balance      btcutil.Amount `json:"balance"`
}
