package ports

import (
	"context"
	"time"

	"github.com/btcsuite/btcd/btcutil"
)

// CoinDaemon is the RPC surface of one coin daemon used by the ledger.
// Errors are *apperror.AppError carrying DAEMON_001, DAEMON_002 or DAEMON_003.
type CoinDaemon interface {
	GetReceivedByAccount(ctx context.Context, account string, minconf int) (btcutil.Amount, error)
	// SendToAddress broadcasts a payment. A non-empty txid with a non-nil error
	// means the payment went out but the wallet could not be relocked.
	SendToAddress(ctx context.Context, address string, amount btcutil.Amount) (string, error)
	ValidateAddress(ctx context.Context, address string) (bool, error)
	GetNewAddress(ctx context.Context, account string) (string, error)
}

// WalletLocker serializes the wallet unlock/operate/lock bracket across processes.
type WalletLocker interface {
	// Acquire returns a release token, or ok=false if another holder owns the lock.
	Acquire(ctx context.Context, name string, ttl time.Duration) (token string, ok bool, err error)
	Release(ctx context.Context, name, token string) error
}
