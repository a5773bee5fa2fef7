// Package daemon is the RPC gateway to a bitcoind-compatible coin daemon.
package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"coin-tip-ledger/config"
	"coin-tip-ledger/internal/adapter/metrics"
	"coin-tip-ledger/internal/core/ports"
	"coin-tip-ledger/pkg/apperror"
	"coin-tip-ledger/pkg/logger"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/rpcclient"
	"github.com/rs/zerolog"
)

const lockPollInterval = 50 * time.Millisecond

// RPCClient is what the gateway needs from a daemon connection.
// Call sends a btcjson command exactly once; sendtoaddress, getnewaddress and
// validateaddress go through it. Addresses travel as plain strings, so altcoin
// addresses are never decoded with bitcoin net params.
type RPCClient interface {
	GetReceivedByAccountMinConf(account string, minConfirms int) (btcutil.Amount, error)
	SetTxFee(fee btcutil.Amount) error
	WalletPassphrase(passphrase string, timeoutSecs int64) error
	WalletLock() error
	GetBlockCount() (int64, error)
	Call(ctx context.Context, cmd any) (json.RawMessage, error)
	Shutdown()
}

// Dialer builds an RPC client from a connection descriptor.
type Dialer func(cfg *rpcclient.ConnConfig) (RPCClient, error)

// DialRPC creates a JSON-RPC client in HTTP POST mode. No request is sent.
func DialRPC(cfg *rpcclient.ConnConfig) (RPCClient, error) {
	client, err := rpcclient.New(cfg, nil)
	if err != nil {
		return nil, err
	}
	return &rpcClient{Client: client, once: newPostOnce(cfg)}, nil
}

var _ RPCClient = (*rpcClient)(nil)

// Gateway owns the connection to one coin daemon.
type Gateway struct {
	cfg     config.CoinConfig
	dial    Dialer
	client  RPCClient
	locker  ports.WalletLocker // optional, spans processes
	lockTTL time.Duration
	bracket sync.Mutex // unlock/operate/lock critical section
	metrics *metrics.Metrics
	log     zerolog.Logger
}

// NewGateway creates a gateway. Call Connect before use.
func NewGateway(cfg config.CoinConfig, dial Dialer, locker ports.WalletLocker, lockTTL time.Duration, m *metrics.Metrics, log zerolog.Logger) *Gateway {
	if dial == nil {
		dial = DialRPC
	}
	return &Gateway{
		cfg:     cfg,
		dial:    dial,
		locker:  locker,
		lockTTL: lockTTL,
		metrics: m,
		log:     logger.ForCoin(log, "daemon", cfg.Unit),
	}
}

// Connect creates the client and sets the daemon's transaction fee.
// The fee call is the first round trip, so its failure is a connection error.
func (g *Gateway) Connect(ctx context.Context) error {
	g.log.Debug().Str("host", g.cfg.RPC.Host).Msg("connecting to coin daemon")

	client, err := g.dial(&rpcclient.ConnConfig{
		Host:         g.cfg.RPC.Host,
		User:         g.cfg.RPC.User,
		Pass:         g.cfg.RPC.Pass,
		DisableTLS:   g.cfg.RPC.DisableTLS,
		HTTPPostMode: true,
	})
	if err != nil {
		return apperror.ErrConnection(g.cfg.Name, err)
	}

	fee, err := btcutil.NewAmount(g.cfg.TxFee)
	if err != nil {
		client.Shutdown()
		return apperror.ErrConnection(g.cfg.Name, fmt.Errorf("invalid txfee %v: %w", g.cfg.TxFee, err))
	}
	start := time.Now()
	err = client.SetTxFee(fee)
	g.metrics.ObserveRPC(g.cfg.Unit, "settxfee", start, err)
	if err != nil {
		client.Shutdown()
		return apperror.ErrConnection(g.cfg.Name, err)
	}

	g.client = client
	g.log.Info().Str("txfee", fee.String()).Msg("connected to coin daemon")
	g.settle(ctx, g.cfg.SettleDelay)
	return nil
}

// Close shuts the client down.
func (g *Gateway) Close() {
	if g.client != nil {
		g.client.Shutdown()
	}
}

// Coin returns the unit symbol this gateway serves.
func (g *Gateway) Coin() string {
	return g.cfg.Unit
}

// GetReceivedByAccount returns what the daemon has seen arrive for account.
func (g *Gateway) GetReceivedByAccount(ctx context.Context, account string, minconf int) (btcutil.Amount, error) {
	var received btcutil.Amount
	err := g.call("getreceivedbyaccount", func() error {
		var err error
		received, err = g.client.GetReceivedByAccountMinConf(account, minconf)
		return err
	})
	if err != nil {
		g.log.Error().Err(err).Str("account", account).Int("minconf", minconf).Msg("getreceivedbyaccount failed")
		return 0, err
	}
	g.settle(ctx, g.cfg.SettleDelay)
	return received, nil
}

// SendToAddress broadcasts amount to address inside the wallet bracket.
// The request is posted once and never resent. If the payment went out but
// relocking failed, both the txid and the error are returned. A failure whose
// outcome cannot be known is DAEMON_004.
func (g *Gateway) SendToAddress(ctx context.Context, address string, amount btcutil.Amount) (string, error) {
	var txid string
	err := g.withWallet(ctx, g.cfg.SendUnlockTimeout, func() error {
		return g.call("sendtoaddress", func() error {
			// a caller hanging up must not cut a payment off mid flight
			callCtx, cancel := g.rpcContext(context.WithoutCancel(ctx))
			defer cancel()
			raw, err := g.client.Call(callCtx, btcjson.NewSendToAddressCmd(address, amount.ToBTC(), nil, nil))
			if err != nil {
				if rejected(err) {
					return err
				}
				return apperror.ErrBroadcastUnknown(err)
			}
			txid, err = decodeTxID(raw)
			return err
		})
	})
	g.settle(ctx, g.cfg.SettleDelay)
	return txid, err
}

// ValidateAddress asks the daemon whether address is valid. A response
// without isvalid counts as invalid.
func (g *Gateway) ValidateAddress(ctx context.Context, address string) (bool, error) {
	var result btcjson.ValidateAddressWalletResult
	err := g.call("validateaddress", func() error {
		callCtx, cancel := g.rpcContext(ctx)
		defer cancel()
		raw, err := g.client.Call(callCtx, btcjson.NewValidateAddressCmd(address))
		if err != nil {
			return err
		}
		if err := json.Unmarshal(raw, &result); err != nil {
			return apperror.ErrDaemon("validateaddress", fmt.Errorf("decode result: %w", err))
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	g.settle(ctx, g.cfg.SettleDelay)
	return result.IsValid, nil
}

// GetNewAddress generates a deposit address for account inside the wallet
// bracket (unlock refills the keypool). An empty address is a daemon error.
// One attempt is one POST; retrying is the caller's policy.
func (g *Gateway) GetNewAddress(ctx context.Context, account string) (string, error) {
	var address string
	err := g.withWallet(ctx, g.cfg.AddressUnlockTimeout, func() error {
		return g.call("getnewaddress", func() error {
			callCtx, cancel := g.rpcContext(ctx)
			defer cancel()
			raw, err := g.client.Call(callCtx, btcjson.NewGetNewAddressCmd(&account, nil))
			if err != nil {
				return err
			}
			if err := json.Unmarshal(raw, &address); err != nil {
				return apperror.ErrDaemon("getnewaddress", fmt.Errorf("decode result: %w", err))
			}
			return nil
		})
	})
	if err != nil {
		return "", err
	}
	if address == "" {
		return "", apperror.ErrDaemon("getnewaddress", fmt.Errorf("empty address for %s", account))
	}
	// one fifth of the settle delay, 100ms at the default
	g.settle(ctx, g.cfg.SettleDelay/5)
	return address, nil
}

// Ping checks the daemon answers.
func (g *Gateway) Ping(ctx context.Context) error {
	if g.client == nil {
		return apperror.ErrConnection(g.cfg.Name, fmt.Errorf("not connected"))
	}
	return g.call("getblockcount", func() error {
		_, err := g.client.GetBlockCount()
		return err
	})
}

// Name returns the dependency name.
func (g *Gateway) Name() string {
	return "daemon:" + g.cfg.Unit
}

func (g *Gateway) call(method string, fn func() error) error {
	start := time.Now()
	err := classify(method, fn())
	g.metrics.ObserveRPC(g.cfg.Unit, method, start, err)
	return err
}

// withWallet runs op between walletpassphrase and walletlock when a
// passphrase is configured. The wallet is relocked even if op fails.
func (g *Gateway) withWallet(ctx context.Context, unlockFor time.Duration, op func() error) error {
	if !g.cfg.HasPassphrase() {
		return op()
	}

	release, err := g.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	secs := max(int64(unlockFor/time.Second), 1)
	g.log.Debug().Int64("timeout_secs", secs).Msg("unlocking wallet")
	if err := g.call("walletpassphrase", func() error {
		return g.client.WalletPassphrase(g.cfg.WalletPassphrase, secs)
	}); err != nil {
		return err
	}

	opErr := op()

	g.log.Debug().Msg("locking wallet")
	lockErr := g.call("walletlock", g.client.WalletLock)
	if opErr != nil {
		if lockErr != nil {
			g.log.Error().Err(lockErr).Msg("walletlock failed after failed call")
		}
		return opErr
	}
	return lockErr
}

// acquire enters the bracket: the in-process mutex, then the shared lock.
func (g *Gateway) acquire(ctx context.Context) (func(), error) {
	g.bracket.Lock()
	if g.locker == nil {
		return g.bracket.Unlock, nil
	}

	name := "wallet:" + g.cfg.Unit
	token, err := g.waitLock(ctx, name)
	if err != nil {
		g.bracket.Unlock()
		return nil, err
	}
	return func() {
		if err := g.locker.Release(context.WithoutCancel(ctx), name, token); err != nil {
			g.log.Warn().Err(err).Msg("releasing wallet lock")
		}
		g.bracket.Unlock()
	}, nil
}

// waitLock polls until the shared lock is free. The holder's lease expires
// within lockTTL, so waiting longer than that means something is wrong.
func (g *Gateway) waitLock(ctx context.Context, name string) (string, error) {
	deadline := time.NewTimer(g.lockTTL)
	defer deadline.Stop()
	ticker := time.NewTicker(lockPollInterval)
	defer ticker.Stop()

	for {
		token, ok, err := g.locker.Acquire(ctx, name, g.lockTTL)
		if err != nil {
			return "", apperror.ErrLockTimeout(err)
		}
		if ok {
			return token, nil
		}
		select {
		case <-ctx.Done():
			return "", apperror.ErrLockTimeout(ctx.Err())
		case <-deadline.C:
			return "", apperror.ErrLockTimeout(fmt.Errorf("%s still held after %s", name, g.lockTTL))
		case <-ticker.C:
		}
	}
}

// rpcContext bounds one single-shot call by rpc.timeout.
func (g *Gateway) rpcContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.cfg.RPC.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, g.cfg.RPC.Timeout)
}

// settle pauses after a call so the daemon is not flooded with queued requests.
func (g *Gateway) settle(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func decodeTxID(raw json.RawMessage) (string, error) {
	var txid string
	if err := json.Unmarshal(raw, &txid); err != nil {
		return "", apperror.ErrBroadcastUnknown(fmt.Errorf("decode result: %w", err))
	}
	if _, err := chainhash.NewHashFromStr(txid); err != nil || len(txid) != 2*chainhash.HashSize {
		return "", apperror.ErrBroadcastUnknown(fmt.Errorf("malformed txid %q", txid))
	}
	return txid, nil
}
