package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"coin-tip-ledger/config"
	"coin-tip-ledger/internal/adapter/metrics"
	"coin-tip-ledger/internal/core/domain"
	"coin-tip-ledger/internal/core/ports"
	"coin-tip-ledger/internal/core/validate"
	"coin-tip-ledger/pkg/apperror"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

const (
	pgUniqueViolation  = "23505"
	pgLockNotAvailable = "55P03" // lock_timeout expired
)

// LedgerOptions holds the per-coin accounting policy of a LedgerServiceImpl.
type LedgerOptions struct {
	Coin            string
	TxFee           btcutil.Amount // added to addr_sent on every withdrawal
	BalanceMinconf  int
	WithdrawMinconf int
	AllowOverdraft  bool
	IdempotencyTTL  time.Duration
	AddressRetry    RetryPolicy
}

// NewLedgerOptions derives the options for coin from configuration.
func NewLedgerOptions(coin config.CoinConfig, ledger config.LedgerConfig) (LedgerOptions, error) {
	fee, err := btcutil.NewAmount(coin.TxFee)
	if err != nil {
		return LedgerOptions{}, fmt.Errorf("coin %s: txfee: %w", coin.Unit, err)
	}
	return LedgerOptions{
		Coin:            coin.Unit,
		TxFee:           fee,
		BalanceMinconf:  coin.Minconf.Balance,
		WithdrawMinconf: coin.Minconf.Withdraw,
		AllowOverdraft:  ledger.AllowOverdraft,
		IdempotencyTTL:  ledger.IdempotencyTTL,
		AddressRetry: RetryPolicy{
			Attempts: coin.AddressRetry.Attempts,
			Delay:    coin.AddressRetry.Delay,
		},
	}, nil
}

// LedgerServiceImpl implements ports.LedgerService for one coin.
type LedgerServiceImpl struct {
	opts           LedgerOptions
	daemon         ports.CoinDaemon
	ledgerRepo     ports.LedgerRepository
	withdrawalRepo ports.WithdrawalRepository
	idempCache     ports.IdempotencyCache
	events         ports.EventPublisher
	transactor     ports.DBTransactor
	metrics        *metrics.Metrics
	log            zerolog.Logger
}

// NewLedgerService creates a new LedgerServiceImpl. m may be nil.
func NewLedgerService(
	opts LedgerOptions,
	daemon ports.CoinDaemon,
	ledgerRepo ports.LedgerRepository,
	withdrawalRepo ports.WithdrawalRepository,
	idempCache ports.IdempotencyCache,
	events ports.EventPublisher,
	transactor ports.DBTransactor,
	m *metrics.Metrics,
	log zerolog.Logger,
) *LedgerServiceImpl {
	return &LedgerServiceImpl{
		opts:           opts,
		daemon:         daemon,
		ledgerRepo:     ledgerRepo,
		withdrawalRepo: withdrawalRepo,
		idempCache:     idempCache,
		events:         events,
		transactor:     transactor,
		metrics:        m,
		log:            log.With().Str("component", "ledger").Str("coin", opts.Coin).Logger(),
	}
}

func (s *LedgerServiceImpl) Coin() string { return s.opts.Coin }

func (s *LedgerServiceImpl) BalanceMinconf() int { return s.opts.BalanceMinconf }

// GetBalance refreshes addr_received from the daemon and returns the
// recomputed balance. A user without a ledger row gets zero and no row is created.
func (s *LedgerServiceImpl) GetBalance(ctx context.Context, user string, minconf int) (res *ports.BalanceResult, err error) {
	defer func() { s.metrics.LedgerOp(s.opts.Coin, "get_balance", err) }()

	if user, err = validate.User(user); err != nil {
		return nil, err
	}
	if minconf, err = validate.Minconf(minconf); err != nil {
		return nil, err
	}

	received, err := s.daemon.GetReceivedByAccount(ctx, user, minconf)
	if err != nil {
		return nil, err
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	row, err := s.ledgerRepo.SetAddrReceived(ctx, dbTx, user, s.opts.Coin, received)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("refresh addr_received: %w", err))
	}
	if row == nil {
		s.log.Debug().Str("user", user).Msg("balance requested for unprovisioned user")
		return &ports.BalanceResult{Username: user, Coin: s.opts.Coin}, nil
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Debug().
		Str("user", user).
		Int64("addr_received", int64(row.AddrReceived)).
		Int64("balance", int64(row.Balance)).
		Msg("balance refreshed")

	return &ports.BalanceResult{
		Username:    user,
		Coin:        s.opts.Coin,
		Balance:     row.Balance,
		Provisioned: true,
	}, nil
}

// GetReceived returns the daemon's received total for user without touching the ledger.
func (s *LedgerServiceImpl) GetReceived(ctx context.Context, user string, minconf int) (btcutil.Amount, error) {
	user, err := validate.User(user)
	if err != nil {
		return 0, err
	}
	if minconf, err = validate.Minconf(minconf); err != nil {
		return 0, err
	}
	return s.daemon.GetReceivedByAccount(ctx, user, minconf)
}

// SendToUser moves amount from one user to another inside a single
// transaction. Both rows are locked in lexical order.
func (s *LedgerServiceImpl) SendToUser(ctx context.Context, req ports.TransferRequest) (res *ports.TransferResult, err error) {
	defer func() { s.metrics.LedgerOp(s.opts.Coin, "send_to_user", err) }()

	from, err := validate.User(req.From)
	if err != nil {
		return nil, err
	}
	to, err := validate.User(req.To)
	if err != nil {
		return nil, err
	}
	amount, err := validate.Amount(req.Amount)
	if err != nil {
		return nil, err
	}
	if _, err = validate.Minconf(req.Minconf); err != nil {
		return nil, err
	}
	if from == to {
		return nil, apperror.InvalidInput("cannot tip yourself")
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	rows := make(map[string]*domain.LedgerRow, 2)
	for _, user := range lockOrder(from, to) {
		row, err := s.ledgerRepo.GetForUpdate(ctx, dbTx, user, s.opts.Coin)
		if err != nil {
			return nil, lockError(fmt.Errorf("lock %s: %w", user, err))
		}
		if row == nil {
			return nil, apperror.ErrRowNotFound(user, s.opts.Coin)
		}
		rows[user] = row
	}

	if !s.opts.AllowOverdraft {
		if err := s.checkFunds(ctx, dbTx, rows[from], amount); err != nil {
			return nil, err
		}
	}

	sender, err := s.ledgerRepo.ApplyDelta(ctx, dbTx, from, s.opts.Coin, domain.CounterTipsSent, amount)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("debit sender: %w", err))
	}
	recipient, err := s.ledgerRepo.ApplyDelta(ctx, dbTx, to, s.opts.Coin, domain.CounterTipsReceived, amount)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("credit recipient: %w", err))
	}
	if sender == nil || recipient == nil {
		return nil, apperror.InternalError(fmt.Errorf("locked row vanished during tip %s -> %s", from, to))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("from", from).
		Str("to", to).
		Int64("amount", int64(amount)).
		Msg("tip sent")

	evt := domain.NewLedgerEvent(domain.EventTipSent, s.opts.Coin)
	evt.From, evt.To, evt.Amount = from, to, amount
	s.publish(ctx, evt)

	return &ports.TransferResult{
		Coin:        s.opts.Coin,
		From:        from,
		To:          to,
		Amount:      amount,
		FromBalance: sender.Balance,
		ToBalance:   recipient.Balance,
	}, nil
}

// SendToAddr withdraws amount to an on-chain address through the withdrawal
// journal: reserve, broadcast, record the txid, then debit addr_sent by
// amount plus the coin fee.
func (s *LedgerServiceImpl) SendToAddr(ctx context.Context, req ports.WithdrawalRequest) (res *ports.WithdrawalResult, err error) {
	defer func() { s.metrics.LedgerOp(s.opts.Coin, "send_to_addr", err) }()

	from, err := validate.User(req.From)
	if err != nil {
		return nil, err
	}
	address, err := validate.Addr(req.Address)
	if err != nil {
		return nil, err
	}
	amount, err := validate.Amount(req.Amount)
	if err != nil {
		return nil, err
	}

	var idempKey string
	if req.IdempotencyKey != "" {
		idempKey = domain.BuildWithdrawalIdempotencyKey(s.opts.Coin, from, req.IdempotencyKey)
		if res, err := s.previousWithdrawal(ctx, idempKey); res != nil || err != nil {
			return res, err
		}
	}

	received, err := s.daemon.GetReceivedByAccount(ctx, from, s.opts.WithdrawMinconf)
	if err != nil {
		return nil, err
	}

	w, err := s.reserve(ctx, from, address, amount, received, idempKey)
	if err != nil {
		if isUniqueViolation(err) && idempKey != "" {
			if res, err := s.previousWithdrawal(ctx, idempKey); res != nil || err != nil {
				return res, err
			}
		}
		return nil, err
	}

	txid, sendErr := s.daemon.SendToAddress(ctx, address, amount)
	if txid == "" {
		if sendErr == nil {
			sendErr = apperror.ErrDaemon("sendtoaddress", errors.New("empty txid"))
		}
		if apperror.HasCode(sendErr, apperror.CodeBroadcastUnknown) {
			s.log.Error().Err(sendErr).
				Str("withdrawal_id", w.ID.String()).
				Msg("withdrawal outcome unknown, left pending")
			return nil, sendErr
		}
		s.fail(context.WithoutCancel(ctx), w.ID, sendErr)
		return nil, sendErr
	}
	if sendErr != nil {
		s.log.Warn().Err(sendErr).Str("txid", txid).Msg("withdrawal broadcast but wallet relock failed")
	}

	// The payment is on chain; the rest must not be abandoned with the request.
	ctx = context.WithoutCancel(ctx)

	if err := s.recordBroadcast(ctx, w.ID, txid); err != nil {
		return nil, s.hazard(ctx, w, txid, err)
	}
	w.TxID = &txid
	w.Status = domain.WithdrawalStatusBroadcast

	row, err := s.debit(ctx, w)
	if err != nil {
		return nil, s.hazard(ctx, w, txid, err)
	}

	res = &ports.WithdrawalResult{
		WithdrawalID: w.ID,
		TxID:         txid,
		Amount:       w.Amount,
		Fee:          w.Fee,
		Balance:      row.Balance,
	}

	s.log.Info().
		Str("withdrawal_id", w.ID.String()).
		Str("from", from).
		Str("txid", txid).
		Int64("amount", int64(w.Amount)).
		Int64("fee", int64(w.Fee)).
		Msg("withdrawal debited")

	if idempKey != "" {
		if err := s.idempCache.SetWithdrawal(ctx, idempKey, res, s.opts.IdempotencyTTL); err != nil {
			s.log.Warn().Err(err).Str("key", idempKey).Msg("failed to cache idempotency in redis")
		}
	}

	evt := domain.NewLedgerEvent(domain.EventWithdrawalDebited, s.opts.Coin)
	evt.From, evt.Address, evt.Amount, evt.Fee, evt.TxID = from, address, w.Amount, w.Fee, txid
	evt.WithdrawalID = &w.ID
	s.publish(ctx, evt)

	return res, nil
}

// ValidateAddr asks the daemon whether addr is a valid address for this coin.
func (s *LedgerServiceImpl) ValidateAddr(ctx context.Context, addr string) (bool, error) {
	addr, err := validate.Addr(addr)
	if err != nil {
		return false, err
	}
	return s.daemon.ValidateAddress(ctx, addr)
}

// GetNewAddr generates a deposit address for user, retrying transient daemon
// failures, and records it on the user's ledger row.
func (s *LedgerServiceImpl) GetNewAddr(ctx context.Context, user string) (addr string, err error) {
	defer func() { s.metrics.LedgerOp(s.opts.Coin, "get_new_addr", err) }()

	if user, err = validate.User(user); err != nil {
		return "", err
	}

	policy := s.opts.AddressRetry
	policy.OnRetry = func(attempt int, err error) {
		s.metrics.AddressRetry(s.opts.Coin)
		s.log.Warn().Err(err).
			Str("user", user).
			Int("attempt", attempt).
			Dur("delay", policy.Delay).
			Msg("getnewaddress failed, retrying")
	}

	addr, err = retry(ctx, policy, "getnewaddress", func() (string, error) {
		return s.daemon.GetNewAddress(ctx, user)
	})
	if err != nil {
		return "", err
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return "", apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if _, err := s.ledgerRepo.Provision(ctx, dbTx, user, s.opts.Coin, addr); err != nil {
		return "", apperror.InternalError(fmt.Errorf("provision %s: %w", user, err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return "", apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().Str("user", user).Str("address", addr).Msg("deposit address created")

	evt := domain.NewLedgerEvent(domain.EventAddressCreated, s.opts.Coin)
	evt.To, evt.Address = user, addr
	s.publish(ctx, evt)

	return addr, nil
}

// previousWithdrawal resolves a repeated idempotency key: Redis first, then
// the journal. It returns nil, nil when the key is new.
func (s *LedgerServiceImpl) previousWithdrawal(ctx context.Context, key string) (*ports.WithdrawalResult, error) {
	cached, err := s.idempCache.GetWithdrawal(ctx, key)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("redis idempotency check failed, falling through to DB")
	}
	if cached != nil {
		return cached, nil
	}

	w, err := s.withdrawalRepo.GetByIdempotencyKey(ctx, key)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("db idempotency check: %w", err))
	}
	if w == nil {
		return nil, nil
	}
	if w.Status != domain.WithdrawalStatusDebited || w.TxID == nil {
		return nil, apperror.ErrWithdrawalState(w.ID.String(), string(w.Status))
	}

	row, err := s.ledgerRepo.Get(ctx, w.Username, w.Coin)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load ledger row: %w", err))
	}
	res := &ports.WithdrawalResult{
		WithdrawalID: w.ID,
		TxID:         *w.TxID,
		Amount:       w.Amount,
		Fee:          w.Fee,
	}
	if row != nil {
		res.Balance = row.Balance
	}
	return res, nil
}

// reserve refreshes the sender's addr_received, checks funds and writes a
// PENDING journal entry, all in one transaction.
func (s *LedgerServiceImpl) reserve(ctx context.Context, from, address string, amount, received btcutil.Amount, idempKey string) (*domain.Withdrawal, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	// The UPDATE also takes the row lock for the rest of the transaction.
	row, err := s.ledgerRepo.SetAddrReceived(ctx, dbTx, from, s.opts.Coin, received)
	if err != nil {
		return nil, lockError(fmt.Errorf("lock sender: %w", err))
	}
	if row == nil {
		return nil, apperror.ErrRowNotFound(from, s.opts.Coin)
	}

	if !s.opts.AllowOverdraft {
		if err := s.checkFunds(ctx, dbTx, row, amount+s.opts.TxFee); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	w := &domain.Withdrawal{
		ID:        uuid.New(),
		Username:  from,
		Coin:      s.opts.Coin,
		Address:   address,
		Amount:    amount,
		Fee:       s.opts.TxFee,
		Status:    domain.WithdrawalStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if idempKey != "" {
		w.IdempotencyKey = &idempKey
	}
	if err := s.withdrawalRepo.Create(ctx, dbTx, w); err != nil {
		if isUniqueViolation(err) {
			return nil, err
		}
		return nil, apperror.InternalError(fmt.Errorf("create withdrawal: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Debug().Str("withdrawal_id", w.ID.String()).Str("from", from).Msg("withdrawal reserved")
	return w, nil
}

func (s *LedgerServiceImpl) checkFunds(ctx context.Context, dbTx pgx.Tx, row *domain.LedgerRow, need btcutil.Amount) error {
	outstanding, err := s.withdrawalRepo.SumOutstanding(ctx, dbTx, row.Username, row.Coin)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("sum outstanding withdrawals: %w", err))
	}
	if row.Available(outstanding) < need {
		s.log.Debug().
			Str("user", row.Username).
			Int64("balance", int64(row.Balance)).
			Int64("outstanding", int64(outstanding)).
			Int64("need", int64(need)).
			Msg("insufficient funds")
		return apperror.ErrInsufficientFunds()
	}
	return nil
}

func (s *LedgerServiceImpl) recordBroadcast(ctx context.Context, id uuid.UUID, txid string) error {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.withdrawalRepo.SetBroadcast(ctx, dbTx, id, txid); err != nil {
		return err
	}
	return dbTx.Commit(ctx)
}

func (s *LedgerServiceImpl) debit(ctx context.Context, w *domain.Withdrawal) (*domain.LedgerRow, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	row, err := debitWithdrawal(ctx, dbTx, s.ledgerRepo, s.withdrawalRepo, w)
	if err != nil {
		return nil, err
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return row, nil
}

// fail closes a PENDING entry whose send the daemon rejected.
func (s *LedgerServiceImpl) fail(ctx context.Context, id uuid.UUID, cause error) {
	msg := cause.Error()
	err := func() error {
		dbTx, err := s.transactor.Begin(ctx)
		if err != nil {
			return err
		}
		defer dbTx.Rollback(ctx) //nolint:errcheck
		if err := s.withdrawalRepo.SetStatus(ctx, dbTx, id, domain.WithdrawalStatusFailed, &msg); err != nil {
			return err
		}
		return dbTx.Commit(ctx)
	}()
	if err != nil {
		s.log.Error().Err(err).Str("withdrawal_id", id.String()).Msg("failed to mark withdrawal FAILED")
		return
	}
	s.log.Warn().Err(cause).Str("withdrawal_id", id.String()).Msg("withdrawal rejected by daemon")
}

func (s *LedgerServiceImpl) hazard(ctx context.Context, w *domain.Withdrawal, txid string, cause error) error {
	s.metrics.Hazard(s.opts.Coin)
	s.log.Error().Err(cause).
		Str("withdrawal_id", w.ID.String()).
		Str("user", w.Username).
		Str("txid", txid).
		Int64("amount", int64(w.Amount)).
		Msg("RECONCILIATION HAZARD: withdrawal broadcast but ledger not updated")

	evt := domain.NewLedgerEvent(domain.EventReconciliationHazard, s.opts.Coin)
	evt.From, evt.Address, evt.Amount, evt.Fee, evt.TxID = w.Username, w.Address, w.Amount, w.Fee, txid
	evt.WithdrawalID = &w.ID
	s.publish(ctx, evt)

	return apperror.ErrReconciliationHazard(w.ID.String(), txid, cause)
}

func (s *LedgerServiceImpl) publish(ctx context.Context, evt *domain.LedgerEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, evt); err != nil {
		s.log.Warn().Err(err).Str("event_type", string(evt.Type)).Msg("ledger event not published")
	}
}

// lockOrder returns the users in the order their rows must be locked.
func lockOrder(a, b string) []string {
	if b < a {
		return []string{b, a}
	}
	return []string{a, b}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// lockError reports a row lock that could not be taken within lock_timeout
// as SYS_002 so callers may retry; anything else is internal.
func lockError(err error) *apperror.AppError {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgLockNotAvailable {
		return apperror.ErrLockTimeout(err)
	}
	return apperror.InternalError(err)
}
