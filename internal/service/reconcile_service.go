package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"coin-tip-ledger/internal/adapter/metrics"
	"coin-tip-ledger/internal/core/domain"
	"coin-tip-ledger/internal/core/ports"
	"coin-tip-ledger/internal/core/validate"
	"coin-tip-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// errRowVanished means the sender's ledger row was deleted after the withdrawal was reserved.
var errRowVanished = errors.New("sender ledger row vanished")

// debitWithdrawal applies the addr_sent debit of w and marks it DEBITED
// inside dbTx. The caller owns commit.
func debitWithdrawal(ctx context.Context, dbTx pgx.Tx, ledgerRepo ports.LedgerRepository, withdrawalRepo ports.WithdrawalRepository, w *domain.Withdrawal) (*domain.LedgerRow, error) {
	row, err := ledgerRepo.ApplyDelta(ctx, dbTx, w.Username, w.Coin, domain.CounterAddrSent, w.Total())
	if err != nil {
		return nil, fmt.Errorf("debit addr_sent: %w", err)
	}
	if row == nil {
		return nil, errRowVanished
	}
	if err := withdrawalRepo.SetStatus(ctx, dbTx, w.ID, domain.WithdrawalStatusDebited, nil); err != nil {
		return nil, fmt.Errorf("mark debited: %w", err)
	}
	w.Status = domain.WithdrawalStatusDebited
	return row, nil
}

// ReconcileServiceImpl implements ports.ReconcileService.
type ReconcileServiceImpl struct {
	ledgerRepo     ports.LedgerRepository
	withdrawalRepo ports.WithdrawalRepository
	transactor     ports.DBTransactor
	events         ports.EventPublisher
	metrics        *metrics.Metrics
	log            zerolog.Logger
}

// NewReconcileService creates a new ReconcileServiceImpl.
func NewReconcileService(
	ledgerRepo ports.LedgerRepository,
	withdrawalRepo ports.WithdrawalRepository,
	transactor ports.DBTransactor,
	events ports.EventPublisher,
	m *metrics.Metrics,
	log zerolog.Logger,
) *ReconcileServiceImpl {
	return &ReconcileServiceImpl{
		ledgerRepo:     ledgerRepo,
		withdrawalRepo: withdrawalRepo,
		transactor:     transactor,
		events:         events,
		metrics:        m,
		log:            log.With().Str("component", "reconcile").Logger(),
	}
}

// ListUnreconciled returns the PENDING and BROADCAST withdrawals of coin, oldest first.
func (s *ReconcileServiceImpl) ListUnreconciled(ctx context.Context, coin string) ([]domain.Withdrawal, error) {
	list, err := s.withdrawalRepo.ListUnreconciled(ctx, coin)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list unreconciled: %w", err))
	}
	return list, nil
}

// Replay applies the outstanding debit of a withdrawal whose coins left the
// wallet. A BROADCAST entry already carries its txid; if txid is given it must
// match. A PENDING entry whose broadcast was never recorded needs the txid the
// operator found on chain; it is recorded and debited in one transaction. The
// entry is locked, so concurrent replays debit at most once.
func (s *ReconcileServiceImpl) Replay(ctx context.Context, id uuid.UUID, txid string) (w *domain.Withdrawal, err error) {
	if txid != "" {
		if txid, err = validate.TxID(txid); err != nil {
			return nil, err
		}
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	w, err = s.lock(ctx, dbTx, id)
	if err != nil {
		return nil, err
	}
	coin := w.Coin
	defer func() { s.metrics.LedgerOp(coin, "replay_withdrawal", err) }()

	switch {
	case w.NeedsReplay():
		if txid != "" && w.TxID != nil && !strings.EqualFold(*w.TxID, txid) {
			return nil, apperror.InvalidInput(fmt.Sprintf("txid %s does not match recorded %s", txid, *w.TxID))
		}
	case w.Status == domain.WithdrawalStatusPending && txid != "":
		if err := s.withdrawalRepo.SetBroadcast(ctx, dbTx, id, txid); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("record broadcast: %w", err))
		}
		w.Status = domain.WithdrawalStatusBroadcast
		w.TxID = &txid
	default:
		return nil, apperror.ErrWithdrawalState(id.String(), string(w.Status))
	}

	row, err := debitWithdrawal(ctx, dbTx, s.ledgerRepo, s.withdrawalRepo, w)
	if err != nil {
		if errors.Is(err, errRowVanished) {
			return nil, apperror.ErrRowNotFound(w.Username, w.Coin)
		}
		return nil, apperror.InternalError(err)
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	if w.TxID != nil {
		txid = *w.TxID
	}
	s.log.Info().
		Str("withdrawal_id", id.String()).
		Str("coin", w.Coin).
		Str("txid", txid).
		Int64("balance", int64(row.Balance)).
		Msg("withdrawal replayed")

	if s.events != nil {
		evt := domain.NewLedgerEvent(domain.EventWithdrawalDebited, w.Coin)
		evt.From, evt.Address, evt.Amount, evt.Fee, evt.TxID = w.Username, w.Address, w.Amount, w.Fee, txid
		evt.WithdrawalID = &w.ID
		if err := s.events.Publish(ctx, evt); err != nil {
			s.log.Warn().Err(err).Msg("ledger event not published")
		}
	}
	return w, nil
}

// MarkFailed closes a PENDING withdrawal that was never broadcast, releasing its reservation.
// A PENDING entry whose txid is on chain must be replayed with that txid instead.
func (s *ReconcileServiceImpl) MarkFailed(ctx context.Context, id uuid.UUID, reason string) (*domain.Withdrawal, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	w, err := s.lock(ctx, dbTx, id)
	if err != nil {
		return nil, err
	}
	if w.Status != domain.WithdrawalStatusPending {
		return nil, apperror.ErrWithdrawalState(id.String(), string(w.Status))
	}

	if reason == "" {
		reason = "marked failed by operator"
	}
	if err := s.withdrawalRepo.SetStatus(ctx, dbTx, id, domain.WithdrawalStatusFailed, &reason); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("mark failed: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	w.Status = domain.WithdrawalStatusFailed
	w.LastError = &reason
	s.log.Warn().Str("withdrawal_id", id.String()).Str("reason", reason).Msg("withdrawal marked failed")
	return w, nil
}

func (s *ReconcileServiceImpl) lock(ctx context.Context, dbTx pgx.Tx, id uuid.UUID) (*domain.Withdrawal, error) {
	w, err := s.withdrawalRepo.GetByIDForUpdate(ctx, dbTx, id)
	if err != nil {
		return nil, lockError(fmt.Errorf("lock withdrawal: %w", err))
	}
	if w == nil {
		return nil, apperror.ErrWithdrawalNotFound(id.String())
	}
	return w, nil
}
