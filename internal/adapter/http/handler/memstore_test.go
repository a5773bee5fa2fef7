package handler_test

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"

	"coin-tip-ledger/internal/core/domain"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// memStore is an in-memory ledger and withdrawal journal. Transactions are
// serialized and rolled back by snapshot, which is enough to observe lost
// updates or double debits from the service layer.
type memStore struct {
	txMu sync.Mutex // held for the lifetime of a transaction
	mu   sync.Mutex // guards the maps

	rows        map[string]domain.LedgerRow
	withdrawals map[uuid.UUID]domain.Withdrawal

	broadcastErr error // returned once by the next SetBroadcast
}

func newMemStore() *memStore {
	return &memStore{
		rows:        make(map[string]domain.LedgerRow),
		withdrawals: make(map[uuid.UUID]domain.Withdrawal),
	}
}

func rowKey(username, coin string) string { return coin + "|" + username }

type memTx struct {
	pgx.Tx
	s           *memStore
	rows        map[string]domain.LedgerRow
	withdrawals map[uuid.UUID]domain.Withdrawal
	done        bool
}

func (s *memStore) Begin(ctx context.Context) (pgx.Tx, error) {
	s.txMu.Lock()
	s.mu.Lock()
	defer s.mu.Unlock()
	return &memTx{s: s, rows: maps.Clone(s.rows), withdrawals: maps.Clone(s.withdrawals)}, nil
}

func (tx *memTx) Commit(ctx context.Context) error {
	if tx.done {
		return pgx.ErrTxClosed
	}
	tx.done = true
	tx.s.txMu.Unlock()
	return nil
}

func (tx *memTx) Rollback(ctx context.Context) error {
	if tx.done {
		return pgx.ErrTxClosed
	}
	tx.done = true
	tx.s.mu.Lock()
	tx.s.rows, tx.s.withdrawals = tx.rows, tx.withdrawals
	tx.s.mu.Unlock()
	tx.s.txMu.Unlock()
	return nil
}

// --- ports.LedgerRepository ---

func (s *memStore) Get(ctx context.Context, username, coin string) (*domain.LedgerRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[rowKey(username, coin)]
	if !ok {
		return nil, nil
	}
	return &row, nil
}

func (s *memStore) GetForUpdate(ctx context.Context, _ pgx.Tx, username, coin string) (*domain.LedgerRow, error) {
	return s.Get(ctx, username, coin)
}

func (s *memStore) ApplyDelta(ctx context.Context, _ pgx.Tx, username, coin string, counter domain.Counter, delta btcutil.Amount) (*domain.LedgerRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[rowKey(username, coin)]
	if !ok {
		return nil, nil
	}
	if err := row.Add(counter, delta); err != nil {
		return nil, err
	}
	s.rows[rowKey(username, coin)] = row
	return &row, nil
}

func (s *memStore) SetAddrReceived(ctx context.Context, _ pgx.Tx, username, coin string, received btcutil.Amount) (*domain.LedgerRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[rowKey(username, coin)]
	if !ok {
		return nil, nil
	}
	row.SetAddrReceived(received)
	s.rows[rowKey(username, coin)] = row
	return &row, nil
}

func (s *memStore) Provision(ctx context.Context, _ pgx.Tx, username, coin, address string) (*domain.LedgerRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[rowKey(username, coin)]
	if !ok {
		row = domain.LedgerRow{Username: username, Coin: coin}
	}
	row.Address = &address
	s.rows[rowKey(username, coin)] = row
	return &row, nil
}

// --- ports.WithdrawalRepository ---

func (s *memStore) Create(ctx context.Context, _ pgx.Tx, w *domain.Withdrawal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w.IdempotencyKey != nil {
		for _, existing := range s.withdrawals {
			if existing.IdempotencyKey != nil && *existing.IdempotencyKey == *w.IdempotencyKey {
				return fmt.Errorf("insert withdrawal: %w", &pgconn.PgError{Code: "23505"})
			}
		}
	}
	s.withdrawals[w.ID] = *w
	return nil
}

func (s *memStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Withdrawal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.withdrawals[id]
	if !ok {
		return nil, nil
	}
	return &w, nil
}

func (s *memStore) GetByIDForUpdate(ctx context.Context, _ pgx.Tx, id uuid.UUID) (*domain.Withdrawal, error) {
	return s.GetByID(ctx, id)
}

func (s *memStore) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Withdrawal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range s.withdrawals {
		if w.IdempotencyKey != nil && *w.IdempotencyKey == key {
			return &w, nil
		}
	}
	return nil, nil
}

func (s *memStore) SetBroadcast(ctx context.Context, _ pgx.Tx, id uuid.UUID, txid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.broadcastErr; err != nil {
		s.broadcastErr = nil
		return err
	}
	w, ok := s.withdrawals[id]
	if !ok {
		return fmt.Errorf("withdrawal %s not found", id)
	}
	w.TxID = &txid
	w.Status = domain.WithdrawalStatusBroadcast
	s.withdrawals[id] = w
	return nil
}

func (s *memStore) SetStatus(ctx context.Context, _ pgx.Tx, id uuid.UUID, status domain.WithdrawalStatus, lastError *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.withdrawals[id]
	if !ok {
		return fmt.Errorf("withdrawal %s not found", id)
	}
	w.Status = status
	if lastError != nil {
		w.LastError = lastError
	}
	s.withdrawals[id] = w
	return nil
}

func (s *memStore) SumOutstanding(ctx context.Context, _ pgx.Tx, username, coin string) (btcutil.Amount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sum btcutil.Amount
	for _, w := range s.withdrawals {
		if w.Username == username && w.Coin == coin && w.IsOutstanding() {
			sum += w.Total()
		}
	}
	return sum, nil
}

func (s *memStore) ListUnreconciled(ctx context.Context, coin string) ([]domain.Withdrawal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var list []domain.Withdrawal
	for _, w := range s.withdrawals {
		if w.Coin == coin && w.IsOutstanding() {
			list = append(list, w)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })
	return list, nil
}

// put stores a journal entry directly, bypassing the service.
func (s *memStore) failNextBroadcast(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broadcastErr = err
}

func (s *memStore) put(w domain.Withdrawal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.withdrawals[w.ID] = w
}

func (s *memStore) row(username, coin string) domain.LedgerRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows[rowKey(username, coin)]
}

// fakeDaemon is a coin daemon with a settable received figure per account.
type fakeDaemon struct {
	mu       sync.Mutex
	received map[string]btcutil.Amount
	sends    []string
	addrSeq  int
}

func newFakeDaemon() *fakeDaemon {
	return &fakeDaemon{received: make(map[string]btcutil.Amount)}
}

func (d *fakeDaemon) setReceived(account string, amount btcutil.Amount) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.received[account] = amount
}

func (d *fakeDaemon) sendCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sends)
}

func (d *fakeDaemon) GetReceivedByAccount(ctx context.Context, account string, minconf int) (btcutil.Amount, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.received[account], nil
}

func (d *fakeDaemon) SendToAddress(ctx context.Context, address string, amount btcutil.Amount) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sends = append(d.sends, address)
	return fmt.Sprintf("%064x", len(d.sends)), nil
}

func (d *fakeDaemon) ValidateAddress(ctx context.Context, address string) (bool, error) {
	return len(address) >= 26, nil
}

func (d *fakeDaemon) GetNewAddress(ctx context.Context, account string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.addrSeq++
	return fmt.Sprintf("1Fake%s%021d", account, d.addrSeq), nil
}
