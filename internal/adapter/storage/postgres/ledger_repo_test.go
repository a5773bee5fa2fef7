package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"coin-tip-ledger/internal/core/domain"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ledgerColumnNames() []string {
	return []string{"username", "coin", "address", "addr_received", "addr_sent", "tips_received", "tips_sent", "balance", "updated_at"}
}

func ledgerRow(username string, addrReceived, addrSent, tipsReceived, tipsSent int64) *pgxmock.Rows {
	balance := (addrReceived + tipsReceived) - (addrSent + tipsSent)
	return pgxmock.NewRows(ledgerColumnNames()).AddRow(
		username, "BTC", (*string)(nil), addrReceived, addrSent, tipsReceived, tipsSent, balance,
		time.Now().UTC().Truncate(time.Microsecond),
	)
}

func TestLedgerRepo_Get(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)

	mock.ExpectQuery("SELECT .+ FROM t_addrs WHERE username = \\$1 AND coin = \\$2").
		WithArgs("alice", "BTC").
		WillReturnRows(ledgerRow("alice", 10, 1, 2, 0))

	row, err := repo.Get(context.Background(), "alice", "BTC")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, btcutil.Amount(11), row.Balance)
	assert.Equal(t, btcutil.Amount(10), row.AddrReceived)
	assert.Nil(t, row.Address)
	assert.True(t, row.Consistent())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_Get_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)

	mock.ExpectQuery("SELECT .+ FROM t_addrs").
		WithArgs("ghost", "BTC").
		WillReturnRows(pgxmock.NewRows(ledgerColumnNames()))

	row, err := repo.Get(context.Background(), "ghost", "BTC")
	require.NoError(t, err)
	assert.Nil(t, row)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_Get_DBError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)

	mock.ExpectQuery("SELECT .+ FROM t_addrs").
		WithArgs("alice", "BTC").
		WillReturnError(errors.New("connection lost"))

	_, err = repo.Get(context.Background(), "alice", "BTC")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get ledger row")
}

func TestLedgerRepo_GetForUpdate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM t_addrs WHERE username .+ FOR UPDATE").
		WithArgs("bob", "BTC").
		WillReturnRows(ledgerRow("bob", 0, 0, 0, 0))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	row, err := repo.GetForUpdate(context.Background(), tx, "bob", "BTC")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, "bob", row.Username)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_ApplyDelta(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE t_addrs SET tips_sent = tips_sent \+ \$1, balance = \(addr_received \+ tips_received\) - \(addr_sent \+ \(tips_sent \+ \$1\)\)`).
		WithArgs(int64(3), "alice", "BTC").
		WillReturnRows(ledgerRow("alice", 10, 1, 2, 3))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	row, err := repo.ApplyDelta(context.Background(), tx, "alice", "BTC", domain.CounterTipsSent, 3)
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, btcutil.Amount(8), row.Balance)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_ApplyDelta_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE t_addrs SET addr_sent").
		WithArgs(int64(1010), "ghost", "BTC").
		WillReturnRows(pgxmock.NewRows(ledgerColumnNames()))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	row, err := repo.ApplyDelta(context.Background(), tx, "ghost", "BTC", domain.CounterAddrSent, 1010)
	require.NoError(t, err)
	assert.Nil(t, row)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_ApplyDelta_RejectsBeforeSQL(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)
	mock.ExpectBegin()
	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	_, err = repo.ApplyDelta(context.Background(), tx, "alice", "BTC", domain.Counter("balance; DROP TABLE t_addrs"), 1)
	assert.Error(t, err)

	_, err = repo.ApplyDelta(context.Background(), tx, "alice", "BTC", domain.CounterTipsSent, 0)
	assert.Error(t, err)

	_, err = repo.ApplyDelta(context.Background(), tx, "alice", "BTC", domain.CounterTipsSent, -4)
	assert.Error(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_SetAddrReceived(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE t_addrs SET addr_received = \$1, balance = \(\$1 \+ tips_received\)`).
		WithArgs(int64(25), "alice", "BTC").
		WillReturnRows(ledgerRow("alice", 25, 1, 2, 0))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	row, err := repo.SetAddrReceived(context.Background(), tx, "alice", "BTC", 25)
	require.NoError(t, err)
	assert.Equal(t, btcutil.Amount(26), row.Balance)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_Provision(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)
	addr := "1NewAddr"

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO t_addrs .+ ON CONFLICT \\(username, coin\\) DO UPDATE SET address").
		WithArgs("carol", "BTC", addr).
		WillReturnRows(pgxmock.NewRows(ledgerColumnNames()).AddRow(
			"carol", "BTC", &addr, int64(0), int64(0), int64(0), int64(0), int64(0), time.Now(),
		))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	row, err := repo.Provision(context.Background(), tx, "carol", "BTC", addr)
	require.NoError(t, err)
	require.NotNil(t, row.Address)
	assert.Equal(t, addr, *row.Address)
	assert.Equal(t, btcutil.Amount(0), row.Balance)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBalanceAfter(t *testing.T) {
	tests := []struct {
		counter domain.Counter
		want    string
	}{
		{domain.CounterAddrReceived, "((addr_received + $1) + tips_received) - (addr_sent + tips_sent)"},
		{domain.CounterTipsReceived, "(addr_received + (tips_received + $1)) - (addr_sent + tips_sent)"},
		{domain.CounterAddrSent, "(addr_received + tips_received) - ((addr_sent + $1) + tips_sent)"},
		{domain.CounterTipsSent, "(addr_received + tips_received) - (addr_sent + (tips_sent + $1))"},
	}

	for _, tt := range tests {
		t.Run(string(tt.counter), func(t *testing.T) {
			assert.Equal(t, tt.want, balanceAfter(tt.counter))
		})
	}
}
