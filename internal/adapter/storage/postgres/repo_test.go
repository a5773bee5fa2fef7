package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"coin-tip-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAuditRepo(mock)
	entry := &domain.AuditLog{
		ID:           uuid.New(),
		ClientID:     "tipbot",
		Action:       domain.AuditActionWithdraw,
		ResourceType: "withdrawal",
		ResourceID:   "BTC",
		Details:      `{"status":201}`,
		IPAddress:    "127.0.0.1",
		CreatedAt:    time.Now().UTC(),
	}

	mock.ExpectExec("INSERT INTO audit_logs").
		WithArgs(entry.ID, "tipbot", "WITHDRAW", "withdrawal", "BTC", entry.Details, "127.0.0.1", entry.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Create(context.Background(), entry))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactor_Begin(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectBegin().WillReturnError(errors.New("too many connections"))

	tr := NewTransactor(mock)
	tx, err := tr.Begin(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, tx)

	_, err = tr.Begin(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "begin transaction")
}

func TestHealthCheck(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT to_regclass").
		WillReturnRows(pgxmock.NewRows([]string{"ready"}).AddRow(true))
	mock.ExpectQuery("SELECT to_regclass").
		WillReturnRows(pgxmock.NewRows([]string{"ready"}).AddRow(false))
	mock.ExpectQuery("SELECT to_regclass").
		WillReturnError(errors.New("connection refused"))

	hc := NewHealthCheck(mock)
	assert.Equal(t, "postgresql", hc.Name())
	assert.NoError(t, hc.Ping(context.Background()))
	assert.ErrorIs(t, hc.Ping(context.Background()), errSchemaMissing)
	assert.ErrorContains(t, hc.Ping(context.Background()), "connection refused")
	assert.NoError(t, mock.ExpectationsWereMet())
}
