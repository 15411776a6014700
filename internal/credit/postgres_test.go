package credit

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })
	return NewPostgres(mock), mock
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS credit_accounts`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetMissing(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT balance FROM credit_accounts WHERE user_id = \$1`).
		WithArgs("ghost").
		WillReturnError(pgx.ErrNoRows)

	bal, found, err := s.Get(context.Background(), "ghost")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Zero(t, bal)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeductThroughLedger(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO credit_accounts .* ON CONFLICT \(user_id\) DO NOTHING`).
		WithArgs("u1", DefaultGrant).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(`UPDATE credit_accounts SET balance = balance - \$2`).
		WithArgs("u1", 1).
		WillReturnRows(pgxmock.NewRows([]string{"balance"}).AddRow(24))

	res, err := NewLedger(s, 0).Deduct(context.Background(), "u1", 1)
	require.NoError(t, err)
	assert.Equal(t, Result{Success: true, Remaining: 24}, res)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeductInsufficient(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO credit_accounts`).
		WithArgs("7", DefaultGrant).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectQuery(`UPDATE credit_accounts SET balance = balance - \$2`).
		WithArgs("7", 1).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`SELECT balance FROM credit_accounts`).
		WithArgs("7").
		WillReturnRows(pgxmock.NewRows([]string{"balance"}).AddRow(0))

	res, err := NewLedger(s, 0).Deduct(context.Background(), "7", 1)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, 0, res.Remaining)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Add(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO credit_accounts`).
		WithArgs("u1", DefaultGrant).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectQuery(`UPDATE credit_accounts SET balance = balance \+ \$2`).
		WithArgs("u1", 10).
		WillReturnRows(pgxmock.NewRows([]string{"balance"}).AddRow(35))

	res, err := NewLedger(s, 0).Add(context.Background(), "u1", 10)
	require.NoError(t, err)
	assert.Equal(t, 35, res.Remaining)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Ensure(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO credit_accounts`).
		WithArgs("u2", DefaultGrant).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(`SELECT balance FROM credit_accounts`).
		WithArgs("u2").
		WillReturnRows(pgxmock.NewRows([]string{"balance"}).AddRow(DefaultGrant))

	bal, err := NewLedger(s, 0).GetBalance(context.Background(), "u2")
	require.NoError(t, err)
	assert.Equal(t, DefaultGrant, bal)
	assert.NoError(t, mock.ExpectationsWereMet())
}
