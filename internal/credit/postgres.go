package credit

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/leadfinder/internal/db"
)

// PostgresStore keeps balances in Postgres and enforces deductions with a
// conditional UPDATE.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgres wraps an open pool.
func NewPostgres(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS credit_accounts (
	user_id    TEXT PRIMARY KEY,
	balance    INTEGER NOT NULL CHECK (balance >= 0),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Get(ctx context.Context, userID string) (int, bool, error) {
	var bal int
	err := s.pool.QueryRow(ctx, `SELECT balance FROM credit_accounts WHERE user_id = $1`, userID).Scan(&bal)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, eris.Wrapf(err, "postgres: get balance %s", userID)
	}
	return bal, true, nil
}

func (s *PostgresStore) Set(ctx context.Context, userID string, balance int) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO credit_accounts (user_id, balance) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET balance = EXCLUDED.balance, updated_at = now()`,
		userID, balance)
	return eris.Wrapf(err, "postgres: set balance %s", userID)
}

func (s *PostgresStore) ensure(ctx context.Context, userID string, grant int) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO credit_accounts (user_id, balance) VALUES ($1, $2)
		ON CONFLICT (user_id) DO NOTHING`, userID, grant)
	return eris.Wrapf(err, "postgres: ensure account %s", userID)
}

// Ensure implements AtomicStore.
func (s *PostgresStore) Ensure(ctx context.Context, userID string, grant int) (int, error) {
	if err := s.ensure(ctx, userID, grant); err != nil {
		return 0, err
	}
	bal, _, err := s.Get(ctx, userID)
	return bal, err
}

// Deduct implements AtomicStore.
func (s *PostgresStore) Deduct(ctx context.Context, userID string, amount, grant int) (int, bool, error) {
	if err := s.ensure(ctx, userID, grant); err != nil {
		return 0, false, err
	}
	var bal int
	err := s.pool.QueryRow(ctx, `UPDATE credit_accounts SET balance = balance - $2, updated_at = now()
		WHERE user_id = $1 AND balance >= $2 RETURNING balance`, userID, amount).Scan(&bal)
	if errors.Is(err, pgx.ErrNoRows) {
		bal, _, err = s.Get(ctx, userID)
		return bal, false, err
	}
	if err != nil {
		return 0, false, eris.Wrapf(err, "postgres: deduct %s", userID)
	}
	return bal, true, nil
}

// Add implements AtomicStore.
func (s *PostgresStore) Add(ctx context.Context, userID string, amount, grant int) (int, error) {
	if err := s.ensure(ctx, userID, grant); err != nil {
		return 0, err
	}
	var bal int
	err := s.pool.QueryRow(ctx, `UPDATE credit_accounts SET balance = balance + $2, updated_at = now()
		WHERE user_id = $1 RETURNING balance`, userID, amount).Scan(&bal)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: add %s", userID)
	}
	return bal, nil
}
