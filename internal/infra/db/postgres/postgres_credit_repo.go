package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-fortune-reading/internal/domain"
	"telegram-fortune-reading/internal/domain/model"
	"telegram-fortune-reading/internal/domain/ports/repository"
)

var _ repository.CreditLedger = (*CreditRepo)(nil)

const pgUniqueViolation = "23505"

// CreditRepo is the Postgres credit ledger. Every mutation is a single
// atomic statement (or one short transaction for Grant); there is no
// read-then-write in application code, so concurrent consumes for the
// same user cannot double-spend.
type CreditRepo struct {
	pool *pgxpool.Pool
	tm   repository.TransactionManager
}

func NewCreditRepo(pool *pgxpool.Pool, tm repository.TransactionManager) *CreditRepo {
	return &CreditRepo{pool: pool, tm: tm}
}

// Consume decrements the balance by one iff it is at least one. The
// conditional UPDATE makes the check-and-decrement a single round trip;
// zero rows affected means insufficient funds, reported as (false, nil).
func (r *CreditRepo) Consume(ctx context.Context, userID string, ct model.CreditType) (bool, error) {
	const q = `
UPDATE credit_balances
   SET balance = balance - 1, updated_at = now()
 WHERE user_id = $1 AND credit_type = $2 AND balance >= 1;`

	tag, err := r.pool.Exec(ctx, q, userID, string(ct))
	if err != nil {
		return false, domain.NewLedgerError("consume", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Refund increments the balance by one unconditionally, creating the
// balance row if the user has none for this tier yet.
func (r *CreditRepo) Refund(ctx context.Context, userID string, ct model.CreditType) error {
	const q = `
INSERT INTO credit_balances (user_id, credit_type, balance, updated_at)
VALUES ($1, $2, 1, now())
ON CONFLICT (user_id, credit_type)
  DO UPDATE SET balance = credit_balances.balance + 1, updated_at = now();`

	if _, err := r.pool.Exec(ctx, q, userID, string(ct)); err != nil {
		return domain.NewLedgerError("refund", err)
	}
	return nil
}

// Grant adds amount credits once per marker. The marker row's unique
// constraint is the idempotency guard: a duplicate insert aborts the
// transaction before the balance is touched, and the unique violation is
// reported as success.
func (r *CreditRepo) Grant(ctx context.Context, userID string, ct model.CreditType, amount int, marker string) error {
	if amount <= 0 || marker == "" || !model.KnownCreditType(ct) {
		return domain.ErrInvalidArgument
	}

	err := r.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		const ins = `
INSERT INTO credit_grants (marker, user_id, credit_type, amount, granted_at)
VALUES ($1, $2, $3, $4, now());`
		if _, err := execSQL(ctx, r.pool, tx, ins, marker, userID, string(ct), amount); err != nil {
			return err
		}

		const upd = `
INSERT INTO credit_balances (user_id, credit_type, balance, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (user_id, credit_type)
  DO UPDATE SET balance = credit_balances.balance + $3, updated_at = now();`
		_, err := execSQL(ctx, r.pool, tx, upd, userID, string(ct), amount)
		return err
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			// Same logical grant seen before; nothing to do.
			return nil
		}
		return domain.NewLedgerError("grant", err)
	}
	return nil
}

func (r *CreditRepo) Balance(ctx context.Context, userID string) (*model.CreditBalance, error) {
	const q = `
SELECT credit_type, balance, updated_at
  FROM credit_balances
 WHERE user_id = $1;`

	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, domain.NewLedgerError("balance", err)
	}
	defer rows.Close()

	b := &model.CreditBalance{UserID: userID, Counts: map[model.CreditType]int{}}
	for rows.Next() {
		var ct string
		var n int
		var ts time.Time
		if err := rows.Scan(&ct, &n, &ts); err != nil {
			return nil, domain.NewLedgerError("balance", err)
		}
		b.Counts[model.CreditType(ct)] = n
		if ts.After(b.UpdatedAt) {
			b.UpdatedAt = ts
		}
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewLedgerError("balance", err)
	}
	return b, nil
}
