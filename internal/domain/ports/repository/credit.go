package repository

import (
	"context"

	"telegram-fortune-reading/internal/domain/model"
)

// CreditLedger is the only mutation path for credit balances. Each
// operation is a single atomic storage round trip; there is no
// read-modify-write in application code.
type CreditLedger interface {
	// Consume atomically decrements the user's balance for creditType by
	// one if it is at least one. It returns (false, nil) when the balance
	// is insufficient - a normal business outcome, not an error. Storage
	// failures surface as a domain.LedgerError.
	Consume(ctx context.Context, userID string, creditType model.CreditType) (bool, error)

	// Refund atomically increments the balance by one. Refunds are not
	// conditional on prior state; they fail only on storage errors.
	Refund(ctx context.Context, userID string, creditType model.CreditType) error

	// Grant adds amount credits once per marker. A repeated marker makes
	// the call a no-op success, so callers may safely re-run the same
	// logical grant (onboarding bonus, purchase fulfillment).
	Grant(ctx context.Context, userID string, creditType model.CreditType, amount int, marker string) error

	// Balance returns the user's current per-tier counts.
	Balance(ctx context.Context, userID string) (*model.CreditBalance, error)
}
