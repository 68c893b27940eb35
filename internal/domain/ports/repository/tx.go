package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

// Tx is an opaque transaction handle. Its concrete type is infra-defined
// (pgx.Tx for Postgres); repositories accept nil for the non-transactional
// path and fall back to their pool.
type Tx interface{}

// NoTX is passed where a method requires a Tx argument but no transaction
// is in flight.
var NoTX Tx

// TransactionManager executes fn inside a database transaction, passing
// the transaction handle through tx. fn returning an error rolls back;
// otherwise the transaction commits. Keep this interface small and stable.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
