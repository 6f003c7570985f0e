package sqlutil

import (
	"context"
	"database/sql"
)

// Writer serialises database writes for engines that don't allow concurrent
// writers, e.g. SQLite.
//
// Do calls f when it is safe to do so:
//   - with db and txn set, f runs inside txn;
//   - with only db set, a new transaction is opened on db, passed to f, and
//     committed if f returns nil;
//   - with neither set, f is called with a nil transaction.
//
// Calling Do from within f on the same Writer deadlocks.
type Writer interface {
	Do(ctx context.Context, db *sql.DB, txn *sql.Tx, f func(txn *sql.Tx) error) error
}

func runWriterTask(ctx context.Context, db *sql.DB, txn *sql.Tx, f func(txn *sql.Tx) error) error {
	switch {
	case txn != nil:
		return f(txn)
	case db != nil:
		return WithTransaction(ctx, db, f)
	default:
		return f(nil)
	}
}
