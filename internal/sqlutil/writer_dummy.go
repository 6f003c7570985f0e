package sqlutil

import (
	"context"
	"database/sql"
)

// DummyWriter implements Writer without any exclusivity. Postgres copes
// with overlapping transactions on its own.
type DummyWriter struct{}

func NewDummyWriter() Writer {
	return &DummyWriter{}
}

func (w *DummyWriter) Do(ctx context.Context, db *sql.DB, txn *sql.Tx, f func(txn *sql.Tx) error) error {
	return runWriterTask(ctx, db, txn, f)
}
