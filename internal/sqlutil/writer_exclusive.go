package sqlutil

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/atomic"
)

// ExclusiveWriter implements Writer by queueing tasks onto a single
// goroutine, so only one write runs at a time. Used for SQLite.
type ExclusiveWriter struct {
	running atomic.Bool
	todo    chan writerTask
}

func NewExclusiveWriter() Writer {
	return &ExclusiveWriter{
		todo: make(chan writerTask),
	}
}

type writerTask struct {
	ctx  context.Context
	db   *sql.DB
	txn  *sql.Tx
	f    func(txn *sql.Tx) error
	wait chan error
}

// Do queues f and blocks until it has run. A caller whose context is done
// before the task is picked up gets the context error instead.
func (w *ExclusiveWriter) Do(ctx context.Context, db *sql.DB, txn *sql.Tx, f func(txn *sql.Tx) error) error {
	if w.todo == nil {
		return errors.New("not initialised")
	}
	if !w.running.Load() {
		go w.run()
	}
	task := writerTask{
		ctx:  ctx,
		db:   db,
		txn:  txn,
		f:    f,
		wait: make(chan error, 1),
	}
	select {
	case w.todo <- task:
	case <-ctx.Done():
		return ctx.Err()
	}
	return <-task.wait
}

func (w *ExclusiveWriter) run() {
	if !w.running.CompareAndSwap(false, true) {
		return
	}
	defer w.running.Store(false)
	for task := range w.todo {
		task.wait <- runWriterTask(task.ctx, task.db, task.txn, task.f)
		close(task.wait)
	}
}
