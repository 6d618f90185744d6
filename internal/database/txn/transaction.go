// Copyright 2023 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package txn applies functions within database transactions,
// retrying the whole transaction when the database reports a
// transient failure. Everything the ledger does to the database goes
// through a runner from this package, which is what makes a
// migration an all or nothing affair.
package txn

import (
	"context"
	"database/sql"
	"time"

	"github.com/canonical/sqlair"
	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/juju/retry"
)

const (
	// DefaultRetryAttempts is the number of times a transaction will
	// be retried whilst the database reports busy.
	DefaultRetryAttempts = 250
)

// Option updates the construction of a RetryingTxnRunner.
type Option func(*option)

// WithClock sets the clock used for retry backoff.
func WithClock(c clock.Clock) Option {
	return func(o *option) {
		o.clock = c
	}
}

// WithLogger sets the logger used to surface retry noise.
func WithLogger(l loggo.Logger) Option {
	return func(o *option) {
		o.logger = l
	}
}

// WithRetryAttempts sets the number of attempts made against a busy
// database before giving up.
func WithRetryAttempts(attempts int) Option {
	return func(o *option) {
		o.attempts = attempts
	}
}

type option struct {
	clock    clock.Clock
	logger   loggo.Logger
	attempts int
}

func newOptions() *option {
	return &option{
		clock:    clock.WallClock,
		logger:   loggo.GetLogger("poolferry.database.txn"),
		attempts: DefaultRetryAttempts,
	}
}

// RetryingTxnRunner applies transactions to a database, retrying
// those that fail for transient reasons. It is safe for concurrent
// use.
type RetryingTxnRunner struct {
	clock    clock.Clock
	logger   loggo.Logger
	attempts int
}

// NewRetryingTxnRunner returns a runner configured with the supplied
// options.
func NewRetryingTxnRunner(opts ...Option) *RetryingTxnRunner {
	o := newOptions()
	for _, opt := range opts {
		opt(o)
	}
	return &RetryingTxnRunner{
		clock:    o.clock,
		logger:   o.logger,
		attempts: o.attempts,
	}
}

// Txn executes the input function against the given database inside
// a SQLair transaction. A returned error rolls the whole transaction
// back. Retry semantics are applied automatically to transient
// failures.
func (t *RetryingTxnRunner) Txn(ctx context.Context, db *sqlair.DB, fn func(context.Context, *sqlair.TX) error) error {
	return t.Retry(ctx, func() error {
		return errors.Trace(t.run(ctx, db, fn))
	})
}

func (t *RetryingTxnRunner) run(ctx context.Context, db *sqlair.DB, fn func(context.Context, *sqlair.TX) error) error {
	if err := ctx.Err(); err != nil {
		return errors.Trace(err)
	}
	tx, err := db.Begin(ctx, nil)
	if err != nil {
		return errors.Trace(err)
	}
	if err := fn(ctx, tx); err != nil {
		if rErr := tx.Rollback(); rErr != nil {
			t.logger.Warningf("failed to rollback transaction: %v", rErr)
		}
		return errors.Trace(err)
	}
	return errors.Trace(tx.Commit())
}

// StdTxn is the standard library analogue of Txn.
func (t *RetryingTxnRunner) StdTxn(ctx context.Context, db *sql.DB, fn func(context.Context, *sql.Tx) error) error {
	return t.Retry(ctx, func() error {
		return errors.Trace(t.runStd(ctx, db, fn))
	})
}

func (t *RetryingTxnRunner) runStd(ctx context.Context, db *sql.DB, fn func(context.Context, *sql.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return errors.Trace(err)
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Trace(err)
	}
	if err := fn(ctx, tx); err != nil {
		if rErr := tx.Rollback(); rErr != nil {
			t.logger.Warningf("failed to rollback transaction: %v", rErr)
		}
		return errors.Trace(err)
	}
	return errors.Trace(tx.Commit())
}

// Retry runs the input function until it succeeds, returns a fatal
// error, or the attempt budget is spent. Only errors the database
// reports as transient are retried.
func (t *RetryingTxnRunner) Retry(ctx context.Context, fn func() error) error {
	return retry.Call(retry.CallArgs{
		Func: fn,
		IsFatalError: func(err error) bool {
			return !IsErrRetryable(err)
		},
		NotifyFunc: func(err error, attempt int) {
			if attempt%10 == 0 {
				t.logger.Debugf("database still busy after %d attempts: %v", attempt, err)
			}
		},
		Attempts:    t.attempts,
		Delay:       time.Millisecond,
		MaxDelay:    time.Millisecond * 100,
		BackoffFunc: retry.DoubleDelay,
		Clock:       t.clock,
		Stop:        ctx.Done(),
	})
}
