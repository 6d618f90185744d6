// Copyright 2023 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package database opens and manages the SQLite database backing the
// ledger, and provides the transaction runner the domain state
// packages use to reach it.
package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/canonical/sqlair"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	_ "github.com/mattn/go-sqlite3"

	coredatabase "github.com/poolferry/poolferry/core/database"
	"github.com/poolferry/poolferry/internal/database/txn"
)

var logger = loggo.GetLogger("poolferry.database")

// Memory is the path understood by Open to mean a fresh private in
// memory database, used by tests and throwaway agents.
const Memory = ":memory:"

// Database couples an open SQLite handle with the retrying
// transaction runner used to drive it. It implements
// coredatabase.TxnRunner.
type Database struct {
	db     *sqlair.DB
	runner *txn.RetryingTxnRunner
}

// Open returns a Database backed by the SQLite file at path,
// creating it if required. Foreign key enforcement is switched on;
// the connection pool is clamped to a single connection, giving the
// ledger the single writer semantics its transactions assume.
func Open(path string, opts ...txn.Option) (*Database, error) {
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", path)
	if path == Memory {
		dsn = "file::memory:?_foreign_keys=on"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Annotatef(err, "opening database at %q", path)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.Annotatef(err, "connecting to database at %q", path)
	}
	logger.Debugf("opened database at %q", path)

	return &Database{
		db:     sqlair.NewDB(db),
		runner: txn.NewRetryingTxnRunner(opts...),
	}, nil
}

// Txn is part of coredatabase.TxnRunner.
func (d *Database) Txn(ctx context.Context, fn func(context.Context, *sqlair.TX) error) error {
	return errors.Trace(d.runner.Txn(ctx, d.db, fn))
}

// StdTxn is part of coredatabase.TxnRunner.
func (d *Database) StdTxn(ctx context.Context, fn func(context.Context, *sql.Tx) error) error {
	return errors.Trace(d.runner.StdTxn(ctx, d.db.PlainDB(), fn))
}

// ApplyDeltas runs the given schema deltas in order within a single
// transaction. It is safe to apply the same deltas to a database
// that already carries them if the statements guard themselves with
// IF NOT EXISTS.
func (d *Database) ApplyDeltas(ctx context.Context, deltas []coredatabase.Delta) error {
	return errors.Trace(d.StdTxn(ctx, func(ctx context.Context, tx *sql.Tx) error {
		for _, delta := range deltas {
			if _, err := tx.ExecContext(ctx, delta.Stmt(), delta.Args()...); err != nil {
				return errors.Annotate(err, "applying schema delta")
			}
		}
		return nil
	}))
}

// PlainDB returns the underlying sql.DB. It is intended for tests
// and for the odd maintenance task; state code uses Txn.
func (d *Database) PlainDB() *sql.DB {
	return d.db.PlainDB()
}

// Close releases the underlying database handle.
func (d *Database) Close() error {
	return errors.Trace(d.db.PlainDB().Close())
}
