// Copyright 2023 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package database defines the interfaces through which state code
// reaches the ledger database. Implementations live in
// internal/database; state packages only ever see a TxnRunner.
package database

import (
	"context"
	"database/sql"

	"github.com/canonical/sqlair"
)

// TxnRunner defines an interface for running transactions against the
// ledger database.
type TxnRunner interface {
	// Txn manages the application of a SQLair transaction within
	// which the input function is executed. The input context can be
	// used to cancel the transaction; a returned error causes a full
	// rollback. Retry semantics are applied automatically to
	// transient failures.
	//
	// This is the function that almost all downstream consumers
	// should use.
	Txn(context.Context, func(context.Context, *sqlair.TX) error) error

	// StdTxn is the standard library analogue of Txn, for call sites
	// that need raw database/sql access.
	StdTxn(context.Context, func(context.Context, *sql.Tx) error) error
}

// TxnRunnerFactory aliases a function that returns a TxnRunner or an
// error. State types hold one of these rather than a TxnRunner so
// that construction order does not matter during agent assembly.
type TxnRunnerFactory = func() (TxnRunner, error)
