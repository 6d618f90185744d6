// Copyright 2023 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package domain carries the machinery shared by the state packages
// beneath it: a base type that locates the ledger database and
// caches prepared statements on its behalf.
package domain

import (
	"context"
	"sync"

	"github.com/canonical/sqlair"
	"github.com/juju/errors"

	coredatabase "github.com/poolferry/poolferry/core/database"
)

// StateBase defines a base struct for requesting a database. The
// transaction runner is resolved lazily and cached for the lifetime
// of the struct.
type StateBase struct {
	dbMutex sync.RWMutex
	getDB   coredatabase.TxnRunnerFactory
	db      coredatabase.TxnRunner

	// statements is a cache of sqlair statements keyed by the query
	// string itself.
	statementMutex sync.RWMutex
	statements     map[string]*sqlair.Statement
}

// NewStateBase returns a new StateBase.
func NewStateBase(getDB coredatabase.TxnRunnerFactory) *StateBase {
	return &StateBase{
		getDB:      getDB,
		statements: make(map[string]*sqlair.Statement),
	}
}

// DB returns the database for a given state base.
func (st *StateBase) DB() (coredatabase.TxnRunner, error) {
	st.dbMutex.RLock()
	if st.db != nil {
		defer st.dbMutex.RUnlock()
		return st.db, nil
	}
	st.dbMutex.RUnlock()

	st.dbMutex.Lock()
	defer st.dbMutex.Unlock()
	if st.getDB == nil {
		return nil, errors.New("nil getDB")
	}
	if st.db == nil {
		var err error
		if st.db, err = st.getDB(); err != nil {
			return nil, errors.Annotate(err, "invoking getDB")
		}
	}
	return st.db, nil
}

// Prepare prepares a SQLair query. If the query has been prepared
// previously it is retrieved from the statement cache.
func (st *StateBase) Prepare(query string, typeSamples ...any) (*sqlair.Statement, error) {
	st.statementMutex.RLock()
	if stmt, ok := st.statements[query]; ok {
		st.statementMutex.RUnlock()
		return stmt, nil
	}
	st.statementMutex.RUnlock()

	st.statementMutex.Lock()
	defer st.statementMutex.Unlock()
	stmt, err := sqlair.Prepare(query, typeSamples...)
	if err != nil {
		return nil, errors.Annotate(err, "preparing statement")
	}
	st.statements[query] = stmt
	return stmt, nil
}

// AtomicContext is a typed context that provides access to a single
// database transaction for the duration of a function call. State
// methods that accept one can be composed by callers into a larger
// atomic operation, up to and including a whole migration.
type AtomicContext interface {
	context.Context
}

type atomicContext struct {
	context.Context

	tx *sqlair.TX
}

// RunAtomic executes the closure function within the scope of a
// single database transaction. The closure is passed an
// AtomicContext that must be threaded through every state call it
// makes. Any error rolls the entire transaction back.
func (st *StateBase) RunAtomic(ctx context.Context, fn func(AtomicContext) error) error {
	db, err := st.DB()
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(db.Txn(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		return fn(&atomicContext{Context: ctx, tx: tx})
	}))
}

// Run executes the closure function using the transaction carried by
// the atomic context. It is the bridge state methods use to reach
// the transaction started by RunAtomic.
func Run(ctx AtomicContext, fn func(context.Context, *sqlair.TX) error) error {
	atomic, ok := ctx.(*atomicContext)
	if !ok {
		return errors.Errorf("programming error: AtomicContext not created by RunAtomic")
	}
	return errors.Trace(fn(atomic.Context, atomic.tx))
}
