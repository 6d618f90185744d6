// Copyright 2023 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package testing supplies test suites backed by a real in memory
// ledger database. State tests run against the genuine article
// rather than mocks so that constraint and rollback behaviour is
// exercised for real.
package testing

import (
	"context"
	"database/sql"

	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	coredatabase "github.com/poolferry/poolferry/core/database"
	"github.com/poolferry/poolferry/internal/database"
)

// DBSuite provides an in memory database to tests, with no schema
// applied. Most state tests want schematesting.LedgerSuite instead.
type DBSuite struct {
	testing.IsolationSuite

	db *database.Database
}

// SetUpTest opens a fresh in memory database for each test.
func (s *DBSuite) SetUpTest(c *gc.C) {
	s.IsolationSuite.SetUpTest(c)

	db, err := database.Open(database.Memory)
	c.Assert(err, jc.ErrorIsNil)
	s.db = db
	s.AddCleanup(func(c *gc.C) {
		c.Check(db.Close(), jc.ErrorIsNil)
	})
}

// DB returns the plain handle, for direct seeding and inspection.
func (s *DBSuite) DB() *sql.DB {
	return s.db.PlainDB()
}

// TxnRunner returns the suite's database.
func (s *DBSuite) TxnRunner() coredatabase.TxnRunner {
	return s.db
}

// TxnRunnerFactory returns a factory yielding the suite's database.
func (s *DBSuite) TxnRunnerFactory() coredatabase.TxnRunnerFactory {
	return func() (coredatabase.TxnRunner, error) {
		return s.db, nil
	}
}

// ApplyDDL applies the given schema deltas to the suite's database.
func (s *DBSuite) ApplyDDL(c *gc.C, deltas []coredatabase.Delta) {
	c.Assert(s.db.ApplyDeltas(context.Background(), deltas), jc.ErrorIsNil)
}
