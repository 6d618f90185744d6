// Copyright 2023 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package txn_test

import (
	"context"
	"database/sql"

	"github.com/canonical/sqlair"
	"github.com/juju/errors"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	_ "github.com/mattn/go-sqlite3"
	gc "gopkg.in/check.v1"

	"github.com/poolferry/poolferry/internal/database/txn"
)

type transactionRunnerSuite struct {
	testing.IsolationSuite

	db *sql.DB
}

var _ = gc.Suite(&transactionRunnerSuite{})

func (s *transactionRunnerSuite) SetUpTest(c *gc.C) {
	s.IsolationSuite.SetUpTest(c)

	db, err := sql.Open("sqlite3", ":memory:")
	c.Assert(err, jc.ErrorIsNil)
	db.SetMaxOpenConns(1)
	s.db = db
	s.AddCleanup(func(c *gc.C) {
		c.Check(db.Close(), jc.ErrorIsNil)
	})
}

func (s *transactionRunnerSuite) createTable(c *gc.C) {
	_, err := s.db.Exec("CREATE TABLE foo (id INT PRIMARY KEY, name VARCHAR(255))")
	c.Assert(err, jc.ErrorIsNil)
}

func (s *transactionRunnerSuite) TestTxn(c *gc.C) {
	runner := txn.NewRetryingTxnRunner()

	db := sqlair.NewDB(s.db)
	err := runner.Txn(context.Background(), db, func(ctx context.Context, tx *sqlair.TX) error {
		return nil
	})
	c.Assert(err, jc.ErrorIsNil)
}

func (s *transactionRunnerSuite) TestStdTxn(c *gc.C) {
	runner := txn.NewRetryingTxnRunner()

	err := runner.StdTxn(context.Background(), s.db, func(ctx context.Context, tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, "SELECT 1")
		if err != nil {
			return errors.Trace(err)
		}
		defer rows.Close()
		return rows.Err()
	})
	c.Assert(err, jc.ErrorIsNil)
}

func (s *transactionRunnerSuite) TestTxnWithCancelledContext(c *gc.C) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := txn.NewRetryingTxnRunner()

	err := runner.StdTxn(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		c.Fatal("should not be called")
		return nil
	})
	c.Assert(err, gc.ErrorMatches, "context canceled")
}

func (s *transactionRunnerSuite) TestTxnInserts(c *gc.C) {
	runner := txn.NewRetryingTxnRunner()

	s.createTable(c)

	err := runner.StdTxn(context.Background(), s.db, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, "INSERT INTO foo (id, name) VALUES (1, 'test')")
		return errors.Trace(err)
	})
	c.Assert(err, jc.ErrorIsNil)

	var n int
	row := s.db.QueryRow("SELECT COUNT(*) FROM foo")
	c.Assert(row.Scan(&n), jc.ErrorIsNil)
	c.Check(n, gc.Equals, 1)
}

func (s *transactionRunnerSuite) TestTxnRollback(c *gc.C) {
	runner := txn.NewRetryingTxnRunner()

	s.createTable(c)

	err := runner.StdTxn(context.Background(), s.db, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, "INSERT INTO foo (id, name) VALUES (1, 'test')")
		if err != nil {
			return errors.Trace(err)
		}
		return errors.Errorf("fail")
	})
	c.Assert(err, gc.ErrorMatches, "fail")

	// The insert must have been rolled back with the transaction.
	var n int
	row := s.db.QueryRow("SELECT COUNT(*) FROM foo")
	c.Assert(row.Scan(&n), jc.ErrorIsNil)
	c.Check(n, gc.Equals, 0)
}

func (s *transactionRunnerSuite) TestRetryForNonRetryableError(c *gc.C) {
	runner := txn.NewRetryingTxnRunner()

	var count int
	err := runner.Retry(context.Background(), func() error {
		count++
		return errors.Errorf("fail")
	})
	c.Assert(err, gc.ErrorMatches, "fail")
	c.Assert(count, gc.Equals, 1)
}

func (s *transactionRunnerSuite) TestRetryForRetryableError(c *gc.C) {
	runner := txn.NewRetryingTxnRunner(txn.WithRetryAttempts(5))

	var count int
	err := runner.Retry(context.Background(), func() error {
		count++
		return errors.Errorf("database is locked")
	})
	c.Assert(err, gc.ErrorMatches, "attempt count exceeded: .*")
	c.Assert(count, gc.Equals, 5)
}
