// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package testing

import (
	gc "gopkg.in/check.v1"

	"github.com/poolferry/poolferry/domain/schema"
	"github.com/poolferry/poolferry/internal/database/testing"
)

// LedgerSuite is used to provide a database reference to tests.
// It is pre-populated with the ledger schema.
type LedgerSuite struct {
	testing.DBSuite
}

// SetUpTest is responsible for setting up a testing database suite
// initialised with the ledger schema.
func (s *LedgerSuite) SetUpTest(c *gc.C) {
	s.DBSuite.SetUpTest(c)
	s.ApplyDDL(c, schema.LedgerDDL())
}
