// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package errors

import "github.com/juju/errors"

const (
	// TokenNotFound is raised when the addressed token contract
	// does not exist on the ledger.
	TokenNotFound = errors.ConstError("token not found")

	// InsufficientFunds is raised when a transfer attempts to move
	// more of an asset than its holder has. It models the abort of
	// an external transfer call.
	InsufficientFunds = errors.ConstError("insufficient funds")
)
