// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package errors

import "github.com/juju/errors"

const (
	// ConverterNotFound is raised when the addressed converter does
	// not exist on the ledger.
	ConverterNotFound = errors.ConstError("converter not found")

	// ReserveNotFound is raised when a converter has no reserve for
	// the addressed asset.
	ReserveNotFound = errors.ConstError("reserve not found")
)
