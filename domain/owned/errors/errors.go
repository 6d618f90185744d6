// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package errors

import "github.com/juju/errors"

const (
	// EntityNotFound is raised when the addressed entity does not
	// exist on the ledger.
	EntityNotFound = errors.ConstError("entity not found")

	// NotOwner is raised when a caller attempts an administrative
	// operation on an entity it does not administer.
	NotOwner = errors.ConstError("caller is not the administrator")

	// NotPendingOwner is raised when a caller attempts to accept
	// ownership of an entity it has not been nominated for.
	NotPendingOwner = errors.ConstError("caller is not the pending administrator")
)
