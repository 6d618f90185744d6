// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package errors

import "github.com/juju/errors"

const (
	// NameNotFound is raised when a registry name has no registered
	// address.
	NameNotFound = errors.ConstError("registry name not found")
)
