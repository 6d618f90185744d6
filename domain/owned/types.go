// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package owned models the administrative side of every entity on
// the ledger. Ownership transfers are two phase: the current
// administrator nominates a successor, and nothing changes hands
// until the successor deliberately accepts.
package owned

import (
	"github.com/poolferry/poolferry/core/asset"
)

// Kind classifies the owned entities recorded on the ledger.
type Kind string

const (
	// KindConverter marks liquidity pool converters.
	KindConverter Kind = "converter"

	// KindToken marks token contracts.
	KindToken Kind = "token"

	// KindGuard marks resource access guards.
	KindGuard Kind = "guard"
)

// IsValid reports whether the kind is one of the known values.
func (k Kind) IsValid() bool {
	switch k {
	case KindConverter, KindToken, KindGuard:
		return true
	}
	return false
}

// Entity describes one owned entity.
type Entity struct {
	// Address is the entity's identity on the ledger.
	Address asset.Address

	// Kind says what the entity is.
	Kind Kind

	// Owner is the current administrator.
	Owner asset.Address

	// PendingOwner is the nominated next administrator. Unset when
	// no nomination is outstanding.
	PendingOwner asset.Address
}
