// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package converter holds the value types describing a converter's
// configuration as read from the ledger. The migration orchestrator
// works from these snapshots rather than from live queries so that a
// single consistent view drives a whole upgrade.
package converter

import (
	"github.com/poolferry/poolferry/core/asset"
)

// Reserve is one position in a converter's reserve set.
type Reserve struct {
	// Asset identifies the reserve, possibly the native sentinel.
	Asset asset.Address

	// Weight is the reserve's weight in parts per million.
	Weight int64

	// VirtualBalance is the explicitly configured balance used for
	// rate calculations in place of the actual holding. Zero means
	// unset.
	VirtualBalance int64

	// Active marks reserves that participate in conversions.
	Active bool
}

// Settings is a consistent snapshot of a converter's configuration.
type Settings struct {
	// Address is the converter's own identity.
	Address asset.Address

	// Owner is the converter's current administrator.
	Owner asset.Address

	// PendingOwner is the nominated next administrator, if any.
	PendingOwner asset.Address

	// Token is the pool token issued against the reserves.
	Token asset.Address

	// Version names the implementation generation.
	Version string

	// MaxFee is the ceiling on Fee, in parts per million.
	MaxFee int64

	// Fee is the conversion fee, in parts per million.
	Fee int64

	// Whitelist is the address allowed to convert, when set.
	Whitelist asset.Address

	// Reserves lists the reserve set in registration order.
	Reserves []Reserve
}

// Reserve returns the reserve for the given asset, if present.
func (s Settings) Reserve(a asset.Address) (Reserve, bool) {
	for _, r := range s.Reserves {
		if r.Asset == a {
			return r, true
		}
	}
	return Reserve{}, false
}

// ReserveAssets returns the reserve assets in registration order.
func (s Settings) ReserveAssets() []asset.Address {
	assets := make([]asset.Address, len(s.Reserves))
	for i, r := range s.Reserves {
		assets[i] = r.Asset
	}
	return assets
}

// Position couples a converter's settings with its actual holdings,
// keyed by reserve asset. Holdings are what the converter holds on
// the ledger, as opposed to any configured virtual balance.
type Position struct {
	Settings

	Holdings map[asset.Address]int64
}
