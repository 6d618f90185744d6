// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package state

import (
	"github.com/poolferry/poolferry/core/asset"
	"github.com/poolferry/poolferry/core/converter"
)

// converterRow is the database representation of a converter, joined
// with its entity record for the ownership columns.
type converterRow struct {
	Address      string `db:"address"`
	Token        string `db:"token"`
	Version      string `db:"version"`
	MaxFee       int64  `db:"max_fee"`
	Fee          int64  `db:"fee"`
	Whitelist    string `db:"whitelist"`
	Owner        string `db:"owner"`
	PendingOwner string `db:"pending_owner"`
}

func (r converterRow) toSettings(reserves []converter.Reserve) converter.Settings {
	return converter.Settings{
		Address:      asset.Address(r.Address),
		Owner:        asset.Address(r.Owner),
		PendingOwner: asset.Address(r.PendingOwner),
		Token:        asset.Address(r.Token),
		Version:      r.Version,
		MaxFee:       r.MaxFee,
		Fee:          r.Fee,
		Whitelist:    asset.Address(r.Whitelist),
		Reserves:     reserves,
	}
}

// entityRow is the slice of the entity table written when a
// converter is provisioned.
type entityRow struct {
	Address      string `db:"address"`
	Kind         string `db:"kind"`
	Owner        string `db:"owner"`
	PendingOwner string `db:"pending_owner"`
}

// reserveRow is the database representation of one reserve position.
type reserveRow struct {
	Converter      string `db:"converter"`
	Idx            int64  `db:"idx"`
	Asset          string `db:"asset"`
	Weight         int64  `db:"weight"`
	VirtualBalance int64  `db:"virtual_balance"`
	Active         bool   `db:"is_active"`
}

func (r reserveRow) toReserve() converter.Reserve {
	return converter.Reserve{
		Asset:          asset.Address(r.Asset),
		Weight:         r.Weight,
		VirtualBalance: r.VirtualBalance,
		Active:         r.Active,
	}
}

// reserveTally aggregates a converter's reserve set for membership
// and total weight checks.
type reserveTally struct {
	Count int64 `db:"count"`
	Total int64 `db:"total"`
}
