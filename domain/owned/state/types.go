// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package state

import (
	"github.com/poolferry/poolferry/core/asset"
	"github.com/poolferry/poolferry/domain/owned"
)

// entityRow is the database representation of an owned entity.
type entityRow struct {
	Address      string `db:"address"`
	Kind         string `db:"kind"`
	Owner        string `db:"owner"`
	PendingOwner string `db:"pending_owner"`
}

func (r entityRow) toEntity() owned.Entity {
	return owned.Entity{
		Address:      asset.Address(r.Address),
		Kind:         owned.Kind(r.Kind),
		Owner:        asset.Address(r.Owner),
		PendingOwner: asset.Address(r.PendingOwner),
	}
}
