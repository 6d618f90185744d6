// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package state

// registryRow is the database representation of one registry entry.
type registryRow struct {
	Name    string `db:"name"`
	Address string `db:"address"`
}
