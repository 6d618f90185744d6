// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package migration holds the shared vocabulary of a converter
// migration: the phase machine the orchestrator walks, the report it
// returns, and the notifications it publishes.
package migration

import (
	"github.com/poolferry/poolferry/core/asset"
)

// Report summarises a completed migration as needed by API clients
// and the event log.
type Report struct {
	// OldInstance is the converter that was migrated away from.
	OldInstance asset.Address

	// NewInstance is the freshly provisioned replacement.
	NewInstance asset.Address

	// Admin is the administrator nominated to take control of both
	// converters.
	Admin asset.Address

	// Reserves is the number of reserve positions carried over.
	Reserves int

	// Phase is the phase the migration finished in.
	Phase Phase
}

// Topics published on the central hub as a migration progresses.
// Payloads are the structs below, flattened to string keyed maps by
// the hub's marshaller.
const (
	// OwnershipAcceptedTopic is published once the orchestrator has
	// taken administrative control of a converter due for upgrade.
	OwnershipAcceptedTopic = "migration.ownership-accepted"

	// CompletedTopic is published once the replacement is fully
	// provisioned and control of both converters has been offered
	// back to the original administrator.
	CompletedTopic = "migration.complete"
)

// OwnershipAccepted is the payload published on
// OwnershipAcceptedTopic.
type OwnershipAccepted struct {
	Instance asset.Address `yaml:"instance"`
	NewAdmin asset.Address `yaml:"new-admin"`
}

// Completed is the payload published on CompletedTopic.
type Completed struct {
	OldInstance asset.Address `yaml:"old-instance"`
	NewInstance asset.Address `yaml:"new-instance"`
}
