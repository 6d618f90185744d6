// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package state

import (
	"context"

	"github.com/canonical/sqlair"
	"github.com/juju/errors"

	"github.com/poolferry/poolferry/core/asset"
	coredatabase "github.com/poolferry/poolferry/core/database"
	"github.com/poolferry/poolferry/domain"
	"github.com/poolferry/poolferry/domain/owned"
	ownederrors "github.com/poolferry/poolferry/domain/owned/errors"
	"github.com/poolferry/poolferry/internal/database"
)

// State provides persistence for entity ownership records.
type State struct {
	*domain.StateBase
}

// NewState returns a new State for interacting with entity ownership.
func NewState(factory coredatabase.TxnRunnerFactory) *State {
	return &State{
		StateBase: domain.NewStateBase(factory),
	}
}

// CreateEntity records a new owned entity on the ledger.
func (st *State) CreateEntity(ctx domain.AtomicContext, entity owned.Entity) error {
	if entity.Address.IsZero() {
		return errors.NotValidf("entity with zero address")
	}
	if entity.Owner.IsZero() {
		return errors.NotValidf("entity %q with zero administrator", entity.Address)
	}
	if !entity.Kind.IsValid() {
		return errors.NotValidf("entity kind %q", entity.Kind)
	}

	stmt, err := st.Prepare(`
INSERT INTO entity (address, kind, owner, pending_owner)
VALUES ($entityRow.address, $entityRow.kind, $entityRow.owner, $entityRow.pending_owner)`, entityRow{})
	if err != nil {
		return errors.Trace(err)
	}

	row := entityRow{
		Address:      entity.Address.String(),
		Kind:         string(entity.Kind),
		Owner:        entity.Owner.String(),
		PendingOwner: entity.PendingOwner.String(),
	}
	if entity.PendingOwner.IsZero() {
		row.PendingOwner = ""
	}
	return domain.Run(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		if err := tx.Query(ctx, stmt, row).Run(); err != nil {
			if database.IsErrConstraintUnique(err) {
				return errors.AlreadyExistsf("entity %q", entity.Address)
			}
			return errors.Trace(err)
		}
		return nil
	})
}

// Entity returns the ownership record for the given address.
func (st *State) Entity(ctx domain.AtomicContext, address asset.Address) (owned.Entity, error) {
	stmt, err := st.Prepare(`
SELECT &entityRow.* FROM entity WHERE address = $entityRow.address`, entityRow{})
	if err != nil {
		return owned.Entity{}, errors.Trace(err)
	}

	var row entityRow
	err = domain.Run(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		err := tx.Query(ctx, stmt, entityRow{Address: address.String()}).Get(&row)
		if errors.Is(err, sqlair.ErrNoRows) {
			return errors.Annotatef(ownederrors.EntityNotFound, "%q", address)
		}
		return errors.Trace(err)
	})
	if err != nil {
		return owned.Entity{}, errors.Trace(err)
	}
	return row.toEntity(), nil
}

// Owner returns the current administrator of the given entity.
func (st *State) Owner(ctx domain.AtomicContext, address asset.Address) (asset.Address, error) {
	entity, err := st.Entity(ctx, address)
	if err != nil {
		return "", errors.Trace(err)
	}
	return entity.Owner, nil
}

// TransferOwnership nominates newOwner as the next administrator of
// the entity. Only the current administrator may nominate, and
// control does not change hands until the nominee accepts.
// Nominating the zero address withdraws an outstanding nomination.
func (st *State) TransferOwnership(ctx domain.AtomicContext, caller, address, newOwner asset.Address) error {
	entity, err := st.Entity(ctx, address)
	if err != nil {
		return errors.Trace(err)
	}
	if entity.Owner != caller {
		return errors.Annotatef(ownederrors.NotOwner, "%q of %q", caller, address)
	}
	if !newOwner.IsZero() && newOwner == entity.Owner {
		return errors.NotValidf("nominating the current administrator of %q", address)
	}

	stmt, err := st.Prepare(`
UPDATE entity SET pending_owner = $entityRow.pending_owner
WHERE address = $entityRow.address`, entityRow{})
	if err != nil {
		return errors.Trace(err)
	}

	row := entityRow{Address: address.String()}
	if !newOwner.IsZero() {
		row.PendingOwner = newOwner.String()
	}
	return domain.Run(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		return errors.Trace(tx.Query(ctx, stmt, row).Run())
	})
}

// AcceptOwnership completes a two phase ownership transfer. The
// caller must hold the outstanding nomination for the entity.
func (st *State) AcceptOwnership(ctx domain.AtomicContext, caller, address asset.Address) error {
	entity, err := st.Entity(ctx, address)
	if err != nil {
		return errors.Trace(err)
	}
	if entity.PendingOwner.IsZero() || entity.PendingOwner != caller {
		return errors.Annotatef(ownederrors.NotPendingOwner, "%q of %q", caller, address)
	}

	stmt, err := st.Prepare(`
UPDATE entity SET owner = $entityRow.owner, pending_owner = ''
WHERE address = $entityRow.address`, entityRow{})
	if err != nil {
		return errors.Trace(err)
	}

	row := entityRow{Address: address.String(), Owner: caller.String()}
	return domain.Run(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		return errors.Trace(tx.Query(ctx, stmt, row).Run())
	})
}
