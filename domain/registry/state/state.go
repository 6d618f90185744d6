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
	"github.com/poolferry/poolferry/domain/registry"
	registryerrors "github.com/poolferry/poolferry/domain/registry/errors"
)

// State provides persistence for the name registry.
type State struct {
	*domain.StateBase
}

// NewState returns a new State for interacting with the registry.
func NewState(factory coredatabase.TxnRunnerFactory) *State {
	return &State{
		StateBase: domain.NewStateBase(factory),
	}
}

// Register binds the name to the address, replacing any previous
// binding. Registering the zero address removes the binding.
func (st *State) Register(ctx domain.AtomicContext, name registry.Name, address asset.Address) error {
	if name == "" {
		return errors.NotValidf("empty registry name")
	}

	if address.IsZero() {
		stmt, err := st.Prepare(`
DELETE FROM registry WHERE name = $registryRow.name`, registryRow{})
		if err != nil {
			return errors.Trace(err)
		}
		return domain.Run(ctx, func(ctx context.Context, tx *sqlair.TX) error {
			return errors.Trace(tx.Query(ctx, stmt, registryRow{Name: string(name)}).Run())
		})
	}

	stmt, err := st.Prepare(`
INSERT INTO registry (name, address)
VALUES ($registryRow.name, $registryRow.address)
ON CONFLICT (name) DO UPDATE SET address = excluded.address`, registryRow{})
	if err != nil {
		return errors.Trace(err)
	}
	row := registryRow{Name: string(name), Address: address.String()}
	return domain.Run(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		return errors.Trace(tx.Query(ctx, stmt, row).Run())
	})
}

// Resolve returns the address bound to the name.
func (st *State) Resolve(ctx domain.AtomicContext, name registry.Name) (asset.Address, error) {
	stmt, err := st.Prepare(`
SELECT &registryRow.* FROM registry WHERE name = $registryRow.name`, registryRow{})
	if err != nil {
		return "", errors.Trace(err)
	}

	var row registryRow
	err = domain.Run(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		err := tx.Query(ctx, stmt, registryRow{Name: string(name)}).Get(&row)
		if errors.Is(err, sqlair.ErrNoRows) {
			return errors.Annotatef(registryerrors.NameNotFound, "%q", name)
		}
		return errors.Trace(err)
	})
	if err != nil {
		return "", errors.Trace(err)
	}
	return asset.Address(row.Address), nil
}
