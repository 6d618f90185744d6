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
	"github.com/poolferry/poolferry/domain/features"
)

// featureRow is the database representation of one enabled flag.
type featureRow struct {
	Address   string `db:"address"`
	FeatureID int64  `db:"feature_id"`
}

// featureCount counts matching flags.
type featureCount struct {
	Count int64 `db:"count"`
}

// State provides persistence for instance feature flags.
type State struct {
	*domain.StateBase
}

// NewState returns a new State for interacting with feature flags.
func NewState(factory coredatabase.TxnRunnerFactory) *State {
	return &State{
		StateBase: domain.NewStateBase(factory),
	}
}

// Enable turns the feature on for the instance. Enabling an already
// enabled feature is a no-op.
func (st *State) Enable(ctx domain.AtomicContext, address asset.Address, feature features.Feature) error {
	if address.IsZero() {
		return errors.NotValidf("enabling a feature on the zero address")
	}
	if feature <= 0 {
		return errors.NotValidf("feature %d", feature)
	}

	stmt, err := st.Prepare(`
INSERT INTO feature (address, feature_id)
VALUES ($featureRow.address, $featureRow.feature_id)
ON CONFLICT (address, feature_id) DO NOTHING`, featureRow{})
	if err != nil {
		return errors.Trace(err)
	}
	row := featureRow{Address: address.String(), FeatureID: int64(feature)}
	return domain.Run(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		return errors.Trace(tx.Query(ctx, stmt, row).Run())
	})
}

// Disable turns the feature off for the instance.
func (st *State) Disable(ctx domain.AtomicContext, address asset.Address, feature features.Feature) error {
	stmt, err := st.Prepare(`
DELETE FROM feature
WHERE address = $featureRow.address AND feature_id = $featureRow.feature_id`, featureRow{})
	if err != nil {
		return errors.Trace(err)
	}
	row := featureRow{Address: address.String(), FeatureID: int64(feature)}
	return domain.Run(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		return errors.Trace(tx.Query(ctx, stmt, row).Run())
	})
}

// Supports reports whether the instance has the feature enabled.
func (st *State) Supports(ctx domain.AtomicContext, address asset.Address, feature features.Feature) (bool, error) {
	stmt, err := st.Prepare(`
SELECT count(*) AS &featureCount.count
FROM   feature
WHERE  address = $featureRow.address AND feature_id = $featureRow.feature_id`, featureCount{}, featureRow{})
	if err != nil {
		return false, errors.Trace(err)
	}

	var count featureCount
	row := featureRow{Address: address.String(), FeatureID: int64(feature)}
	err = domain.Run(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		return errors.Trace(tx.Query(ctx, stmt, row).Get(&count))
	})
	if err != nil {
		return false, errors.Trace(err)
	}
	return count.Count > 0, nil
}
