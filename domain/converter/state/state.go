// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package state

import (
	"context"

	"github.com/canonical/sqlair"
	"github.com/juju/errors"

	"github.com/poolferry/poolferry/core/asset"
	"github.com/poolferry/poolferry/core/converter"
	coredatabase "github.com/poolferry/poolferry/core/database"
	"github.com/poolferry/poolferry/domain"
	convertererrors "github.com/poolferry/poolferry/domain/converter/errors"
	ownederrors "github.com/poolferry/poolferry/domain/owned/errors"
	"github.com/poolferry/poolferry/internal/database"
)

// State provides persistence for converters and their reserves.
type State struct {
	*domain.StateBase
}

// NewState returns a new State for interacting with converters.
func NewState(factory coredatabase.TxnRunnerFactory) *State {
	return &State{
		StateBase: domain.NewStateBase(factory),
	}
}

// Create provisions a converter on the ledger, writing both its
// entity record and its configuration. Reserves are registered
// individually afterwards.
func (st *State) Create(ctx domain.AtomicContext, settings converter.Settings) error {
	if settings.Address.IsZero() {
		return errors.NotValidf("converter with zero address")
	}
	if settings.Owner.IsZero() {
		return errors.NotValidf("converter %q with zero administrator", settings.Address)
	}
	if settings.Token.IsZero() {
		return errors.NotValidf("converter %q without a pool token", settings.Address)
	}
	if settings.Token == settings.Address {
		return errors.NotValidf("converter %q issuing itself", settings.Address)
	}
	if settings.Version == "" {
		return errors.NotValidf("converter %q without a version", settings.Address)
	}
	if settings.MaxFee < 0 || settings.MaxFee > asset.MaxFee {
		return errors.NotValidf("fee ceiling %d", settings.MaxFee)
	}
	if settings.Fee < 0 || settings.Fee > settings.MaxFee {
		return errors.NotValidf("fee %d with ceiling %d", settings.Fee, settings.MaxFee)
	}
	if len(settings.Reserves) != 0 {
		return errors.NotValidf("reserves on an unprovisioned converter")
	}

	entityStmt, err := st.Prepare(`
INSERT INTO entity (address, kind, owner, pending_owner)
VALUES ($entityRow.address, $entityRow.kind, $entityRow.owner, $entityRow.pending_owner)`, entityRow{})
	if err != nil {
		return errors.Trace(err)
	}
	converterStmt, err := st.Prepare(`
INSERT INTO converter (address, token, version, max_fee, fee, whitelist)
VALUES ($converterRow.address, $converterRow.token, $converterRow.version,
        $converterRow.max_fee, $converterRow.fee, $converterRow.whitelist)`, converterRow{})
	if err != nil {
		return errors.Trace(err)
	}

	entity := entityRow{
		Address: settings.Address.String(),
		Kind:    "converter",
		Owner:   settings.Owner.String(),
	}
	if !settings.PendingOwner.IsZero() {
		entity.PendingOwner = settings.PendingOwner.String()
	}
	row := converterRow{
		Address: settings.Address.String(),
		Token:   settings.Token.String(),
		Version: settings.Version,
		MaxFee:  settings.MaxFee,
		Fee:     settings.Fee,
	}
	if !settings.Whitelist.IsZero() {
		row.Whitelist = settings.Whitelist.String()
	}
	return domain.Run(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		err := tx.Query(ctx, entityStmt, entity).Run()
		if database.IsErrConstraintUnique(err) {
			return errors.AlreadyExistsf("converter %q", settings.Address)
		} else if err != nil {
			return errors.Trace(err)
		}
		return errors.Trace(tx.Query(ctx, converterStmt, row).Run())
	})
}

// Settings returns a consistent snapshot of the converter's
// configuration, reserves in registration order.
func (st *State) Settings(ctx domain.AtomicContext, address asset.Address) (converter.Settings, error) {
	reservesStmt, err := st.Prepare(`
SELECT   &reserveRow.*
FROM     reserve
WHERE    converter = $reserveRow.converter
ORDER BY idx`, reserveRow{})
	if err != nil {
		return converter.Settings{}, errors.Trace(err)
	}

	var (
		row  converterRow
		rows []reserveRow
	)
	err = domain.Run(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		var err error
		if row, err = st.converter(ctx, tx, address); err != nil {
			return errors.Trace(err)
		}
		err = tx.Query(ctx, reservesStmt, reserveRow{Converter: address.String()}).GetAll(&rows)
		if errors.Is(err, sqlair.ErrNoRows) {
			return nil
		}
		return errors.Trace(err)
	})
	if err != nil {
		return converter.Settings{}, errors.Trace(err)
	}

	var reserves []converter.Reserve
	for _, r := range rows {
		reserves = append(reserves, r.toReserve())
	}
	return row.toSettings(reserves), nil
}

// AddReserve registers a new reserve on the converter with the given
// weight. Reserves are enumerated in registration order, and an
// asset may appear at most once.
func (st *State) AddReserve(ctx domain.AtomicContext, caller, address, reserveAsset asset.Address, weight int64) error {
	if reserveAsset.IsZero() {
		return errors.NotValidf("reserve with zero asset")
	}
	if reserveAsset == address {
		return errors.NotValidf("converter %q as its own reserve", address)
	}
	if weight <= 0 || weight > asset.MaxWeight {
		return errors.NotValidf("reserve weight %d", weight)
	}

	tallyStmt, err := st.Prepare(`
SELECT count(*) AS &reserveTally.count, IFNULL(SUM(weight), 0) AS &reserveTally.total
FROM   reserve
WHERE  converter = $reserveRow.converter`, reserveTally{}, reserveRow{})
	if err != nil {
		return errors.Trace(err)
	}
	insertStmt, err := st.Prepare(`
INSERT INTO reserve (converter, idx, asset, weight, virtual_balance, is_active)
VALUES ($reserveRow.converter, $reserveRow.idx, $reserveRow.asset,
        $reserveRow.weight, $reserveRow.virtual_balance, $reserveRow.is_active)`, reserveRow{})
	if err != nil {
		return errors.Trace(err)
	}

	return domain.Run(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		row, err := st.authorized(ctx, tx, caller, address)
		if err != nil {
			return errors.Trace(err)
		}
		if reserveAsset == asset.Address(row.Token) {
			return errors.NotValidf("pool token %q as a reserve", row.Token)
		}

		var tally reserveTally
		if err := tx.Query(ctx, tallyStmt, reserveRow{Converter: address.String()}).Get(&tally); err != nil {
			return errors.Trace(err)
		}
		if tally.Total+weight > asset.MaxWeight {
			return errors.NotValidf("total reserve weight %d above %d", tally.Total+weight, asset.MaxWeight)
		}

		err = tx.Query(ctx, insertStmt, reserveRow{
			Converter: address.String(),
			Idx:       tally.Count,
			Asset:     reserveAsset.String(),
			Weight:    weight,
			Active:    true,
		}).Run()
		if database.IsErrConstraintUnique(err) {
			return errors.AlreadyExistsf("reserve %q on %q", reserveAsset, address)
		}
		return errors.Trace(err)
	})
}

// SetVirtualBalance configures the balance used for rate
// calculations on the given reserve in place of its actual holding.
func (st *State) SetVirtualBalance(ctx domain.AtomicContext, caller, address, reserveAsset asset.Address, balance int64) error {
	if balance < 0 {
		return errors.NotValidf("virtual balance %d", balance)
	}

	stmt, err := st.Prepare(`
UPDATE reserve SET virtual_balance = $reserveRow.virtual_balance
WHERE  converter = $reserveRow.converter AND asset = $reserveRow.asset`, reserveRow{})
	if err != nil {
		return errors.Trace(err)
	}

	return domain.Run(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		if _, err := st.authorized(ctx, tx, caller, address); err != nil {
			return errors.Trace(err)
		}

		var outcome sqlair.Outcome
		row := reserveRow{
			Converter:      address.String(),
			Asset:          reserveAsset.String(),
			VirtualBalance: balance,
		}
		if err := tx.Query(ctx, stmt, row).Get(&outcome); err != nil {
			return errors.Trace(err)
		}
		affected, err := outcome.Result().RowsAffected()
		if err != nil {
			return errors.Trace(err)
		}
		if affected == 0 {
			return errors.Annotatef(convertererrors.ReserveNotFound, "%q on %q", reserveAsset, address)
		}
		return nil
	})
}

// SetFee sets the conversion fee, bounded by the ceiling fixed at
// provisioning time.
func (st *State) SetFee(ctx domain.AtomicContext, caller, address asset.Address, fee int64) error {
	if fee < 0 {
		return errors.NotValidf("fee %d", fee)
	}

	stmt, err := st.Prepare(`
UPDATE converter SET fee = $converterRow.fee
WHERE  address = $converterRow.address`, converterRow{})
	if err != nil {
		return errors.Trace(err)
	}

	return domain.Run(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		row, err := st.authorized(ctx, tx, caller, address)
		if err != nil {
			return errors.Trace(err)
		}
		if fee > row.MaxFee {
			return errors.NotValidf("fee %d above ceiling %d", fee, row.MaxFee)
		}
		update := converterRow{Address: address.String(), Fee: fee}
		return errors.Trace(tx.Query(ctx, stmt, update).Run())
	})
}

// SetWhitelist sets the address allowed to convert. The zero address
// clears the whitelist.
func (st *State) SetWhitelist(ctx domain.AtomicContext, caller, address, whitelist asset.Address) error {
	stmt, err := st.Prepare(`
UPDATE converter SET whitelist = $converterRow.whitelist
WHERE  address = $converterRow.address`, converterRow{})
	if err != nil {
		return errors.Trace(err)
	}

	return domain.Run(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		if _, err := st.authorized(ctx, tx, caller, address); err != nil {
			return errors.Trace(err)
		}
		update := converterRow{Address: address.String()}
		if !whitelist.IsZero() {
			update.Whitelist = whitelist.String()
		}
		return errors.Trace(tx.Query(ctx, stmt, update).Run())
	})
}

// converter reads the joined converter and entity record, failing
// with ConverterNotFound when there is no such converter.
func (st *State) converter(ctx context.Context, tx *sqlair.TX, address asset.Address) (converterRow, error) {
	stmt, err := st.Prepare(`
SELECT (c.address, c.token, c.version, c.max_fee, c.fee, c.whitelist,
        e.owner, e.pending_owner) AS (&converterRow.*)
FROM   converter AS c
       JOIN entity AS e ON e.address = c.address
WHERE  c.address = $converterRow.address`, converterRow{})
	if err != nil {
		return converterRow{}, errors.Trace(err)
	}

	var row converterRow
	err = tx.Query(ctx, stmt, converterRow{Address: address.String()}).Get(&row)
	if errors.Is(err, sqlair.ErrNoRows) {
		return converterRow{}, errors.Annotatef(convertererrors.ConverterNotFound, "%q", address)
	} else if err != nil {
		return converterRow{}, errors.Trace(err)
	}
	return row, nil
}

// authorized reads the converter and checks that the caller is its
// administrator.
func (st *State) authorized(ctx context.Context, tx *sqlair.TX, caller, address asset.Address) (converterRow, error) {
	row, err := st.converter(ctx, tx, address)
	if err != nil {
		return converterRow{}, errors.Trace(err)
	}
	if asset.Address(row.Owner) != caller {
		return converterRow{}, errors.Annotatef(ownederrors.NotOwner, "%q of %q", caller, address)
	}
	return row, nil
}
