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
	ownederrors "github.com/poolferry/poolferry/domain/owned/errors"
	"github.com/poolferry/poolferry/domain/token"
	tokenerrors "github.com/poolferry/poolferry/domain/token/errors"
	"github.com/poolferry/poolferry/internal/database"
)

// State provides persistence for token contracts and balances.
type State struct {
	*domain.StateBase
}

// NewState returns a new State for interacting with tokens.
func NewState(factory coredatabase.TxnRunnerFactory) *State {
	return &State{
		StateBase: domain.NewStateBase(factory),
	}
}

// CreateToken registers a token contract on the ledger, writing both
// its entity record and its contract record.
func (st *State) CreateToken(ctx domain.AtomicContext, tok token.Token) error {
	if tok.Address.IsZero() {
		return errors.NotValidf("token with zero address")
	}
	if tok.Symbol == "" {
		return errors.NotValidf("token %q without a symbol", tok.Address)
	}
	if tok.Owner.IsZero() {
		return errors.NotValidf("token %q with zero administrator", tok.Address)
	}
	switch tok.Kind {
	case asset.KindStandard, asset.KindWrappedNative, asset.KindPool:
	default:
		// The native asset has no contract, so it cannot be
		// registered as one.
		return errors.NotValidf("token kind %q", tok.Kind)
	}

	entityStmt, err := st.Prepare(`
INSERT INTO entity (address, kind, owner)
VALUES ($entityRow.address, $entityRow.kind, $entityRow.owner)`, entityRow{})
	if err != nil {
		return errors.Trace(err)
	}
	tokenStmt, err := st.Prepare(`
INSERT INTO token (address, symbol, kind)
VALUES ($tokenRow.address, $tokenRow.symbol, $tokenRow.kind)`, tokenRow{})
	if err != nil {
		return errors.Trace(err)
	}

	return domain.Run(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		err := tx.Query(ctx, entityStmt, entityRow{
			Address: tok.Address.String(),
			Kind:    "token",
			Owner:   tok.Owner.String(),
		}).Run()
		if database.IsErrConstraintUnique(err) {
			return errors.AlreadyExistsf("token %q", tok.Address)
		} else if err != nil {
			return errors.Trace(err)
		}
		return errors.Trace(tx.Query(ctx, tokenStmt, tokenRow{
			Address: tok.Address.String(),
			Symbol:  tok.Symbol,
			Kind:    string(tok.Kind),
		}).Run())
	})
}

// Token returns the contract record for the given address.
func (st *State) Token(ctx domain.AtomicContext, address asset.Address) (token.Token, error) {
	stmt, err := st.Prepare(`
SELECT (t.address, t.symbol, t.kind, e.owner) AS (&tokenRow.*)
FROM   token AS t
       JOIN entity AS e ON e.address = t.address
WHERE  t.address = $tokenRow.address`, tokenRow{})
	if err != nil {
		return token.Token{}, errors.Trace(err)
	}

	var row tokenRow
	err = domain.Run(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		err := tx.Query(ctx, stmt, tokenRow{Address: address.String()}).Get(&row)
		if errors.Is(err, sqlair.ErrNoRows) {
			return errors.Annotatef(tokenerrors.TokenNotFound, "%q", address)
		}
		return errors.Trace(err)
	})
	if err != nil {
		return token.Token{}, errors.Trace(err)
	}
	return row.toToken(), nil
}

// Balance returns how much of the given asset the holder has. A
// holder with no balance record holds zero.
func (st *State) Balance(ctx domain.AtomicContext, assetID, holder asset.Address) (int64, error) {
	var held int64
	err := domain.Run(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		var err error
		held, err = st.amount(ctx, tx, assetID, holder)
		return errors.Trace(err)
	})
	return held, errors.Trace(err)
}

// Transfer moves amount of the given asset from one holder to
// another. Moving more than the holder has aborts with
// InsufficientFunds, the ledger's rendering of a failing external
// transfer call.
func (st *State) Transfer(ctx domain.AtomicContext, assetID, from, to asset.Address, amount int64) error {
	if err := validMovement(assetID, from, to, amount); err != nil {
		return errors.Trace(err)
	}
	return domain.Run(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		if err := st.debit(ctx, tx, assetID, from, amount); err != nil {
			return errors.Trace(err)
		}
		return errors.Trace(st.credit(ctx, tx, assetID, to, amount))
	})
}

// Withdraw instructs the holder to push amount of the given asset to
// the destination. The caller must be the holder itself or its
// administrator; this is how the migration orchestrator drains a
// converter it has taken ownership of, and how a guard's
// administrator sweeps misdirected funds.
func (st *State) Withdraw(ctx domain.AtomicContext, caller, holder, assetID, to asset.Address, amount int64) error {
	if err := validMovement(assetID, holder, to, amount); err != nil {
		return errors.Trace(err)
	}
	return domain.Run(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		if err := st.authorize(ctx, tx, caller, holder); err != nil {
			return errors.Trace(err)
		}
		if err := st.debit(ctx, tx, assetID, holder, amount); err != nil {
			return errors.Trace(err)
		}
		return errors.Trace(st.credit(ctx, tx, assetID, to, amount))
	})
}

// Issue mints amount of the given asset to the recipient. For token
// contracts the caller must be the contract's administrator. The
// native sentinel has no issuing contract; bootstrap credits it
// directly.
func (st *State) Issue(ctx domain.AtomicContext, caller, assetID, to asset.Address, amount int64) error {
	if assetID.IsZero() {
		return errors.NotValidf("issuing the zero asset")
	}
	if to.IsZero() {
		return errors.NotValidf("issuing to the zero address")
	}
	if amount < 0 {
		return errors.NotValidf("issuing a negative amount %d", amount)
	}
	return domain.Run(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		if assetID != asset.Native {
			if err := st.authorize(ctx, tx, caller, assetID); err != nil {
				return errors.Trace(err)
			}
		}
		return errors.Trace(st.credit(ctx, tx, assetID, to, amount))
	})
}

// Unwrap burns amount of the holder's wrapped native balance and
// credits the same amount of native value to the destination. The
// caller must be the holder itself or its administrator. This is the
// orchestrator's second hop when moving a wrapped native reserve.
func (st *State) Unwrap(ctx domain.AtomicContext, caller, wrapper, holder, to asset.Address, amount int64) error {
	if err := validMovement(wrapper, holder, to, amount); err != nil {
		return errors.Trace(err)
	}
	return domain.Run(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		if err := st.wrappedNative(ctx, tx, wrapper); err != nil {
			return errors.Trace(err)
		}
		if err := st.authorize(ctx, tx, caller, holder); err != nil {
			return errors.Trace(err)
		}
		if err := st.debit(ctx, tx, wrapper, holder, amount); err != nil {
			return errors.Trace(err)
		}
		return errors.Trace(st.credit(ctx, tx, asset.Native, to, amount))
	})
}

// Wrap deposits amount of the holder's native balance into the
// wrapper contract, crediting the same amount of wrapped balance.
func (st *State) Wrap(ctx domain.AtomicContext, wrapper, holder asset.Address, amount int64) error {
	if wrapper.IsZero() || holder.IsZero() {
		return errors.NotValidf("wrapping with a zero address")
	}
	if amount < 0 {
		return errors.NotValidf("wrapping a negative amount %d", amount)
	}
	return domain.Run(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		if err := st.wrappedNative(ctx, tx, wrapper); err != nil {
			return errors.Trace(err)
		}
		if err := st.debit(ctx, tx, asset.Native, holder, amount); err != nil {
			return errors.Trace(err)
		}
		return errors.Trace(st.credit(ctx, tx, wrapper, holder, amount))
	})
}

func validMovement(assetID, from, to asset.Address, amount int64) error {
	if assetID.IsZero() {
		return errors.NotValidf("moving the zero asset")
	}
	if from.IsZero() || to.IsZero() {
		return errors.NotValidf("moving funds involving the zero address")
	}
	if amount < 0 {
		return errors.NotValidf("moving a negative amount %d", amount)
	}
	return nil
}

// authorize checks that caller may move funds held by holder. A
// holder acting for itself needs no entity record; anything else
// requires the caller to be the holder's administrator.
func (st *State) authorize(ctx context.Context, tx *sqlair.TX, caller, holder asset.Address) error {
	if caller == holder {
		return nil
	}
	stmt, err := st.Prepare(`
SELECT &entityOwnerRow.* FROM entity WHERE address = $entityOwnerRow.address`, entityOwnerRow{})
	if err != nil {
		return errors.Trace(err)
	}
	var row entityOwnerRow
	err = tx.Query(ctx, stmt, entityOwnerRow{Address: holder.String()}).Get(&row)
	if errors.Is(err, sqlair.ErrNoRows) {
		return errors.Annotatef(ownederrors.NotOwner, "%q of %q", caller, holder)
	} else if err != nil {
		return errors.Trace(err)
	}
	if asset.Address(row.Owner) != caller {
		return errors.Annotatef(ownederrors.NotOwner, "%q of %q", caller, holder)
	}
	return nil
}

// wrappedNative checks that the given address is a registered
// wrapped native token contract.
func (st *State) wrappedNative(ctx context.Context, tx *sqlair.TX, wrapper asset.Address) error {
	stmt, err := st.Prepare(`
SELECT &tokenRow.kind FROM token WHERE address = $tokenRow.address`, tokenRow{})
	if err != nil {
		return errors.Trace(err)
	}
	var row tokenRow
	err = tx.Query(ctx, stmt, tokenRow{Address: wrapper.String()}).Get(&row)
	if errors.Is(err, sqlair.ErrNoRows) {
		return errors.Annotatef(tokenerrors.TokenNotFound, "wrapper %q", wrapper)
	} else if err != nil {
		return errors.Trace(err)
	}
	if asset.Kind(row.Kind) != asset.KindWrappedNative {
		return errors.NotValidf("%q is not the wrapped native token", wrapper)
	}
	return nil
}

func (st *State) amount(ctx context.Context, tx *sqlair.TX, assetID, holder asset.Address) (int64, error) {
	stmt, err := st.Prepare(`
SELECT &balanceRow.* FROM balance
WHERE  asset = $balanceRow.asset AND holder = $balanceRow.holder`, balanceRow{})
	if err != nil {
		return 0, errors.Trace(err)
	}
	var row balanceRow
	err = tx.Query(ctx, stmt, balanceRow{Asset: assetID.String(), Holder: holder.String()}).Get(&row)
	if errors.Is(err, sqlair.ErrNoRows) {
		return 0, nil
	} else if err != nil {
		return 0, errors.Trace(err)
	}
	return row.Amount, nil
}

func (st *State) debit(ctx context.Context, tx *sqlair.TX, assetID, holder asset.Address, amount int64) error {
	held, err := st.amount(ctx, tx, assetID, holder)
	if err != nil {
		return errors.Trace(err)
	}
	if held < amount {
		return errors.Annotatef(tokenerrors.InsufficientFunds,
			"%q holds %d of %q, need %d", holder, held, assetID, amount)
	}
	if amount == 0 {
		return nil
	}

	if held == amount {
		// A zero balance is indistinguishable from no balance, so
		// fully drained rows are removed.
		stmt, err := st.Prepare(`
DELETE FROM balance
WHERE asset = $balanceRow.asset AND holder = $balanceRow.holder`, balanceRow{})
		if err != nil {
			return errors.Trace(err)
		}
		row := balanceRow{Asset: assetID.String(), Holder: holder.String()}
		return errors.Trace(tx.Query(ctx, stmt, row).Run())
	}

	stmt, err := st.Prepare(`
UPDATE balance SET amount = $balanceRow.amount
WHERE  asset = $balanceRow.asset AND holder = $balanceRow.holder`, balanceRow{})
	if err != nil {
		return errors.Trace(err)
	}
	row := balanceRow{Asset: assetID.String(), Holder: holder.String(), Amount: held - amount}
	return errors.Trace(tx.Query(ctx, stmt, row).Run())
}

func (st *State) credit(ctx context.Context, tx *sqlair.TX, assetID, holder asset.Address, amount int64) error {
	if amount == 0 {
		return nil
	}
	stmt, err := st.Prepare(`
INSERT INTO balance (asset, holder, amount)
VALUES ($balanceRow.asset, $balanceRow.holder, $balanceRow.amount)
ON CONFLICT (asset, holder) DO UPDATE SET amount = amount + excluded.amount`, balanceRow{})
	if err != nil {
		return errors.Trace(err)
	}
	row := balanceRow{Asset: assetID.String(), Holder: holder.String(), Amount: amount}
	return errors.Trace(tx.Query(ctx, stmt, row).Run())
}
