// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package service implements the resource access guard, the owner
// gated sweep primitive for recovering misdirected funds. The same
// primitive is inherited by every owned entity that holds balances,
// converters included.
package service

import (
	"context"

	"github.com/juju/errors"

	"github.com/poolferry/poolferry/core/asset"
	coredatabase "github.com/poolferry/poolferry/core/database"
	"github.com/poolferry/poolferry/domain"
	"github.com/poolferry/poolferry/domain/owned"
	ownederrors "github.com/poolferry/poolferry/domain/owned/errors"
	"github.com/poolferry/poolferry/domain/token"
)

// OwnedState provides the ownership records the guard checks before
// moving anything.
type OwnedState interface {
	Entity(ctx domain.AtomicContext, address asset.Address) (owned.Entity, error)
}

// TokenState moves balances on the guard's behalf.
type TokenState interface {
	Token(ctx domain.AtomicContext, address asset.Address) (token.Token, error)
	Withdraw(ctx domain.AtomicContext, caller, holder, assetID, to asset.Address, amount int64) error
}

// Service exposes the guard's one operation. Each call runs in its
// own ledger transaction, so a failed sweep has no effect at all.
type Service struct {
	st     *domain.StateBase
	owned  OwnedState
	tokens TokenState
}

// NewService returns a guard service backed by the given states.
func NewService(factory coredatabase.TxnRunnerFactory, owned OwnedState, tokens TokenState) *Service {
	return &Service{
		st:     domain.NewStateBase(factory),
		owned:  owned,
		tokens: tokens,
	}
}

// Withdraw sweeps amount of the given asset out of the guard to the
// destination. Only the guard's administrator may sweep. The native
// sentinel moves as a direct value transfer; anything else must be a
// registered token contract, though the transfer call is only
// required not to abort, not to return a value.
func (s *Service) Withdraw(ctx context.Context, caller, guard, assetID, destination asset.Address, amount int64) error {
	if assetID.IsZero() {
		return errors.NotValidf("withdrawing the zero asset")
	}
	if destination.IsZero() {
		return errors.NotValidf("withdrawing to the zero address")
	}
	if destination == guard {
		return errors.NotValidf("withdrawing %q to itself", guard)
	}
	return s.st.RunAtomic(ctx, func(ctx domain.AtomicContext) error {
		entity, err := s.owned.Entity(ctx, guard)
		if err != nil {
			return errors.Trace(err)
		}
		if entity.Owner != caller {
			return errors.Annotatef(ownederrors.NotOwner, "%q of %q", caller, guard)
		}
		if assetID != asset.Native {
			if _, err := s.tokens.Token(ctx, assetID); err != nil {
				return errors.Trace(err)
			}
		}
		return errors.Trace(s.tokens.Withdraw(ctx, caller, guard, assetID, destination, amount))
	})
}
