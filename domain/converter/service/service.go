// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package service exposes converter operations to the outer
// surfaces. Each operation here runs in its own ledger transaction;
// the migration orchestrator, which needs many operations inside one
// transaction, drives the state layer directly instead.
package service

import (
	"context"

	"github.com/juju/errors"

	"github.com/poolferry/poolferry/core/asset"
	"github.com/poolferry/poolferry/core/converter"
	coredatabase "github.com/poolferry/poolferry/core/database"
	"github.com/poolferry/poolferry/domain"
	ownederrors "github.com/poolferry/poolferry/domain/owned/errors"
)

// State describes the converter persistence the service drives.
type State interface {
	Settings(ctx domain.AtomicContext, address asset.Address) (converter.Settings, error)
}

// OwnedState drives the two phase ownership machinery for converters
// and their pool tokens.
type OwnedState interface {
	TransferOwnership(ctx domain.AtomicContext, caller, address, newOwner asset.Address) error
	AcceptOwnership(ctx domain.AtomicContext, caller, address asset.Address) error
}

// TokenState reads the balances behind a converter's reserve set.
type TokenState interface {
	Balance(ctx domain.AtomicContext, assetID, holder asset.Address) (int64, error)
}

// Service exposes single operation converter calls.
type Service struct {
	st         *domain.StateBase
	converters State
	owned      OwnedState
	tokens     TokenState
}

// NewService returns a converter service backed by the given states.
func NewService(factory coredatabase.TxnRunnerFactory, converters State, owned OwnedState, tokens TokenState) *Service {
	return &Service{
		st:         domain.NewStateBase(factory),
		converters: converters,
		owned:      owned,
		tokens:     tokens,
	}
}

// Settings returns a consistent snapshot of the converter's
// configuration.
func (s *Service) Settings(ctx context.Context, address asset.Address) (converter.Settings, error) {
	var settings converter.Settings
	err := s.st.RunAtomic(ctx, func(ctx domain.AtomicContext) error {
		var err error
		settings, err = s.converters.Settings(ctx, address)
		return errors.Trace(err)
	})
	return settings, errors.Trace(err)
}

// Position returns the converter's settings together with its actual
// reserve holdings, all read in one transaction.
func (s *Service) Position(ctx context.Context, address asset.Address) (converter.Position, error) {
	var position converter.Position
	err := s.st.RunAtomic(ctx, func(ctx domain.AtomicContext) error {
		settings, err := s.converters.Settings(ctx, address)
		if err != nil {
			return errors.Trace(err)
		}
		position = converter.Position{
			Settings: settings,
			Holdings: make(map[asset.Address]int64, len(settings.Reserves)),
		}
		for _, r := range settings.Reserves {
			held, err := s.tokens.Balance(ctx, r.Asset, address)
			if err != nil {
				return errors.Trace(err)
			}
			position.Holdings[r.Asset] = held
		}
		return nil
	})
	return position, errors.Trace(err)
}

// TransferOwnership nominates newOwner as the converter's next
// administrator. Control changes hands only when the nominee
// accepts.
func (s *Service) TransferOwnership(ctx context.Context, caller, address, newOwner asset.Address) error {
	return s.st.RunAtomic(ctx, func(ctx domain.AtomicContext) error {
		if _, err := s.converters.Settings(ctx, address); err != nil {
			return errors.Trace(err)
		}
		return errors.Trace(s.owned.TransferOwnership(ctx, caller, address, newOwner))
	})
}

// AcceptOwnership completes a two phase ownership transfer of the
// converter. The caller must hold the outstanding nomination.
func (s *Service) AcceptOwnership(ctx context.Context, caller, address asset.Address) error {
	return s.st.RunAtomic(ctx, func(ctx domain.AtomicContext) error {
		if _, err := s.converters.Settings(ctx, address); err != nil {
			return errors.Trace(err)
		}
		return errors.Trace(s.owned.AcceptOwnership(ctx, caller, address))
	})
}

// TransferTokenOwnership has the converter nominate a new
// administrator for its pool token. The caller must administer the
// converter, and the converter must currently administer the token.
func (s *Service) TransferTokenOwnership(ctx context.Context, caller, address, to asset.Address) error {
	return s.st.RunAtomic(ctx, func(ctx domain.AtomicContext) error {
		settings, err := s.converters.Settings(ctx, address)
		if err != nil {
			return errors.Trace(err)
		}
		if settings.Owner != caller {
			return errors.Annotatef(ownederrors.NotOwner, "%q of %q", caller, address)
		}
		// The converter acts on its own token here, not the caller.
		return errors.Trace(s.owned.TransferOwnership(ctx, address, settings.Token, to))
	})
}

// AcceptTokenOwnership has the converter accept an outstanding
// nomination on its pool token, making it the token's sole
// administrator. The caller must administer the converter.
func (s *Service) AcceptTokenOwnership(ctx context.Context, caller, address asset.Address) error {
	return s.st.RunAtomic(ctx, func(ctx domain.AtomicContext) error {
		settings, err := s.converters.Settings(ctx, address)
		if err != nil {
			return errors.Trace(err)
		}
		if settings.Owner != caller {
			return errors.Annotatef(ownederrors.NotOwner, "%q of %q", caller, address)
		}
		return errors.Trace(s.owned.AcceptOwnership(ctx, address, settings.Token))
	})
}
