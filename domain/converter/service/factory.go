// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package service

import (
	"github.com/juju/errors"

	"github.com/poolferry/poolferry/core/asset"
	"github.com/poolferry/poolferry/core/converter"
	"github.com/poolferry/poolferry/domain"
)

// CreatorState provisions converter records.
type CreatorState interface {
	Create(ctx domain.AtomicContext, settings converter.Settings) error
}

// Factory provisions fresh converters. A new converter starts out
// administered by the factory with the requester nominated, so the
// requester must accept ownership before it can configure anything.
type Factory struct {
	address    asset.Address
	version    string
	converters CreatorState
}

// NewFactory returns a factory minting converters at the given build
// version.
func NewFactory(address asset.Address, version string, converters CreatorState) (*Factory, error) {
	if address.IsZero() {
		return nil, errors.NotValidf("factory with zero address")
	}
	if version == "" {
		return nil, errors.NotValidf("factory without a version")
	}
	if converters == nil {
		return nil, errors.NotValidf("nil converter state")
	}
	return &Factory{
		address:    address,
		version:    version,
		converters: converters,
	}, nil
}

// Address returns the factory's own ledger identity.
func (f *Factory) Address() asset.Address {
	return f.address
}

// Create provisions a converter issuing the given pool token, with
// no reserves, no whitelist and a zero fee. It returns the new
// converter's address.
func (f *Factory) Create(ctx domain.AtomicContext, requester, token asset.Address, maxFee int64) (asset.Address, error) {
	if requester.IsZero() {
		return "", errors.NotValidf("provisioning for the zero address")
	}

	address, err := asset.NewAddress()
	if err != nil {
		return "", errors.Trace(err)
	}
	err = f.converters.Create(ctx, converter.Settings{
		Address:      address,
		Owner:        f.address,
		PendingOwner: requester,
		Token:        token,
		Version:      f.version,
		MaxFee:       maxFee,
	})
	if err != nil {
		return "", errors.Trace(err)
	}
	return address, nil
}
