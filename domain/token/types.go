// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package token models token contracts and the balances held in
// them. Balances are keyed by (asset, holder), and the asset side of
// the key may be the native sentinel, which has no contract of its
// own. Moving funds out of a holder is gated on the holder itself or
// on its administrator, which is how a migration orchestrator that
// has accepted ownership of a converter gets to drain it.
package token

import (
	"github.com/poolferry/poolferry/core/asset"
)

// Token describes one token contract on the ledger.
type Token struct {
	// Address is the contract's identity on the ledger.
	Address asset.Address

	// Symbol is the contract's display symbol.
	Symbol string

	// Kind says how the token relates to the native asset. Pool
	// tokens are issued by converters, wrapped native tokens are
	// redeemable one for one against native value.
	Kind asset.Kind

	// Owner is the contract's administrator.
	Owner asset.Address
}
