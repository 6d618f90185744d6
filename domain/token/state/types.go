// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package state

import (
	"github.com/poolferry/poolferry/core/asset"
	"github.com/poolferry/poolferry/domain/token"
)

// tokenRow is the database representation of a token contract,
// joined with its entity record for the administrator.
type tokenRow struct {
	Address string `db:"address"`
	Symbol  string `db:"symbol"`
	Kind    string `db:"kind"`
	Owner   string `db:"owner"`
}

func (r tokenRow) toToken() token.Token {
	return token.Token{
		Address: asset.Address(r.Address),
		Symbol:  r.Symbol,
		Kind:    asset.Kind(r.Kind),
		Owner:   asset.Address(r.Owner),
	}
}

// entityRow is the slice of the entity table written when a token
// contract is registered.
type entityRow struct {
	Address string `db:"address"`
	Kind    string `db:"kind"`
	Owner   string `db:"owner"`
}

// entityOwnerRow resolves a holder to its administrator.
type entityOwnerRow struct {
	Address string `db:"address"`
	Owner   string `db:"owner"`
}

// balanceRow is the database representation of one holder's balance
// of one asset.
type balanceRow struct {
	Asset  string `db:"asset"`
	Holder string `db:"holder"`
	Amount int64  `db:"amount"`
}
