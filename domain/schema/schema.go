// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package schema defines the ledger database schema. The tables
// model the on ledger world the migration orchestrator works in:
// owned entities, converters and their reserves, tokens, balances,
// the name registry and the per instance feature flags.
package schema

import "github.com/poolferry/poolferry/core/database"

// LedgerDDL is used to create the ledger database schema at agent
// start up.
func LedgerDDL() []database.Delta {
	schemas := []func() database.Delta{
		entitySchema,
		converterSchema,
		reserveSchema,
		tokenSchema,
		balanceSchema,
		registrySchema,
		featureSchema,
	}

	var deltas []database.Delta
	for _, fn := range schemas {
		deltas = append(deltas, fn())
	}

	return deltas
}

func entitySchema() database.Delta {
	return database.MakeDelta(`
CREATE TABLE IF NOT EXISTS entity (
    address        TEXT PRIMARY KEY,
    kind           TEXT NOT NULL,
    owner          TEXT NOT NULL,
    pending_owner  TEXT NOT NULL DEFAULT '',
    CONSTRAINT     chk_entity_kind
        CHECK (kind IN ('converter', 'token', 'guard'))
);
`)
}

func converterSchema() database.Delta {
	return database.MakeDelta(`
CREATE TABLE IF NOT EXISTS converter (
    address    TEXT PRIMARY KEY,
    token      TEXT NOT NULL,
    version    TEXT NOT NULL,
    max_fee    INT NOT NULL,
    fee        INT NOT NULL DEFAULT 0,
    whitelist  TEXT NOT NULL DEFAULT '',
    CONSTRAINT fk_converter_entity
        FOREIGN KEY (address)
        REFERENCES  entity(address),
    CONSTRAINT chk_converter_max_fee
        CHECK (max_fee >= 0 AND max_fee <= 1000000),
    CONSTRAINT chk_converter_fee
        CHECK (fee >= 0 AND fee <= max_fee)
);
`)
}

func reserveSchema() database.Delta {
	return database.MakeDelta(`
CREATE TABLE IF NOT EXISTS reserve (
    converter        TEXT NOT NULL,
    idx              INT NOT NULL,
    asset            TEXT NOT NULL,
    weight           INT NOT NULL,
    virtual_balance  INT NOT NULL DEFAULT 0,
    is_active        BOOLEAN NOT NULL DEFAULT TRUE,
    CONSTRAINT pk_reserve
        PRIMARY KEY (converter, asset),
    CONSTRAINT fk_reserve_converter
        FOREIGN KEY (converter)
        REFERENCES  converter(address),
    CONSTRAINT chk_reserve_weight
        CHECK (weight > 0 AND weight <= 1000000),
    CONSTRAINT chk_reserve_virtual_balance
        CHECK (virtual_balance >= 0)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_reserve_converter_idx
ON reserve (converter, idx);
`)
}

func tokenSchema() database.Delta {
	return database.MakeDelta(`
CREATE TABLE IF NOT EXISTS token (
    address  TEXT PRIMARY KEY,
    symbol   TEXT NOT NULL,
    kind     TEXT NOT NULL,
    CONSTRAINT fk_token_entity
        FOREIGN KEY (address)
        REFERENCES  entity(address),
    CONSTRAINT chk_token_kind
        CHECK (kind IN ('standard', 'wrapped-native', 'pool'))
);
`)
}

func balanceSchema() database.Delta {
	// No foreign keys here. The asset column may hold the native
	// sentinel, and holders may be externally owned administrators,
	// neither of which appear in the entity table.
	return database.MakeDelta(`
CREATE TABLE IF NOT EXISTS balance (
    asset   TEXT NOT NULL,
    holder  TEXT NOT NULL,
    amount  INT NOT NULL DEFAULT 0,
    CONSTRAINT pk_balance
        PRIMARY KEY (asset, holder),
    CONSTRAINT chk_balance_amount
        CHECK (amount >= 0)
);
`)
}

func registrySchema() database.Delta {
	return database.MakeDelta(`
CREATE TABLE IF NOT EXISTS registry (
    name     TEXT PRIMARY KEY,
    address  TEXT NOT NULL
);
`)
}

func featureSchema() database.Delta {
	return database.MakeDelta(`
CREATE TABLE IF NOT EXISTS feature (
    address     TEXT NOT NULL,
    feature_id  INT NOT NULL,
    CONSTRAINT pk_feature
        PRIMARY KEY (address, feature_id)
);
`)
}
