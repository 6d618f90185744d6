// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package registry models the name registry through which the well
// known service contracts find one another. Entries are expected to
// be re-registered as contracts are upgraded, which is the whole
// point of indirecting through names.
package registry

// Name identifies one well known registry entry.
type Name string

const (
	// ConverterFactory locates the factory that provisions fresh
	// converters.
	ConverterFactory Name = "converter-factory"

	// ContractFeatures locates the feature flag contract.
	ContractFeatures Name = "contract-features"

	// ConverterUpgrader locates the migration orchestrator.
	ConverterUpgrader Name = "converter-upgrader"

	// NativeWrapper locates the wrapped native token contract.
	NativeWrapper Name = "native-wrapper"
)
