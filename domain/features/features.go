// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package features models the per instance capability flags
// published by the contract features registry. Callers probe an
// instance's flags before relying on optional behaviour.
package features

import "fmt"

// Feature identifies one optional capability an instance can
// advertise.
type Feature int64

const (
	// ConversionWhitelist marks instances able to restrict
	// conversions to a whitelisted address.
	ConversionWhitelist Feature = 1
)

// String is the name the feature goes by in configuration and ledger
// documents.
func (f Feature) String() string {
	if f == ConversionWhitelist {
		return "conversion-whitelist"
	}
	return fmt.Sprintf("feature-%d", int64(f))
}

// ParseFeature converts a feature name to its constant.
func ParseFeature(name string) (Feature, bool) {
	if name == ConversionWhitelist.String() {
		return ConversionWhitelist, true
	}
	return 0, false
}
