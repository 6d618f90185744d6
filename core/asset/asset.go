// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package asset holds the ledger level vocabulary shared by the
// converter, token and migration packages: entity addresses, the
// native asset sentinel, and the fixed point units used for reserve
// weights and conversion fees.
package asset

// PPMResolution is the resolution of the parts per million fixed
// point representation used for reserve weights and conversion fees.
// A weight of PPMResolution is 100%.
const PPMResolution = 1000000

const (
	// MaxWeight is the largest legal reserve weight.
	MaxWeight = PPMResolution

	// MaxFee is the ceiling a converter may impose on its
	// conversion fee.
	MaxFee = PPMResolution
)

// Kind classifies how an asset is represented on the ledger, which
// determines how value denominated in it must be moved.
type Kind string

const (
	// KindStandard is an ordinary token contract.
	KindStandard Kind = "standard"

	// KindWrappedNative is a token contract whose balances are
	// redeemable one for one against the native asset.
	KindWrappedNative Kind = "wrapped-native"

	// KindPool is a token issued by a converter against its
	// reserves. Pool tokens are administered by their converter.
	KindPool Kind = "pool"

	// KindNative is the native asset itself, identified by the
	// Native sentinel. It has no token contract.
	KindNative Kind = "native"
)

// IsValid reports whether the kind is one of the known values.
func (k Kind) IsValid() bool {
	switch k {
	case KindStandard, KindWrappedNative, KindPool, KindNative:
		return true
	}
	return false
}

// Classify resolves how value denominated in the given asset must be
// moved. The native asset appears on converters in two indirect
// forms, the sentinel address and balances held in the wrapper token,
// and both resolve to a native position on a freshly provisioned
// converter.
func Classify(a, wrapper Address) Kind {
	switch {
	case a == Native:
		return KindNative
	case !wrapper.IsZero() && a == wrapper:
		return KindWrappedNative
	}
	return KindStandard
}
