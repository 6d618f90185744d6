// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package asset

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/juju/errors"
	"github.com/juju/utils/v4"
)

// Address identifies an entity on the ledger: a token, a converter, a
// guard or an externally owned administrator. Addresses are stored and
// compared in canonical form, a 0x prefix followed by 40 lower case
// hex digits.
type Address string

const (
	// Zero is the all zero address. It is never a legal entity
	// identity; operations use it to mean "unset".
	Zero Address = "0x0000000000000000000000000000000000000000"

	// Native is the reserved sentinel address the ledger uses to
	// denote the native asset, which has no token contract of its
	// own. It only ever appears as an asset identifier, never as an
	// entity.
	Native Address = "0xeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee"
)

const addressLen = 42

// ParseAddress returns the canonical form of the supplied address, or
// an error if it is not a well formed 0x prefixed 20 byte hex string.
func ParseAddress(s string) (Address, error) {
	if len(s) != addressLen || (s[:2] != "0x" && s[:2] != "0X") {
		return "", errors.NotValidf("address %q", s)
	}
	body := strings.ToLower(s[2:])
	if _, err := hex.DecodeString(body); err != nil {
		return "", errors.NotValidf("address %q", s)
	}
	return Address("0x" + body), nil
}

// NewAddress returns a fresh, effectively unique address for a newly
// provisioned entity.
func NewAddress() (Address, error) {
	uuid, err := utils.NewUUID()
	if err != nil {
		return "", errors.Trace(err)
	}
	sum := sha256.Sum256([]byte(uuid.String()))
	return Address("0x" + hex.EncodeToString(sum[:20])), nil
}

// String is part of fmt.Stringer.
func (a Address) String() string {
	return string(a)
}

// IsZero reports whether the address is unset.
func (a Address) IsZero() bool {
	return a == "" || a == Zero
}

// Validate returns an error if the address is not in canonical form.
func (a Address) Validate() error {
	canonical, err := ParseAddress(string(a))
	if err != nil {
		return errors.Trace(err)
	}
	if canonical != a {
		return errors.NotValidf("non canonical address %q", a)
	}
	return nil
}
