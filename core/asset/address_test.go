// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package asset_test

import (
	"github.com/juju/errors"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/poolferry/poolferry/core/asset"
)

type AddressSuite struct{}

var _ = gc.Suite(&AddressSuite{})

func (*AddressSuite) TestParseAddressCanonical(c *gc.C) {
	in := "0x5c65bd72e0bd3d1e01e5ee076fc1ec567ec00a33"
	a, err := asset.ParseAddress(in)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(a.String(), gc.Equals, in)
}

func (*AddressSuite) TestParseAddressNormalisesCase(c *gc.C) {
	a, err := asset.ParseAddress("0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE")
	c.Assert(err, jc.ErrorIsNil)
	c.Check(a, gc.Equals, asset.Native)
}

func (*AddressSuite) TestParseAddressInvalid(c *gc.C) {
	for i, in := range []string{
		"",
		"0x",
		"5c65bd72e0bd3d1e01e5ee076fc1ec567ec00a33",
		"0x5c65bd72e0bd3d1e01e5ee076fc1ec567ec00a3",
		"0x5c65bd72e0bd3d1e01e5ee076fc1ec567ec00a333",
		"0xzz65bd72e0bd3d1e01e5ee076fc1ec567ec00a33",
	} {
		c.Logf("test %d: %q", i, in)
		_, err := asset.ParseAddress(in)
		c.Check(err, jc.Satisfies, errors.IsNotValid)
	}
}

func (*AddressSuite) TestNewAddress(c *gc.C) {
	a, err := asset.NewAddress()
	c.Assert(err, jc.ErrorIsNil)
	c.Check(a.Validate(), jc.ErrorIsNil)
	c.Check(a.IsZero(), jc.IsFalse)

	b, err := asset.NewAddress()
	c.Assert(err, jc.ErrorIsNil)
	c.Check(b, gc.Not(gc.Equals), a)
}

func (*AddressSuite) TestIsZero(c *gc.C) {
	c.Check(asset.Address("").IsZero(), jc.IsTrue)
	c.Check(asset.Zero.IsZero(), jc.IsTrue)
	c.Check(asset.Native.IsZero(), jc.IsFalse)
}

func (*AddressSuite) TestValidate(c *gc.C) {
	c.Check(asset.Native.Validate(), jc.ErrorIsNil)
	c.Check(asset.Zero.Validate(), jc.ErrorIsNil)

	err := asset.Address("0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE").Validate()
	c.Check(err, jc.Satisfies, errors.IsNotValid)
	err = asset.Address("native").Validate()
	c.Check(err, jc.Satisfies, errors.IsNotValid)
}
