// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package asset_test

import (
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/poolferry/poolferry/core/asset"
)

type KindSuite struct{}

var _ = gc.Suite(&KindSuite{})

func (*KindSuite) TestIsValid(c *gc.C) {
	for i, k := range []asset.Kind{
		asset.KindStandard,
		asset.KindWrappedNative,
		asset.KindPool,
		asset.KindNative,
	} {
		c.Logf("test %d: %s", i, k)
		c.Check(k.IsValid(), jc.IsTrue)
	}
	c.Check(asset.Kind("").IsValid(), jc.IsFalse)
	c.Check(asset.Kind("erc20").IsValid(), jc.IsFalse)
}

func (*KindSuite) TestClassify(c *gc.C) {
	wrapper := asset.Address("0xc0829421c1d260bd3cb3e0f06cfe2d52db2ce315")
	other := asset.Address("0x1f573d6fb3f13d689ff844b4ce37794d79a7ff1c")

	c.Check(asset.Classify(asset.Native, wrapper), gc.Equals, asset.KindNative)
	c.Check(asset.Classify(wrapper, wrapper), gc.Equals, asset.KindWrappedNative)
	c.Check(asset.Classify(other, wrapper), gc.Equals, asset.KindStandard)
}

func (*KindSuite) TestClassifyNoWrapperConfigured(c *gc.C) {
	other := asset.Address("0x1f573d6fb3f13d689ff844b4ce37794d79a7ff1c")
	c.Check(asset.Classify(other, asset.Zero), gc.Equals, asset.KindStandard)
	c.Check(asset.Classify(asset.Native, asset.Zero), gc.Equals, asset.KindNative)
}

func (*KindSuite) TestWeightBounds(c *gc.C) {
	c.Check(asset.MaxWeight, gc.Equals, asset.PPMResolution)
	c.Check(asset.MaxFee, gc.Equals, asset.PPMResolution)
	c.Check(asset.PPMResolution, gc.Equals, 1000000)
}
