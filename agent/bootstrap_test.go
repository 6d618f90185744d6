// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package agent_test

import (
	"context"
	"os"
	"path/filepath"

	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/poolferry/poolferry/agent"
	"github.com/poolferry/poolferry/core/asset"
	"github.com/poolferry/poolferry/core/converter"
	coredatabase "github.com/poolferry/poolferry/core/database"
	"github.com/poolferry/poolferry/domain"
	converterstate "github.com/poolferry/poolferry/domain/converter/state"
	"github.com/poolferry/poolferry/domain/features"
	featuresstate "github.com/poolferry/poolferry/domain/features/state"
	"github.com/poolferry/poolferry/domain/owned"
	ownedstate "github.com/poolferry/poolferry/domain/owned/state"
	"github.com/poolferry/poolferry/domain/registry"
	registrystate "github.com/poolferry/poolferry/domain/registry/state"
	tokenerrors "github.com/poolferry/poolferry/domain/token/errors"
	tokenstate "github.com/poolferry/poolferry/domain/token/state"
	"github.com/poolferry/poolferry/internal/database"
)

type BootstrapSuite struct {
	testing.IsolationSuite
}

var _ = gc.Suite(&BootstrapSuite{})

const (
	factoryAddr = asset.Address("0x05f2c1bfae14b5a27d4a419cbb1ff2f39bcd52ac")
	admin       = asset.Address("0x6f1b6a1c2e8d9b177a5c3f2e4d5a6b7c8d9e0f1a")
	oldConv     = asset.Address("0x91c5f0a8b7d64e3c2a1908f7e6d5c4b3a291805f")
	pool        = asset.Address("0x47a3b2c1d0e9f8a7b6c5d4e3f2a1b0c9d8e7f655")
	coin        = asset.Address("0x3e1f2d3c4b5a69788796a5b4c3d2e1f001234567")
	trader      = asset.Address("0x33d981f37a9a0eca5fdd1bb2be1a97287d559a1c")
	guarded     = asset.Address("0x5e6b1c46f6a1bc1c9a2d7c59267a0e1557deadbf")
)

func (s *BootstrapSuite) config(c *gc.C, dir string) *agent.Config {
	cfg, err := agent.ParseConfig([]byte(`
db-path: ` + filepath.Join(dir, "ledger.db") + `
orchestrator-address: ` + origin.String() + `
wrapper-address: ` + wrapper.String() + `
`))
	c.Assert(err, jc.ErrorIsNil)
	return cfg
}

func seedDocument() *agent.LedgerDocument {
	return &agent.LedgerDocument{
		Registry: map[string]string{
			"converter-factory": factoryAddr.String(),
			"native-wrapper":    wrapper.String(),
		},
		Tokens: []agent.TokenDocument{
			{Address: coin.String(), Symbol: "COIN", Kind: "standard", Owner: admin.String()},
			{Address: wrapper.String(), Symbol: "WNAT", Kind: "wrapped-native", Owner: admin.String()},
			{Address: pool.String(), Symbol: "POOL", Kind: "pool", Owner: oldConv.String()},
		},
		Converters: []agent.ConverterDocument{{
			Address:      oldConv.String(),
			Owner:        admin.String(),
			PendingOwner: origin.String(),
			Token:        pool.String(),
			Version:      "0.4",
			MaxFee:       200000,
			Fee:          30000,
			Reserves: []agent.ReserveDocument{
				{Asset: coin.String(), Weight: 500000, VirtualBalance: 1000000},
				{Asset: wrapper.String(), Weight: 500000},
			},
		}},
		Guards: []agent.GuardDocument{
			{Address: guarded.String(), Owner: admin.String()},
		},
		Balances: []agent.BalanceDocument{
			{Asset: coin.String(), Holder: oldConv.String(), Amount: 750},
			{Asset: asset.Native.String(), Holder: trader.String(), Amount: 250},
		},
		Features: []agent.FeatureDocument{
			{Contract: oldConv.String(), Features: []string{"conversion-whitelist"}},
		},
	}
}

func (s *BootstrapSuite) TestBootstrap(c *gc.C) {
	cfg := s.config(c, c.MkDir())
	err := agent.Bootstrap(context.Background(), cfg, seedDocument())
	c.Assert(err, jc.ErrorIsNil)

	db, err := database.Open(cfg.DBPath())
	c.Assert(err, jc.ErrorIsNil)
	defer db.Close()
	factory := func() (coredatabase.TxnRunner, error) {
		return db, nil
	}

	registrySt := registrystate.NewState(factory)
	ownedSt := ownedstate.NewState(factory)
	converterSt := converterstate.NewState(factory)
	tokenSt := tokenstate.NewState(factory)
	featureSt := featuresstate.NewState(factory)

	st := domain.NewStateBase(factory)
	err = st.RunAtomic(context.Background(), func(ctx domain.AtomicContext) error {
		resolved, err := registrySt.Resolve(ctx, registry.ConverterFactory)
		c.Assert(err, jc.ErrorIsNil)
		c.Check(resolved, gc.Equals, factoryAddr)

		tok, err := tokenSt.Token(ctx, coin)
		c.Assert(err, jc.ErrorIsNil)
		c.Check(tok.Symbol, gc.Equals, "COIN")
		c.Check(tok.Kind, gc.Equals, asset.KindStandard)
		c.Check(tok.Owner, gc.Equals, admin)

		settings, err := converterSt.Settings(ctx, oldConv)
		c.Assert(err, jc.ErrorIsNil)
		c.Check(settings.Owner, gc.Equals, admin)
		c.Check(settings.PendingOwner, gc.Equals, origin)
		c.Check(settings.Token, gc.Equals, pool)
		c.Check(settings.Version, gc.Equals, "0.4")
		c.Check(settings.Fee, gc.Equals, int64(30000))
		c.Check(settings.Reserves, jc.DeepEquals, []converter.Reserve{
			{Asset: coin, Weight: 500000, VirtualBalance: 1000000, Active: true},
			{Asset: wrapper, Weight: 500000, Active: true},
		})

		entity, err := ownedSt.Entity(ctx, guarded)
		c.Assert(err, jc.ErrorIsNil)
		c.Check(entity.Kind, gc.Equals, owned.KindGuard)
		c.Check(entity.Owner, gc.Equals, admin)

		held, err := tokenSt.Balance(ctx, coin, oldConv)
		c.Assert(err, jc.ErrorIsNil)
		c.Check(held, gc.Equals, int64(750))
		held, err = tokenSt.Balance(ctx, asset.Native, trader)
		c.Assert(err, jc.ErrorIsNil)
		c.Check(held, gc.Equals, int64(250))

		supported, err := featureSt.Supports(ctx, oldConv, features.ConversionWhitelist)
		c.Assert(err, jc.ErrorIsNil)
		c.Check(supported, jc.IsTrue)
		return nil
	})
	c.Assert(err, jc.ErrorIsNil)
}

func (s *BootstrapSuite) TestBootstrapMangledRegistryEntry(c *gc.C) {
	doc := seedDocument()
	doc.Registry = map[string]string{"converter-factory": "banana"}
	err := agent.Bootstrap(context.Background(), s.config(c, c.MkDir()), doc)
	c.Assert(err, gc.ErrorMatches, `registry entry "converter-factory": address "banana" not valid`)
}

func (s *BootstrapSuite) TestBootstrapMangledToken(c *gc.C) {
	doc := seedDocument()
	doc.Tokens[0].Address = "banana"
	err := agent.Bootstrap(context.Background(), s.config(c, c.MkDir()), doc)
	c.Assert(err, gc.ErrorMatches, `token "banana": address "banana" not valid`)
}

func (s *BootstrapSuite) TestBootstrapUnknownFeature(c *gc.C) {
	doc := seedDocument()
	doc.Features[0].Features = []string{"frobnicate"}
	err := agent.Bootstrap(context.Background(), s.config(c, c.MkDir()), doc)
	c.Assert(err, gc.ErrorMatches, `features of "`+oldConv.String()+`": feature "frobnicate" not valid`)
}

func (s *BootstrapSuite) TestBootstrapBalanceNeedsToken(c *gc.C) {
	doc := seedDocument()
	doc.Tokens = doc.Tokens[1:]
	doc.Converters = nil
	doc.Features = nil
	err := agent.Bootstrap(context.Background(), s.config(c, c.MkDir()), doc)
	c.Assert(err, jc.ErrorIs, tokenerrors.TokenNotFound)
}

func (s *BootstrapSuite) TestBootstrapTwiceRejected(c *gc.C) {
	cfg := s.config(c, c.MkDir())
	err := agent.Bootstrap(context.Background(), cfg, seedDocument())
	c.Assert(err, jc.ErrorIsNil)
	err = agent.Bootstrap(context.Background(), cfg, seedDocument())
	c.Assert(err, gc.ErrorMatches, `token "`+coin.String()+`": token "`+coin.String()+`" already exists`)
}

func (s *BootstrapSuite) TestReadLedgerDocument(c *gc.C) {
	path := filepath.Join(c.MkDir(), "ledger.yaml")
	err := os.WriteFile(path, []byte(`
registry:
  converter-factory: `+factoryAddr.String()+`
tokens:
  - address: `+coin.String()+`
    symbol: COIN
    kind: standard
    owner: `+admin.String()+`
converters:
  - address: `+oldConv.String()+`
    owner: `+admin.String()+`
    pending-owner: `+origin.String()+`
    token: `+pool.String()+`
    version: "0.4"
    max-fee: 200000
    reserves:
      - asset: `+coin.String()+`
        weight: 500000
        virtual-balance: 1000000
guards:
  - address: `+guarded.String()+`
    owner: `+admin.String()+`
balances:
  - asset: `+coin.String()+`
    holder: `+trader.String()+`
    amount: 42
features:
  - contract: `+oldConv.String()+`
    features: [conversion-whitelist]
`), 0o644)
	c.Assert(err, jc.ErrorIsNil)

	doc, err := agent.ReadLedgerDocument(path)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(doc.Registry, jc.DeepEquals, map[string]string{
		"converter-factory": factoryAddr.String(),
	})
	c.Check(doc.Tokens, jc.DeepEquals, []agent.TokenDocument{
		{Address: coin.String(), Symbol: "COIN", Kind: "standard", Owner: admin.String()},
	})
	c.Assert(doc.Converters, gc.HasLen, 1)
	c.Check(doc.Converters[0].PendingOwner, gc.Equals, origin.String())
	c.Check(doc.Converters[0].MaxFee, gc.Equals, int64(200000))
	c.Check(doc.Converters[0].Reserves, jc.DeepEquals, []agent.ReserveDocument{
		{Asset: coin.String(), Weight: 500000, VirtualBalance: 1000000},
	})
	c.Check(doc.Guards, jc.DeepEquals, []agent.GuardDocument{
		{Address: guarded.String(), Owner: admin.String()},
	})
	c.Check(doc.Balances, jc.DeepEquals, []agent.BalanceDocument{
		{Asset: coin.String(), Holder: trader.String(), Amount: 42},
	})
	c.Check(doc.Features, jc.DeepEquals, []agent.FeatureDocument{
		{Contract: oldConv.String(), Features: []string{"conversion-whitelist"}},
	})
}

func (s *BootstrapSuite) TestReadLedgerDocumentUnknownField(c *gc.C) {
	path := filepath.Join(c.MkDir(), "ledger.yaml")
	err := os.WriteFile(path, []byte("converterz: []\n"), 0o644)
	c.Assert(err, jc.ErrorIsNil)

	_, err = agent.ReadLedgerDocument(path)
	c.Assert(err, gc.ErrorMatches, `(?s)parsing ledger document ".*ledger.yaml": yaml: unmarshal errors:.*field converterz not found.*`)
}

func (s *BootstrapSuite) TestReadLedgerDocumentMissing(c *gc.C) {
	_, err := agent.ReadLedgerDocument(filepath.Join(c.MkDir(), "nope.yaml"))
	c.Assert(err, gc.ErrorMatches, "reading ledger document: .*")
}
