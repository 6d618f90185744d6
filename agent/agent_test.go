// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package agent_test

import (
	"context"

	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	"github.com/juju/worker/v4/workertest"
	gc "gopkg.in/check.v1"

	"github.com/poolferry/poolferry/agent"
	"github.com/poolferry/poolferry/api"
	"github.com/poolferry/poolferry/core/asset"
	coredatabase "github.com/poolferry/poolferry/core/database"
	"github.com/poolferry/poolferry/domain"
	"github.com/poolferry/poolferry/domain/registry"
	registrystate "github.com/poolferry/poolferry/domain/registry/state"
	"github.com/poolferry/poolferry/internal/database"
)

type AgentSuite struct {
	testing.IsolationSuite
}

var _ = gc.Suite(&AgentSuite{})

func (s *AgentSuite) TestNewRejectsNilConfig(c *gc.C) {
	_, err := agent.New(nil)
	c.Assert(err, gc.ErrorMatches, "nil config not valid")
}

func (s *AgentSuite) start(c *gc.C, cfg *agent.Config) *agent.Agent {
	a, err := agent.New(cfg)
	c.Assert(err, jc.ErrorIsNil)
	s.AddCleanup(func(c *gc.C) { workertest.CleanKill(c, a) })
	return a
}

// The ephemeral port keeps parallel test runs off each other's toes.
func (s *AgentSuite) config(c *gc.C, dir string) *agent.Config {
	cfg, err := agent.ParseConfig([]byte(`
api-port: 0
db-path: ` + dir + `/ledger.db
logging-config: <root>=ERROR
orchestrator-address: ` + origin.String() + `
wrapper-address: ` + wrapper.String() + `
`))
	c.Assert(err, jc.ErrorIsNil)
	return cfg
}

func (s *AgentSuite) TestMigrateOverAPI(c *gc.C) {
	cfg := s.config(c, c.MkDir())
	err := agent.Bootstrap(context.Background(), cfg, seedDocument())
	c.Assert(err, jc.ErrorIsNil)
	a := s.start(c, cfg)

	url, err := a.APIURL()
	c.Assert(err, jc.ErrorIsNil)
	client, err := api.NewClient(url)
	c.Assert(err, jc.ErrorIsNil)

	result, err := client.Migrate(context.Background(), oldConv)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(result.OldInstance, gc.Equals, oldConv.String())
	c.Check(result.Admin, gc.Equals, admin.String())
	c.Check(result.Reserves, gc.Equals, 2)
	c.Check(result.Phase, gc.Equals, "DONE")

	newInstance, err := asset.ParseAddress(result.NewInstance)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(newInstance.IsZero(), jc.IsFalse)

	replacement, err := client.Converter(context.Background(), newInstance)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(replacement.Owner, gc.Equals, admin.String())
	c.Check(replacement.Token, gc.Equals, pool.String())
	c.Check(replacement.Fee, gc.Equals, int64(30000))
	c.Assert(replacement.Reserves, gc.HasLen, 2)
	c.Check(replacement.Reserves[0].Asset, gc.Equals, coin.String())
	c.Check(replacement.Reserves[0].Balance, gc.Equals, int64(750))
}

func (s *AgentSuite) TestFactorySelfRepair(c *gc.C) {
	cfg := s.config(c, c.MkDir())
	a := s.start(c, cfg)

	db, err := database.Open(cfg.DBPath())
	c.Assert(err, jc.ErrorIsNil)
	defer db.Close()
	factory := func() (coredatabase.TxnRunner, error) {
		return db, nil
	}
	registrySt := registrystate.NewState(factory)

	st := domain.NewStateBase(factory)
	err = st.RunAtomic(context.Background(), func(ctx domain.AtomicContext) error {
		registered, err := registrySt.Resolve(ctx, registry.ConverterFactory)
		c.Assert(err, jc.ErrorIsNil)
		c.Check(registered.IsZero(), jc.IsFalse)

		upgrader, err := registrySt.Resolve(ctx, registry.ConverterUpgrader)
		c.Assert(err, jc.ErrorIsNil)
		c.Check(upgrader, gc.Equals, origin)
		return nil
	})
	c.Assert(err, jc.ErrorIsNil)

	workertest.CheckAlive(c, a)
}

func (s *AgentSuite) TestUnknownConverterOverAPI(c *gc.C) {
	cfg := s.config(c, c.MkDir())
	a := s.start(c, cfg)

	url, err := a.APIURL()
	c.Assert(err, jc.ErrorIsNil)
	client, err := api.NewClient(url)
	c.Assert(err, jc.ErrorIsNil)

	_, err = client.Converter(context.Background(), oldConv)
	c.Assert(err, gc.ErrorMatches, `"`+oldConv.String()+`": converter not found`)
}
