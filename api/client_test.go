// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package api_test

import (
	"context"
	"net/http/httptest"
	stdtesting "testing"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	jc "github.com/juju/testing/checkers"
	"github.com/prometheus/client_golang/prometheus"
	gc "gopkg.in/check.v1"

	"github.com/poolferry/poolferry/api"
	"github.com/poolferry/poolferry/apiserver"
	"github.com/poolferry/poolferry/apiserver/params"
	"github.com/poolferry/poolferry/core/asset"
	"github.com/poolferry/poolferry/core/converter"
	coremigration "github.com/poolferry/poolferry/core/migration"
	"github.com/poolferry/poolferry/domain"
	converterservice "github.com/poolferry/poolferry/domain/converter/service"
	converterstate "github.com/poolferry/poolferry/domain/converter/state"
	featuresstate "github.com/poolferry/poolferry/domain/features/state"
	guardservice "github.com/poolferry/poolferry/domain/guard/service"
	"github.com/poolferry/poolferry/domain/owned"
	ownederrors "github.com/poolferry/poolferry/domain/owned/errors"
	ownedstate "github.com/poolferry/poolferry/domain/owned/state"
	schematesting "github.com/poolferry/poolferry/domain/schema/testing"
	"github.com/poolferry/poolferry/domain/token"
	tokenerrors "github.com/poolferry/poolferry/domain/token/errors"
	tokenstate "github.com/poolferry/poolferry/domain/token/state"
	"github.com/poolferry/poolferry/migration"
	"github.com/poolferry/poolferry/pubsub/centralhub"
	coretesting "github.com/poolferry/poolferry/testing"
)

func TestPackage(t *stdtesting.T) {
	gc.TestingT(t)
}

const (
	origin  = asset.Address("0x09a1b2c3d4e5f60718293a4b5c6d7e8f90a1b2c3")
	factory = asset.Address("0x05f2c1bfae14b5a27d4a419cbb1ff2f39bcd52ac")
	admin   = asset.Address("0x6f1b6a1c2e8d9b177a5c3f2e4d5a6b7c8d9e0f1a")
	oldConv = asset.Address("0x91c5f0a8b7d64e3c2a1908f7e6d5c4b3a291805f")
	pool    = asset.Address("0x47a3b2c1d0e9f8a7b6c5d4e3f2a1b0c9d8e7f655")
	coin    = asset.Address("0x3e1f2d3c4b5a69788796a5b4c3d2e1f001234567")
	wrapper = asset.Address("0x7f3c22b1e9d5a2a16c7d9b30590c8c285db17bd2")
	trader  = asset.Address("0x33d981f37a9a0eca5fdd1bb2be1a97287d559a1c")
	guarded = asset.Address("0x5e6b1c46f6a1bc1c9a2d7c59267a0e1557deadbf")
)

type ClientSuite struct {
	schematesting.LedgerSuite

	owned      *ownedstate.State
	converters *converterstate.State
	tokens     *tokenstate.State
	st         *domain.StateBase

	client *api.Client
}

var _ = gc.Suite(&ClientSuite{})

func (s *ClientSuite) SetUpTest(c *gc.C) {
	s.LedgerSuite.SetUpTest(c)

	s.owned = ownedstate.NewState(s.TxnRunnerFactory())
	s.converters = converterstate.NewState(s.TxnRunnerFactory())
	s.tokens = tokenstate.NewState(s.TxnRunnerFactory())
	features := featuresstate.NewState(s.TxnRunnerFactory())
	s.st = domain.NewStateBase(s.TxnRunnerFactory())

	provisioner, err := converterservice.NewFactory(factory, "0.6", s.converters)
	c.Assert(err, jc.ErrorIsNil)
	hub := centralhub.New(origin)

	orchestrator, err := migration.NewOrchestrator(migration.Config{
		Origin:           origin,
		Wrapper:          wrapper,
		TxnRunnerFactory: s.TxnRunnerFactory(),
		Owned:            s.owned,
		Converters:       s.converters,
		Tokens:           s.tokens,
		Factory:          provisioner,
		Features:         features,
		Hub:              hub,
		Clock:            clock.WallClock,
	})
	c.Assert(err, jc.ErrorIsNil)

	srv, err := apiserver.NewServer(apiserver.Config{
		Orchestrator: orchestrator,
		Converters:   converterservice.NewService(s.TxnRunnerFactory(), s.converters, s.owned, s.tokens),
		Guard:        guardservice.NewService(s.TxnRunnerFactory(), s.owned, s.tokens),
		Hub:          hub,
		Gatherer:     prometheus.NewRegistry(),
	})
	c.Assert(err, jc.ErrorIsNil)

	server := httptest.NewServer(srv)
	s.AddCleanup(func(c *gc.C) {
		srv.Close()
		server.Close()
	})

	s.client, err = api.NewClient(server.URL)
	c.Assert(err, jc.ErrorIsNil)
}

func (s *ClientSuite) seed(c *gc.C) {
	err := s.st.RunAtomic(context.Background(), func(ctx domain.AtomicContext) error {
		if err := s.converters.Create(ctx, converter.Settings{
			Address:      oldConv,
			Owner:        admin,
			PendingOwner: origin,
			Token:        pool,
			Version:      "0.4",
			MaxFee:       200000,
		}); err != nil {
			return err
		}
		if err := s.converters.AddReserve(ctx, admin, oldConv, coin, 500000); err != nil {
			return err
		}
		if err := s.converters.AddReserve(ctx, admin, oldConv, asset.Native, 500000); err != nil {
			return err
		}
		if err := s.converters.SetFee(ctx, admin, oldConv, 30000); err != nil {
			return err
		}
		if err := s.tokens.CreateToken(ctx, token.Token{
			Address: coin, Symbol: "COIN", Kind: asset.KindStandard, Owner: admin,
		}); err != nil {
			return err
		}
		if err := s.tokens.CreateToken(ctx, token.Token{
			Address: pool, Symbol: "POOL", Kind: asset.KindPool, Owner: oldConv,
		}); err != nil {
			return err
		}
		if err := s.tokens.Issue(ctx, admin, coin, oldConv, 750); err != nil {
			return err
		}
		return s.tokens.Issue(ctx, admin, asset.Native, oldConv, 250)
	})
	c.Assert(err, jc.ErrorIsNil)
}

func (s *ClientSuite) TestNewClientRejectsScheme(c *gc.C) {
	_, err := api.NewClient("ftp://localhost:17170")
	c.Assert(err, jc.ErrorIs, errors.NotValid)
}

func (s *ClientSuite) TestMigrate(c *gc.C) {
	s.seed(c)
	result, err := s.client.Migrate(context.Background(), oldConv)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(result.OldInstance, gc.Equals, oldConv.String())
	c.Check(result.Admin, gc.Equals, admin.String())
	c.Check(result.Reserves, gc.Equals, 2)
	c.Check(result.Phase, gc.Equals, coremigration.DONE.String())

	newInstance, err := asset.ParseAddress(result.NewInstance)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(newInstance.IsZero(), jc.IsFalse)
}

func (s *ClientSuite) TestMigrateOld(c *gc.C) {
	s.seed(c)
	result, err := s.client.MigrateOld(context.Background(), trader, oldConv, "0.4")
	c.Assert(err, jc.ErrorIsNil)
	c.Check(result.OldInstance, gc.Equals, oldConv.String())
	c.Check(result.Phase, gc.Equals, coremigration.DONE.String())
}

func (s *ClientSuite) TestMigrateUnknownConverter(c *gc.C) {
	_, err := s.client.Migrate(context.Background(), oldConv)
	c.Assert(err, jc.ErrorIs, errors.NotFound)
}

func (s *ClientSuite) TestConverter(c *gc.C) {
	s.seed(c)
	result, err := s.client.Converter(context.Background(), oldConv)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(result.Address, gc.Equals, oldConv.String())
	c.Check(result.Owner, gc.Equals, admin.String())
	c.Check(result.Token, gc.Equals, pool.String())
	c.Check(result.Reserves, jc.DeepEquals, []params.ReserveResult{{
		Asset:   coin.String(),
		Weight:  500000,
		Balance: 750,
		Active:  true,
	}, {
		Asset:   asset.Native.String(),
		Weight:  500000,
		Balance: 250,
		Active:  true,
	}})
}

func (s *ClientSuite) TestConverterNotFound(c *gc.C) {
	_, err := s.client.Converter(context.Background(), oldConv)
	c.Assert(err, jc.ErrorIs, errors.NotFound)
}

func (s *ClientSuite) TestTransferOwnershipUnauthorized(c *gc.C) {
	s.seed(c)
	err := s.client.TransferOwnership(context.Background(), trader, oldConv, trader)
	c.Assert(err, jc.ErrorIs, errors.Unauthorized)
}

func (s *ClientSuite) TestAcceptOwnershipNotPending(c *gc.C) {
	s.seed(c)
	err := s.client.AcceptOwnership(context.Background(), trader, oldConv)
	c.Assert(err, jc.ErrorIs, ownederrors.NotPendingOwner)
}

func (s *ClientSuite) TestOwnershipRoundTrip(c *gc.C) {
	s.seed(c)
	err := s.client.TransferOwnership(context.Background(), admin, oldConv, trader)
	c.Assert(err, jc.ErrorIsNil)
	err = s.client.AcceptOwnership(context.Background(), trader, oldConv)
	c.Assert(err, jc.ErrorIsNil)

	result, err := s.client.Converter(context.Background(), oldConv)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(result.Owner, gc.Equals, trader.String())
	c.Check(result.PendingOwner, gc.Equals, "")
}

func (s *ClientSuite) seedGuard(c *gc.C) {
	err := s.st.RunAtomic(context.Background(), func(ctx domain.AtomicContext) error {
		if err := s.owned.CreateEntity(ctx, owned.Entity{
			Address: guarded,
			Kind:    owned.KindGuard,
			Owner:   admin,
		}); err != nil {
			return err
		}
		if err := s.tokens.CreateToken(ctx, token.Token{
			Address: coin, Symbol: "COIN", Kind: asset.KindStandard, Owner: admin,
		}); err != nil {
			return err
		}
		return s.tokens.Issue(ctx, admin, coin, guarded, 500)
	})
	c.Assert(err, jc.ErrorIsNil)
}

func (s *ClientSuite) TestWithdraw(c *gc.C) {
	s.seedGuard(c)
	err := s.client.Withdraw(context.Background(), admin, guarded, coin, trader, 400)
	c.Assert(err, jc.ErrorIsNil)

	var held int64
	err = s.st.RunAtomic(context.Background(), func(ctx domain.AtomicContext) error {
		var err error
		held, err = s.tokens.Balance(ctx, coin, trader)
		return err
	})
	c.Assert(err, jc.ErrorIsNil)
	c.Check(held, gc.Equals, int64(400))
}

func (s *ClientSuite) TestWithdrawInsufficientFunds(c *gc.C) {
	s.seedGuard(c)
	err := s.client.Withdraw(context.Background(), admin, guarded, coin, trader, 5000)
	c.Assert(err, jc.ErrorIs, tokenerrors.InsufficientFunds)
}

func (s *ClientSuite) TestWatch(c *gc.C) {
	s.seed(c)
	watcher, err := s.client.Watch(context.Background())
	c.Assert(err, jc.ErrorIsNil)
	defer watcher.Close()

	result, err := s.client.Migrate(context.Background(), oldConv)
	c.Assert(err, jc.ErrorIsNil)

	topics := make(map[string]params.MigrationEvent)
	for i := 0; i < 2; i++ {
		event, err := watcher.Next()
		c.Assert(err, jc.ErrorIsNil)
		topics[event.Topic] = event
	}

	accepted, ok := topics[coremigration.OwnershipAcceptedTopic]
	c.Assert(ok, jc.IsTrue)
	c.Check(accepted.Data["instance"], gc.Equals, oldConv.String())

	completed, ok := topics[coremigration.CompletedTopic]
	c.Assert(ok, jc.IsTrue)
	c.Check(completed.Data["new-instance"], gc.Equals, result.NewInstance)
}

func (s *ClientSuite) TestWatcherCloseUnblocksNext(c *gc.C) {
	watcher, err := s.client.Watch(context.Background())
	c.Assert(err, jc.ErrorIsNil)

	done := make(chan error, 1)
	go func() {
		_, err := watcher.Next()
		done <- err
	}()
	c.Assert(watcher.Close(), jc.ErrorIsNil)

	select {
	case err := <-done:
		c.Assert(err, gc.NotNil)
	case <-time.After(coretesting.LongWait):
		c.Fatalf("timed out waiting for Next to return")
	}
}
