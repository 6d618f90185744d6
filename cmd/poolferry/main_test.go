// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	stdtesting "testing"
	"time"

	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	"github.com/juju/worker/v4/workertest"
	gc "gopkg.in/check.v1"

	"github.com/poolferry/poolferry/agent"
	"github.com/poolferry/poolferry/apiserver/params"
	"github.com/poolferry/poolferry/core/asset"
	coremigration "github.com/poolferry/poolferry/core/migration"
	"github.com/poolferry/poolferry/internal/cmd"
	coretesting "github.com/poolferry/poolferry/testing"
)

func TestPackage(t *stdtesting.T) {
	gc.TestingT(t)
}

const (
	origin  = asset.Address("0x09a1b2c3d4e5f60718293a4b5c6d7e8f90a1b2c3")
	admin   = asset.Address("0x6f1b6a1c2e8d9b177a5c3f2e4d5a6b7c8d9e0f1a")
	oldConv = asset.Address("0x91c5f0a8b7d64e3c2a1908f7e6d5c4b3a291805f")
	pool    = asset.Address("0x47a3b2c1d0e9f8a7b6c5d4e3f2a1b0c9d8e7f655")
	coin    = asset.Address("0x3e1f2d3c4b5a69788796a5b4c3d2e1f001234567")
	wrapper = asset.Address("0x7f3c22b1e9d5a2a16c7d9b30590c8c285db17bd2")
	trader  = asset.Address("0x33d981f37a9a0eca5fdd1bb2be1a97287d559a1c")
	guarded = asset.Address("0x5e6b1c46f6a1bc1c9a2d7c59267a0e1557deadbf")
)

type CLISuite struct {
	testing.IsolationSuite

	url string
}

var _ = gc.Suite(&CLISuite{})

func (s *CLISuite) SetUpTest(c *gc.C) {
	s.IsolationSuite.SetUpTest(c)

	cfg, err := agent.ParseConfig([]byte(`
api-port: 0
db-path: ` + c.MkDir() + `/ledger.db
logging-config: <root>=ERROR
orchestrator-address: ` + origin.String() + `
wrapper-address: ` + wrapper.String() + `
`))
	c.Assert(err, jc.ErrorIsNil)

	err = agent.Bootstrap(context.Background(), cfg, &agent.LedgerDocument{
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
				{Asset: coin.String(), Weight: 500000},
				{Asset: wrapper.String(), Weight: 500000},
			},
		}},
		Guards: []agent.GuardDocument{
			{Address: guarded.String(), Owner: admin.String()},
		},
		Balances: []agent.BalanceDocument{
			{Asset: coin.String(), Holder: oldConv.String(), Amount: 750},
			{Asset: coin.String(), Holder: guarded.String(), Amount: 500},
		},
	})
	c.Assert(err, jc.ErrorIsNil)

	a, err := agent.New(cfg)
	c.Assert(err, jc.ErrorIsNil)
	s.AddCleanup(func(c *gc.C) { workertest.CleanKill(c, a) })
	s.url, err = a.APIURL()
	c.Assert(err, jc.ErrorIsNil)
}

func run(args ...string) (code int, stdout, stderr string) {
	ctx := &cmd.Context{
		Context: context.Background(),
		Stdin:   &bytes.Buffer{},
		Stdout:  &bytes.Buffer{},
		Stderr:  &bytes.Buffer{},
	}
	code = cmd.Main(newPoolferryCommand(), ctx, args)
	return code, ctx.Stdout.(*bytes.Buffer).String(), ctx.Stderr.(*bytes.Buffer).String()
}

func (s *CLISuite) TestVersion(c *gc.C) {
	code, stdout, _ := run("version")
	c.Check(code, gc.Equals, 0)
	c.Check(stdout, gc.Equals, "0.6.0\n")
}

func (s *CLISuite) TestNoArgsShowsHelp(c *gc.C) {
	code, stdout, _ := run()
	c.Check(code, gc.Equals, 0)
	c.Check(stdout, gc.Matches, "(?s).*Operate a poolferry orchestrator.*migrate.*show-converter.*sweep.*watch.*")
}

func (s *CLISuite) TestMigrate(c *gc.C) {
	code, stdout, stderr := run("migrate", "--api-url", s.url, oldConv.String())
	c.Assert(code, gc.Equals, 0, gc.Commentf("stderr: %s", stderr))

	var result params.MigrationResult
	err := json.Unmarshal([]byte(stdout), &result)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(result.OldInstance, gc.Equals, oldConv.String())
	c.Check(result.Admin, gc.Equals, admin.String())
	c.Check(result.Reserves, gc.Equals, 2)
	c.Check(result.Phase, gc.Equals, "DONE")
	c.Check(result.NewInstance, gc.Not(gc.Equals), "")
}

func (s *CLISuite) TestMigrateLegacyPath(c *gc.C) {
	code, stdout, stderr := run("migrate",
		"--api-url", s.url,
		"--caller", trader.String(),
		"--version-tag", "0.4",
		oldConv.String(),
	)
	c.Assert(code, gc.Equals, 0, gc.Commentf("stderr: %s", stderr))

	var result params.MigrationResult
	err := json.Unmarshal([]byte(stdout), &result)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(result.Phase, gc.Equals, "DONE")
}

func (s *CLISuite) TestMigrateNoConverter(c *gc.C) {
	code, _, stderr := run("migrate", "--api-url", s.url)
	c.Check(code, gc.Equals, 2)
	c.Check(stderr, gc.Equals, "ERROR no converter specified\n")
}

func (s *CLISuite) TestMigrateMangledAddress(c *gc.C) {
	code, _, stderr := run("migrate", "--api-url", s.url, "banana")
	c.Check(code, gc.Equals, 2)
	c.Check(stderr, gc.Equals, "ERROR address \"banana\" not valid\n")
}

func (s *CLISuite) TestShowConverter(c *gc.C) {
	code, stdout, stderr := run("show-converter", "--api-url", s.url, oldConv.String())
	c.Assert(code, gc.Equals, 0, gc.Commentf("stderr: %s", stderr))

	var result params.ConverterResult
	err := json.Unmarshal([]byte(stdout), &result)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(result.Address, gc.Equals, oldConv.String())
	c.Check(result.Owner, gc.Equals, admin.String())
	c.Check(result.PendingOwner, gc.Equals, origin.String())
	c.Assert(result.Reserves, gc.HasLen, 2)
	c.Check(result.Reserves[0].Asset, gc.Equals, coin.String())
	c.Check(result.Reserves[0].Balance, gc.Equals, int64(750))
}

func (s *CLISuite) TestShowConverterUnknown(c *gc.C) {
	code, _, stderr := run("show-converter", "--api-url", s.url, trader.String())
	c.Check(code, gc.Equals, 1)
	c.Check(stderr, gc.Matches, "ERROR .*converter not found\n")
}

func (s *CLISuite) TestOwnershipRoundTrip(c *gc.C) {
	code, _, stderr := run("transfer-ownership",
		"--api-url", s.url,
		"--caller", admin.String(),
		oldConv.String(), trader.String(),
	)
	c.Assert(code, gc.Equals, 0, gc.Commentf("stderr: %s", stderr))
	c.Check(stderr, gc.Matches, "nominated .* as administrator of .*\n")

	code, _, stderr = run("accept-ownership",
		"--api-url", s.url,
		"--caller", trader.String(),
		oldConv.String(),
	)
	c.Assert(code, gc.Equals, 0, gc.Commentf("stderr: %s", stderr))

	code, stdout, _ := run("show-converter", "--api-url", s.url, oldConv.String())
	c.Assert(code, gc.Equals, 0)
	var result params.ConverterResult
	err := json.Unmarshal([]byte(stdout), &result)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(result.Owner, gc.Equals, trader.String())
	c.Check(result.PendingOwner, gc.Equals, "")
}

func (s *CLISuite) TestTransferOwnershipNeedsCaller(c *gc.C) {
	code, _, stderr := run("transfer-ownership",
		"--api-url", s.url,
		oldConv.String(), trader.String(),
	)
	c.Check(code, gc.Equals, 2)
	c.Check(stderr, gc.Equals, "ERROR --caller is required\n")
}

func (s *CLISuite) TestSweep(c *gc.C) {
	code, _, stderr := run("sweep",
		"--api-url", s.url,
		"--caller", admin.String(),
		guarded.String(), coin.String(), trader.String(), "100",
	)
	c.Assert(code, gc.Equals, 0, gc.Commentf("stderr: %s", stderr))
	c.Check(stderr, gc.Matches, "swept 100 of .* from .* to .*\n")
}

func (s *CLISuite) TestSweepUnauthorized(c *gc.C) {
	code, _, stderr := run("sweep",
		"--api-url", s.url,
		"--caller", trader.String(),
		guarded.String(), coin.String(), trader.String(), "100",
	)
	c.Check(code, gc.Equals, 1)
	c.Check(stderr, gc.Matches, "ERROR .*caller is not the administrator\n")
}

func (s *CLISuite) TestSweepMangledAmount(c *gc.C) {
	code, _, stderr := run("sweep",
		"--api-url", s.url,
		"--caller", admin.String(),
		guarded.String(), coin.String(), trader.String(), "lots",
	)
	c.Check(code, gc.Equals, 2)
	c.Check(stderr, gc.Equals, "ERROR amount \"lots\" not valid\n")
}

// syncBuffer lets the test read command output while the command is
// still running.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (s *CLISuite) TestWatchLimit(c *gc.C) {
	stdout := &syncBuffer{}
	stderr := &syncBuffer{}
	done := make(chan int, 1)
	go func() {
		ctx := &cmd.Context{
			Context: context.Background(),
			Stdin:   &bytes.Buffer{},
			Stdout:  stdout,
			Stderr:  stderr,
		}
		done <- cmd.Main(newPoolferryCommand(), ctx, []string{
			"watch", "--api-url", s.url, "--limit", "2",
		})
	}()

	// The streaming notice only appears once the subscription is
	// live, so events caused after it cannot be missed.
	for deadline := time.Now().Add(coretesting.LongWait); ; {
		if strings.Contains(stderr.String(), "streaming migration events") {
			break
		}
		if time.Now().After(deadline) {
			c.Fatalf("watch never connected: %s", stderr.String())
		}
		time.Sleep(coretesting.ShortWait)
	}

	code, _, migrateErr := run("migrate", "--api-url", s.url, oldConv.String())
	c.Assert(code, gc.Equals, 0, gc.Commentf("stderr: %s", migrateErr))

	select {
	case code := <-done:
		c.Assert(code, gc.Equals, 0, gc.Commentf("stderr: %s", stderr.String()))
	case <-time.After(coretesting.LongWait):
		c.Fatalf("watch did not stop at its event limit")
	}

	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	c.Assert(lines, gc.HasLen, 2)
	topics := make(map[string]params.MigrationEvent)
	for _, line := range lines {
		var event params.MigrationEvent
		err := json.Unmarshal([]byte(line), &event)
		c.Assert(err, jc.ErrorIsNil)
		topics[event.Topic] = event
	}
	accepted, ok := topics[coremigration.OwnershipAcceptedTopic]
	c.Assert(ok, jc.IsTrue)
	c.Check(accepted.Data["instance"], gc.Equals, oldConv.String())
	completed, ok := topics[coremigration.CompletedTopic]
	c.Assert(ok, jc.IsTrue)
	c.Check(completed.Data["old-instance"], gc.Equals, oldConv.String())
}

func (s *CLISuite) TestBadAPIURL(c *gc.C) {
	code, _, stderr := run("show-converter", "--api-url", "ftp://nowhere", oldConv.String())
	c.Check(code, gc.Equals, 1)
	c.Check(stderr, gc.Matches, `ERROR server URL "ftp://nowhere" not valid\n`)
}
