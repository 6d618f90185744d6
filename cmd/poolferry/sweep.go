// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"strconv"

	"github.com/juju/errors"
	"github.com/juju/gnuflag"

	"github.com/poolferry/poolferry/core/asset"
	"github.com/poolferry/poolferry/internal/cmd"
)

var sweepDoc = `
sweep moves funds out of a guarded entity to a destination of the
administrator's choosing. It is the recovery path for tokens sent to
a contract that was never meant to hold them; only the guard's
administrator may sweep.
`

type sweepCommand struct {
	apiCommand

	caller      asset.Address
	callerStr   string
	guard       asset.Address
	assetID     asset.Address
	destination asset.Address
	amount      int64
}

func (c *sweepCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:    "sweep",
		Args:    "<guard> <asset> <destination> <amount>",
		Purpose: "Withdraw funds held by a guarded entity.",
		Doc:     sweepDoc,
	}
}

func (c *sweepCommand) SetFlags(f *gnuflag.FlagSet) {
	c.apiCommand.SetFlags(f)
	f.StringVar(&c.callerStr, "caller", "", "address the withdrawal is made as")
}

func (c *sweepCommand) Init(args []string) error {
	if c.callerStr == "" {
		return errors.New("--caller is required")
	}
	var err error
	if c.caller, err = asset.ParseAddress(c.callerStr); err != nil {
		return errors.Annotate(err, "caller")
	}
	if len(args) < 4 {
		return errors.New("guard, asset, destination and amount must all be specified")
	}
	if c.guard, err = asset.ParseAddress(args[0]); err != nil {
		return errors.Trace(err)
	}
	if c.assetID, err = asset.ParseAddress(args[1]); err != nil {
		return errors.Annotate(err, "asset")
	}
	if c.destination, err = asset.ParseAddress(args[2]); err != nil {
		return errors.Annotate(err, "destination")
	}
	if c.amount, err = strconv.ParseInt(args[3], 10, 64); err != nil {
		return errors.NotValidf("amount %q", args[3])
	}
	return cmd.CheckEmpty(args[4:])
}

func (c *sweepCommand) Run(ctx *cmd.Context) error {
	client, err := c.newClient()
	if err != nil {
		return errors.Trace(err)
	}
	if err := client.Withdraw(ctx, c.caller, c.guard, c.assetID, c.destination, c.amount); err != nil {
		return errors.Trace(err)
	}
	ctx.Infof("swept %d of %s from %s to %s", c.amount, c.assetID, c.guard, c.destination)
	return nil
}
