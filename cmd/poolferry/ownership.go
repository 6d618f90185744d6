// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"github.com/juju/errors"
	"github.com/juju/gnuflag"

	"github.com/poolferry/poolferry/core/asset"
	"github.com/poolferry/poolferry/internal/cmd"
)

var transferOwnershipDoc = `
transfer-ownership nominates a new administrator for a converter.
Nothing changes hands until the nominee accepts; nominating the
orchestrator is how a converter is queued for migration.
`

type transferOwnershipCommand struct {
	apiCommand

	caller    asset.Address
	callerStr string
	converter asset.Address
	newOwner  asset.Address
}

func (c *transferOwnershipCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:    "transfer-ownership",
		Args:    "<converter> <new-owner>",
		Purpose: "Nominate a new administrator for a converter.",
		Doc:     transferOwnershipDoc,
	}
}

func (c *transferOwnershipCommand) SetFlags(f *gnuflag.FlagSet) {
	c.apiCommand.SetFlags(f)
	f.StringVar(&c.callerStr, "caller", "", "address the nomination is made as")
}

func (c *transferOwnershipCommand) Init(args []string) error {
	if c.callerStr == "" {
		return errors.New("--caller is required")
	}
	var err error
	if c.caller, err = asset.ParseAddress(c.callerStr); err != nil {
		return errors.Annotate(err, "caller")
	}
	if len(args) < 2 {
		return errors.New("converter and new owner must both be specified")
	}
	if c.converter, err = asset.ParseAddress(args[0]); err != nil {
		return errors.Trace(err)
	}
	if c.newOwner, err = asset.ParseAddress(args[1]); err != nil {
		return errors.Annotate(err, "new owner")
	}
	return cmd.CheckEmpty(args[2:])
}

func (c *transferOwnershipCommand) Run(ctx *cmd.Context) error {
	client, err := c.newClient()
	if err != nil {
		return errors.Trace(err)
	}
	if err := client.TransferOwnership(ctx, c.caller, c.converter, c.newOwner); err != nil {
		return errors.Trace(err)
	}
	ctx.Infof("nominated %s as administrator of %s", c.newOwner, c.converter)
	return nil
}

type acceptOwnershipCommand struct {
	apiCommand

	caller    asset.Address
	callerStr string
	converter asset.Address
}

func (c *acceptOwnershipCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:    "accept-ownership",
		Args:    "<converter>",
		Purpose: "Accept an outstanding administrator nomination.",
	}
}

func (c *acceptOwnershipCommand) SetFlags(f *gnuflag.FlagSet) {
	c.apiCommand.SetFlags(f)
	f.StringVar(&c.callerStr, "caller", "", "nominated address accepting control")
}

func (c *acceptOwnershipCommand) Init(args []string) error {
	if c.callerStr == "" {
		return errors.New("--caller is required")
	}
	var err error
	if c.caller, err = asset.ParseAddress(c.callerStr); err != nil {
		return errors.Annotate(err, "caller")
	}
	if len(args) == 0 {
		return errors.New("no converter specified")
	}
	if c.converter, err = asset.ParseAddress(args[0]); err != nil {
		return errors.Trace(err)
	}
	return cmd.CheckEmpty(args[1:])
}

func (c *acceptOwnershipCommand) Run(ctx *cmd.Context) error {
	client, err := c.newClient()
	if err != nil {
		return errors.Trace(err)
	}
	if err := client.AcceptOwnership(ctx, c.caller, c.converter); err != nil {
		return errors.Trace(err)
	}
	ctx.Infof("%s now administers %s", c.caller, c.converter)
	return nil
}
