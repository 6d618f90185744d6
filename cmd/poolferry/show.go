// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"encoding/json"
	"fmt"

	"github.com/juju/errors"

	"github.com/poolferry/poolferry/core/asset"
	"github.com/poolferry/poolferry/internal/cmd"
)

type showConverterCommand struct {
	apiCommand

	converter asset.Address
}

func (c *showConverterCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:    "show-converter",
		Args:    "<converter>",
		Purpose: "Show a converter's configuration and holdings.",
	}
}

func (c *showConverterCommand) Init(args []string) error {
	if len(args) == 0 {
		return errors.New("no converter specified")
	}
	var err error
	if c.converter, err = asset.ParseAddress(args[0]); err != nil {
		return errors.Trace(err)
	}
	return cmd.CheckEmpty(args[1:])
}

func (c *showConverterCommand) Run(ctx *cmd.Context) error {
	client, err := c.newClient()
	if err != nil {
		return errors.Trace(err)
	}
	result, err := client.Converter(ctx, c.converter)
	if err != nil {
		return errors.Trace(err)
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return errors.Trace(err)
	}
	fmt.Fprintln(ctx.Stdout, string(out))
	return nil
}
