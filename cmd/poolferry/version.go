// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"fmt"

	"github.com/poolferry/poolferry/internal/cmd"
	"github.com/poolferry/poolferry/version"
)

type versionCommand struct {
	cmd.CommandBase
}

func (c *versionCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:    "version",
		Purpose: "Print the client version.",
	}
}

func (c *versionCommand) Run(ctx *cmd.Context) error {
	fmt.Fprintln(ctx.Stdout, version.Current)
	return nil
}
