// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"encoding/json"
	"fmt"

	"github.com/juju/errors"
	"github.com/juju/gnuflag"

	"github.com/poolferry/poolferry/apiserver/params"
	"github.com/poolferry/poolferry/core/asset"
	"github.com/poolferry/poolferry/internal/cmd"
)

var migrateDoc = `
migrate asks the orchestrator to upgrade the named converter. The
converter must have nominated the orchestrator as its next
administrator beforehand.

Without --caller the converter is treated as requesting its own
upgrade, which is the path a current generation converter takes. Old
converter generations cannot do that; name a caller to use the legacy
path, optionally with the version tag those generations expect to
pass along.
`

type migrateCommand struct {
	apiCommand

	converter  asset.Address
	caller     asset.Address
	callerStr  string
	versionTag string
}

func (c *migrateCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:    "migrate",
		Args:    "<converter>",
		Purpose: "Upgrade a converter to the current generation.",
		Doc:     migrateDoc,
	}
}

func (c *migrateCommand) SetFlags(f *gnuflag.FlagSet) {
	c.apiCommand.SetFlags(f)
	f.StringVar(&c.callerStr, "caller", "", "requesting address for the legacy upgrade path")
	f.StringVar(&c.versionTag, "version-tag", "", "version tag forwarded on the legacy upgrade path")
}

func (c *migrateCommand) Init(args []string) error {
	if len(args) == 0 {
		return errors.New("no converter specified")
	}
	var err error
	if c.converter, err = asset.ParseAddress(args[0]); err != nil {
		return errors.Trace(err)
	}
	if c.callerStr != "" {
		if c.caller, err = asset.ParseAddress(c.callerStr); err != nil {
			return errors.Annotate(err, "caller")
		}
	}
	return cmd.CheckEmpty(args[1:])
}

func (c *migrateCommand) Run(ctx *cmd.Context) error {
	client, err := c.newClient()
	if err != nil {
		return errors.Trace(err)
	}

	var result *params.MigrationResult
	if c.caller.IsZero() {
		result, err = client.Migrate(ctx, c.converter)
	} else {
		result, err = client.MigrateOld(ctx, c.caller, c.converter, c.versionTag)
	}
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
