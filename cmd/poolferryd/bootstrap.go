// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"github.com/juju/errors"
	"github.com/juju/gnuflag"

	"github.com/poolferry/poolferry/agent"
	"github.com/poolferry/poolferry/internal/cmd"
)

var bootstrapDoc = `
bootstrap applies a ledger document to the configured database,
creating the schema if required. The document registers contracts,
tokens, converters with their reserves, guards, opening balances and
feature flags in a single transaction.

The daemon must not be running while the ledger is bootstrapped.
`

type bootstrapCommand struct {
	cmd.CommandBase

	configPath   string
	documentPath string
}

func (c *bootstrapCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:    "bootstrap",
		Args:    "<ledger-document>",
		Purpose: "Apply a ledger document to an empty ledger.",
		Doc:     bootstrapDoc,
	}
}

func (c *bootstrapCommand) SetFlags(f *gnuflag.FlagSet) {
	f.StringVar(&c.configPath, "config", defaultConfigPath, "path to the agent configuration file")
}

func (c *bootstrapCommand) Init(args []string) error {
	if len(args) == 0 {
		return errors.New("no ledger document specified")
	}
	c.documentPath = args[0]
	return cmd.CheckEmpty(args[1:])
}

func (c *bootstrapCommand) Run(ctx *cmd.Context) error {
	config, err := agent.ReadConfig(c.configPath)
	if err != nil {
		return errors.Trace(err)
	}
	doc, err := agent.ReadLedgerDocument(c.documentPath)
	if err != nil {
		return errors.Trace(err)
	}
	if err := agent.Bootstrap(ctx, config, doc); err != nil {
		return errors.Trace(err)
	}
	ctx.Infof("ledger bootstrapped at %s", config.DBPath())
	return nil
}
