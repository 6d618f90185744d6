// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/juju/errors"
	"github.com/juju/gnuflag"

	"github.com/poolferry/poolferry/agent"
	"github.com/poolferry/poolferry/internal/cmd"
)

const defaultConfigPath = "/etc/poolferry/agent.yaml"

var runDoc = `
run starts the orchestrator and serves the ledger API until the
process is interrupted. The configuration file names the ledger
database, the listen address and the orchestrator's own identity.
`

type runCommand struct {
	cmd.CommandBase

	configPath string
}

func (c *runCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:    "run",
		Purpose: "Run the orchestrator until interrupted.",
		Doc:     runDoc,
	}
}

func (c *runCommand) SetFlags(f *gnuflag.FlagSet) {
	f.StringVar(&c.configPath, "config", defaultConfigPath, "path to the agent configuration file")
}

func (c *runCommand) Run(ctx *cmd.Context) error {
	config, err := agent.ReadConfig(c.configPath)
	if err != nil {
		return errors.Trace(err)
	}

	// Catch signals before the agent exists so an early interrupt
	// still shuts down rather than killing a half-started daemon.
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signals)

	a, err := agent.New(config)
	if err != nil {
		return errors.Trace(err)
	}
	url, err := a.APIURL()
	if err != nil {
		return errors.Trace(err)
	}
	ctx.Infof("serving the ledger API on %s", url)

	dead := make(chan error, 1)
	go func() {
		dead <- a.Wait()
	}()
	select {
	case sig := <-signals:
		ctx.Infof("caught %v, shutting down", sig)
		a.Kill()
		return errors.Trace(<-dead)
	case err := <-dead:
		return errors.Trace(err)
	}
}
