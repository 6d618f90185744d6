// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/juju/gnuflag"

	"github.com/poolferry/poolferry/api"
	"github.com/poolferry/poolferry/internal/cmd"
)

var poolferryDoc = `
poolferry talks to a running poolferryd. It triggers converter
migrations, manages ownership handovers, sweeps guarded funds and
streams migration events.
`

// Main is the entry point proper. It is separate from main so tests
// can invoke the tool with arbitrary arguments.
func Main(args []string) int {
	ctx, err := cmd.DefaultContext(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR %v\n", err)
		return 2
	}
	return cmd.Main(newPoolferryCommand(), ctx, args[1:])
}

func newPoolferryCommand() *cmd.SuperCommand {
	tool := cmd.NewSuperCommand(cmd.SuperCommandParams{
		Name:        "poolferry",
		Purpose:     "Operate a poolferry orchestrator.",
		Doc:         poolferryDoc,
		FlagKnownAs: "option",
	})
	tool.Register(&migrateCommand{})
	tool.Register(&showConverterCommand{})
	tool.Register(&transferOwnershipCommand{})
	tool.Register(&acceptOwnershipCommand{})
	tool.Register(&sweepCommand{})
	tool.Register(&watchCommand{})
	tool.Register(&versionCommand{})
	return tool
}

func main() {
	os.Exit(Main(os.Args))
}

const defaultAPIURL = "http://localhost:17170"

// apiCommand is the base for every subcommand that talks to the
// daemon's API.
type apiCommand struct {
	cmd.CommandBase

	apiURL string
}

func (c *apiCommand) SetFlags(f *gnuflag.FlagSet) {
	f.StringVar(&c.apiURL, "api-url", defaultAPIURL, "base URL of the orchestrator API")
}

func (c *apiCommand) newClient() (*api.Client, error) {
	return api.NewClient(c.apiURL)
}
