// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/poolferry/poolferry/internal/cmd"
)

var poolferrydDoc = `
poolferryd runs the converter upgrade orchestrator: it serves the
ledger API, provisions replacement converters and migrates reserves
on request.
`

// Main is the entry point proper. It is separate from main so tests
// can invoke the daemon with arbitrary arguments.
func Main(args []string) int {
	ctx, err := cmd.DefaultContext(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR %v\n", err)
		return 2
	}
	return cmd.Main(newDaemonCommand(), ctx, args[1:])
}

func newDaemonCommand() *cmd.SuperCommand {
	daemon := cmd.NewSuperCommand(cmd.SuperCommandParams{
		Name:    "poolferryd",
		Purpose: "Run the poolferry orchestrator daemon.",
		Doc:     poolferrydDoc,
	})
	daemon.Register(&runCommand{})
	daemon.Register(&bootstrapCommand{})
	daemon.Register(&versionCommand{})
	return daemon
}

func main() {
	os.Exit(Main(os.Args))
}
