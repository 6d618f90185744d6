// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"encoding/json"
	"fmt"

	"github.com/juju/errors"
	"github.com/juju/gnuflag"

	"github.com/poolferry/poolferry/internal/cmd"
)

var watchDoc = `
watch streams migration events from the orchestrator, one JSON object
per line, until interrupted. With --limit the stream closes after the
given number of events, which suits scripting a wait for a particular
migration to complete.
`

type watchCommand struct {
	apiCommand

	limit int
}

func (c *watchCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:    "watch",
		Purpose: "Stream migration events.",
		Doc:     watchDoc,
	}
}

func (c *watchCommand) SetFlags(f *gnuflag.FlagSet) {
	c.apiCommand.SetFlags(f)
	f.IntVar(&c.limit, "limit", 0, "stop after this many events; 0 means stream forever")
}

func (c *watchCommand) Run(ctx *cmd.Context) error {
	client, err := c.newClient()
	if err != nil {
		return errors.Trace(err)
	}
	watcher, err := client.Watch(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	defer watcher.Close()
	ctx.Infof("streaming migration events from %s", c.apiURL)

	for seen := 0; c.limit == 0 || seen < c.limit; seen++ {
		event, err := watcher.Next()
		if err != nil {
			return errors.Annotate(err, "reading event stream")
		}
		line, err := json.Marshal(event)
		if err != nil {
			return errors.Trace(err)
		}
		fmt.Fprintln(ctx.Stdout, string(line))
	}
	return nil
}
