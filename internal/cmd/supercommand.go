// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package cmd

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/juju/gnuflag"
)

// UnrecognizedCommand defines an error that specifies when a command
// is not found.
type UnrecognizedCommand struct {
	message string
}

// UnrecognizedCommandf creates an UnrecognizedCommand with a bespoke
// message for the unrecognized command.
func UnrecognizedCommandf(format string, args ...interface{}) *UnrecognizedCommand {
	return &UnrecognizedCommand{
		message: fmt.Sprintf(format, args...),
	}
}

// DefaultUnrecognizedCommand creates the default message for an
// UnrecognizedCommand.
func DefaultUnrecognizedCommand(name string) *UnrecognizedCommand {
	return UnrecognizedCommandf("unrecognized command: %s", name)
}

func (e *UnrecognizedCommand) Error() string {
	return e.message
}

// SuperCommandParams provides a way to have default parameters to the
// NewSuperCommand call.
type SuperCommandParams struct {
	// UsagePrefix should be set when the SuperCommand is itself a
	// subcommand of some other SuperCommand.
	UsagePrefix string

	Name    string
	Purpose string
	Doc     string

	// FlagKnownAs allows different projects to customise what their
	// flags are known as, e.g. 'flag', 'option'.
	FlagKnownAs string
}

// SuperCommand is a Command that selects a subcommand and assumes its
// properties; any command line arguments that were not used in
// selecting the subcommand are passed down to it, and to Run a
// SuperCommand is to run its selected subcommand.
type SuperCommand struct {
	CommandBase
	Name        string
	Purpose     string
	Doc         string
	FlagKnownAs string

	usagePrefix string
	subcmds     map[string]Command
	help        *helpCommand
	action      Command
	showHelp    bool
}

// NewSuperCommand creates and initializes a new SuperCommand.
func NewSuperCommand(params SuperCommandParams) *SuperCommand {
	command := &SuperCommand{
		Name:        params.Name,
		Purpose:     params.Purpose,
		Doc:         params.Doc,
		FlagKnownAs: params.FlagKnownAs,
		usagePrefix: params.UsagePrefix,
		subcmds:     make(map[string]Command),
	}
	if command.FlagKnownAs == "" {
		command.FlagKnownAs = "flag"
	}
	command.help = &helpCommand{super: command}
	command.Register(command.help)
	return command
}

// Register makes a subcommand available for use on the command line.
// The command will be registered under its name and any aliases. If
// there is a conflict, Register will panic.
func (c *SuperCommand) Register(subcmd Command) {
	info := subcmd.Info()
	c.insert(info.Name, subcmd)
	for _, name := range info.Aliases {
		c.insert(name, subcmd)
	}
}

func (c *SuperCommand) insert(name string, subcmd Command) {
	if _, found := c.subcmds[name]; found {
		panic(fmt.Sprintf("command already registered: %q", name))
	}
	c.subcmds[name] = subcmd
}

// Info returns a description of the currently selected subcommand, or
// of the SuperCommand itself if no subcommand has been specified.
func (c *SuperCommand) Info() *Info {
	if c.action != nil {
		info := *c.action.Info()
		info.Name = fmt.Sprintf("%s %s", c.Name, info.Name)
		info.FlagKnownAs = c.FlagKnownAs
		return &info
	}
	return c.overview()
}

func (c *SuperCommand) overview() *Info {
	return &Info{
		Name:        c.Name,
		Args:        "<command> ...",
		Purpose:     c.Purpose,
		Doc:         strings.TrimSpace(c.Doc + "\n\n" + c.describeCommands()),
		FlagKnownAs: c.FlagKnownAs,
	}
}

func (c *SuperCommand) describeCommands() string {
	names := make([]string, 0, len(c.subcmds))
	longest := 0
	for name := range c.subcmds {
		if len(name) > longest {
			longest = len(name)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	buf := &bytes.Buffer{}
	fmt.Fprintf(buf, "Commands:\n")
	for _, name := range names {
		purpose := c.subcmds[name].Info().Purpose
		fmt.Fprintf(buf, "    %-*s  %s\n", longest, name, purpose)
	}
	return buf.String()
}

// AllowInterspersedFlags returns false; flags intended for a
// subcommand must follow its name.
func (c *SuperCommand) AllowInterspersedFlags() bool {
	return false
}

// SetFlags adds the options that apply to all commands.
func (c *SuperCommand) SetFlags(f *gnuflag.FlagSet) {
	f.BoolVar(&c.showHelp, "h", false, "Show help on a command or other topic.")
	f.BoolVar(&c.showHelp, "help", false, "")
}

// Init selects the subcommand named by the first positional argument
// and parses the remaining arguments against its flags.
func (c *SuperCommand) Init(args []string) error {
	if c.showHelp {
		c.action = c.help
		return c.action.Init(args)
	}
	if len(args) == 0 {
		c.action = c.help
		return c.action.Init(nil)
	}

	name := args[0]
	subcmd, found := c.subcmds[name]
	if !found {
		return DefaultUnrecognizedCommand(name)
	}
	c.action = subcmd

	f := gnuflag.NewFlagSetWithFlagKnownAs(name, gnuflag.ContinueOnError, c.FlagKnownAs)
	f.SetOutput(io.Discard)
	subcmd.SetFlags(f)
	if err := f.Parse(subcmd.AllowInterspersedFlags(), args[1:]); err != nil {
		if err == gnuflag.ErrHelp {
			c.action = c.help
			return c.action.Init([]string{name})
		}
		return err
	}
	return subcmd.Init(f.Args())
}

// Run executes the subcommand that was selected in Init.
func (c *SuperCommand) Run(ctx *Context) error {
	if c.action == nil {
		panic("Run: missing subcommand; Init failed or not called")
	}
	return c.action.Run(ctx)
}

type helpCommand struct {
	CommandBase
	super *SuperCommand
	topic string
}

func (c *helpCommand) Info() *Info {
	return &Info{
		Name:    "help",
		Args:    "[topic]",
		Purpose: "Show help on a command or other topic.",
	}
}

func (c *helpCommand) Init(args []string) error {
	switch len(args) {
	case 0:
	case 1:
		c.topic = args[0]
	default:
		return fmt.Errorf("extra arguments to command help: %q", args[1:])
	}
	return nil
}

func (c *helpCommand) Run(ctx *Context) error {
	super := c.super
	if c.topic == "" {
		f := gnuflag.NewFlagSetWithFlagKnownAs(super.Name, gnuflag.ContinueOnError, super.FlagKnownAs)
		f.SetOutput(io.Discard)
		super.SetFlags(f)
		ctx.Stdout.Write(super.overview().Help(f))
		return nil
	}

	subcmd, found := super.subcmds[c.topic]
	if !found {
		return fmt.Errorf("unknown command or topic for %s", c.topic)
	}
	info := *subcmd.Info()
	if super.usagePrefix != "" {
		info.Name = fmt.Sprintf("%s %s %s", super.usagePrefix, super.Name, info.Name)
	} else {
		info.Name = fmt.Sprintf("%s %s", super.Name, info.Name)
	}
	info.FlagKnownAs = super.FlagKnownAs

	f := gnuflag.NewFlagSetWithFlagKnownAs(c.topic, gnuflag.ContinueOnError, super.FlagKnownAs)
	f.SetOutput(io.Discard)
	subcmd.SetFlags(f)
	ctx.Stdout.Write(info.Help(f))
	return nil
}
