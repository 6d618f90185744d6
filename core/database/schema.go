// Copyright 2023 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package database

// Delta represents a schema change and the args to be applied to a
// database.
type Delta struct {
	stmt string
	args []any
}

// MakeDelta generates a Delta from the given statement and args.
func MakeDelta(stmt string, args ...any) Delta {
	return Delta{
		stmt: stmt,
		args: args,
	}
}

// Stmt returns the delta statement.
func (d Delta) Stmt() string {
	return d.stmt
}

// Args returns the delta args.
func (d Delta) Args() []any {
	return d.args
}
