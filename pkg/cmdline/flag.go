// Copyright (c) e4s-cl-go authors. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

// Package cmdline wraps cobra/pflag with a Flag descriptor that also knows
// how to resolve its value from an environment variable, so every flag in
// the CLI surface honors the CLI > env > default precedence without each
// command repeating the same boilerplate.
package cmdline

import "github.com/spf13/cobra"

// Flag fully describes a persistent or local flag, including the env vars
// that can set its value when not given on the command line.
type Flag struct {
	// ID uniquely identifies this flag across the whole command tree.
	ID string
	// Value is a pointer to the variable the flag is bound to (string,
	// bool, int, uint32, []string, map[string]string, ...).
	Value interface{}
	// DefaultValue is used both as pflag's default and as the zero state
	// compared against when env resolution decides whether a flag was
	// already set explicitly on the command line.
	DefaultValue interface{}
	Name         string
	ShortHand    string
	Usage        string
	// EnvKeys lists environment variables consulted, in priority order,
	// when the flag wasn't passed on the command line.
	EnvKeys []string
	Hidden  bool
	// Deprecated, when non-empty, is shown as a deprecation notice and
	// disables EnvKeys resolution for the flag.
	Deprecated string
	// WithoutPrefix skips the CLI's env var namespace prefix for this
	// flag's EnvKeys (used for flags mirroring a third-party tool's own
	// variable, e.g. an upstream launcher's env var).
	WithoutPrefix bool
}

// CommandManager owns the full command tree and every Flag registered
// against it, and is the single place flag/env resolution happens.
type CommandManager struct {
	rootCmd *cobra.Command
	flags   []*Flag
	errPool []error
}

// NewCommandManager constructs a manager rooted at rootCmd.
func NewCommandManager(rootCmd *cobra.Command) (*CommandManager, error) {
	return newCommandManager(rootCmd)
}

func newCommandManager(rootCmd *cobra.Command) (*CommandManager, error) {
	if rootCmd == nil {
		return nil, errNilCommand
	}
	return &CommandManager{rootCmd: rootCmd}, nil
}

// RootCmd returns the command tree's root.
func (m *CommandManager) RootCmd() *cobra.Command {
	return m.rootCmd
}

// GetError returns every error accumulated since the last reset, letting
// callers register many flags and check failures once at the end.
func (m *CommandManager) GetError() []error {
	return m.errPool
}
