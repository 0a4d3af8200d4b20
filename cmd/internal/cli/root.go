// Copyright (c) e4s-cl-go authors. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

// Package cli assembles the e4s-cl-go command tree: a cobra root command
// carrying the global flags every pipeline needs, and one file per
// subcommand registering itself against cmdInits at package init time.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/e4s-cl/e4s-cl-go/internal/pkg/rt"
	"github.com/e4s-cl/e4s-cl-go/pkg/cmdline"
	"github.com/e4s-cl/e4s-cl-go/pkg/config"
	"github.com/e4s-cl/e4s-cl-go/pkg/e4serr"
	"github.com/e4s-cl/e4s-cl-go/pkg/sylog"
	"github.com/e4s-cl/e4s-cl-go/pkg/syfs"
)

// packageVersion is set at build time via -ldflags; left as a plain
// default otherwise.
var packageVersion = "0.0.0-dev"

// cmdInits holds the registration functions every subcommand file appends
// itself to via an init() func, mirroring the teacher's own cmdInits
// pattern rather than a hand-maintained import-order list.
var cmdInits = make([]func(*cmdline.CommandManager), 0)

var (
	debugFlagVal   bool
	quietFlagVal   bool
	verboseFlagVal bool
	dryRunFlagVal  bool
	noColorFlagVal bool
	printConfig    bool
)

var rootDebugFlag = cmdline.Flag{
	ID: "rootDebugFlag", Value: &debugFlagVal, DefaultValue: false,
	Name: "debug", ShortHand: "d", Usage: "print debugging information (highest verbosity)",
	EnvKeys: []string{"DEBUG"},
}

var rootQuietFlag = cmdline.Flag{
	ID: "rootQuietFlag", Value: &quietFlagVal, DefaultValue: false,
	Name: "quiet", ShortHand: "q", Usage: "suppress normal output",
}

var rootVerboseFlag = cmdline.Flag{
	ID: "rootVerboseFlag", Value: &verboseFlagVal, DefaultValue: false,
	Name: "verbose", ShortHand: "v", Usage: "print additional information",
}

var rootDryRunFlag = cmdline.Flag{
	ID: "rootDryRunFlag", Value: &dryRunFlagVal, DefaultValue: false,
	Name: "dry-run", Usage: "print the command that would be executed instead of running it",
}

var rootNoColorFlag = cmdline.Flag{
	ID: "rootNoColorFlag", Value: &noColorFlagVal, DefaultValue: false,
	Name: "nocolor", Usage: "print without color output",
}

var rootPrintConfigFlag = cmdline.Flag{
	ID: "rootPrintConfigFlag", Value: &printConfig, DefaultValue: false,
	Name: "print-config", Usage: "print the resolved configuration file and exit", Hidden: true,
}

var rootCmd = &cobra.Command{
	Use:           "e4s-cl",
	Short:         "Launch MPI applications in containers",
	Long:          "e4s-cl runs MPI applications inside containers, resolving the host dependencies the container needs and, where necessary, translating between MPI ABI families.",
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var versionCmd = &cobra.Command{
	Use:                   "version",
	Short:                 "Show the e4s-cl-go version",
	DisableFlagsInUseLine: true,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(packageVersion)
	},
}

func resolveLogLevel() int {
	switch {
	case debugFlagVal:
		return int(sylog.DebugLevel)
	case verboseFlagVal:
		return int(sylog.VerboseLevel)
	case quietFlagVal:
		return int(sylog.WarnLevel) - 1
	default:
		return int(sylog.InfoLevel)
	}
}

// currentContext builds the rt.Context this invocation runs with: dry-run
// from its own flag, and a detect-child role inferred from the environment
// markers a detect-child is re-invoked with, so a bare "profile detect"
// subprocess spawned by AggregateRanks behaves as the child without a flag
// of its own to carry that state.
func currentContext() rt.Context {
	role := rt.RoleNone
	if _, ok := os.LookupEnv("__E4SCL_PIPE_FD"); ok {
		role = rt.RoleDetectChild
	} else if _, ok := os.LookupEnv("__E4SCL_PIPE_NAME"); ok {
		role = rt.RoleDetectChild
	}
	return rt.New(dryRunFlagVal, role)
}

// Init builds the command tree and registers every flag/subcommand.
func Init() *cmdline.CommandManager {
	manager, err := cmdline.NewCommandManager(rootCmd)
	if err != nil {
		sylog.Fatalf("cli: %s", err)
	}

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := manager.UpdateCmdFlagFromEnv(rootCmd, os.Getpid(), nil); err != nil {
			return err
		}
		if err := manager.UpdateCmdFlagFromEnv(cmd, os.Getpid(), nil); err != nil {
			return err
		}
		sylog.SetLevel(resolveLogLevel(), !noColorFlagVal)
		return nil
	}

	manager.RegisterFlagForCmd(&rootDebugFlag, rootCmd)
	manager.RegisterFlagForCmd(&rootQuietFlag, rootCmd)
	manager.RegisterFlagForCmd(&rootVerboseFlag, rootCmd)
	manager.RegisterFlagForCmd(&rootDryRunFlag, rootCmd)
	manager.RegisterFlagForCmd(&rootNoColorFlag, rootCmd)
	manager.RegisterFlagForCmd(&rootPrintConfigFlag, rootCmd)

	rootCmd.AddCommand(versionCmd)

	for _, cmdInit := range cmdInits {
		cmdInit(manager)
	}

	if errs := manager.GetError(); len(errs) > 0 {
		for _, e := range errs {
			sylog.Errorf("%s", e)
		}
		sylog.Fatalf("cli: command manager reported %d error(s)", len(errs))
	}

	return manager
}

// printResolvedConfig implements --print-config: it is checked once, ahead
// of normal dispatch, so it works even with no subcommand.
func printResolvedConfig() {
	c, err := config.Load(syfs.ConfigFile())
	if err != nil {
		sylog.Fatalf("cli: %s", err)
	}
	fmt.Printf("# %s\n", syfs.ConfigFile())
	fmt.Printf("backends: %v\n", c.Backends)
	fmt.Printf("launcher_options: %v\n", c.LauncherOptions)
}

// Execute runs the command tree and returns the process exit code, per
// e4serr's dispatch contract.
func Execute() int {
	manager := Init()
	_ = manager

	for _, a := range os.Args[1:] {
		if a == "--print-config" {
			printResolvedConfig()
			return e4serr.ExitSuccess
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	defer func() {
		signal.Stop(sig)
		cancel()
	}()
	go func() {
		select {
		case <-sig:
			cancel()
		case <-ctx.Done():
		}
	}()

	err := rootCmd.ExecuteContext(ctx)
	if err == context.Canceled {
		err = e4serr.NewKeyboardInterruptError()
	}
	return e4serr.Dispatch(err)
}
