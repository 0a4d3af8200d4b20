// Copyright (c) e4s-cl-go authors. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package cli

import (
	"github.com/spf13/cobra"

	"github.com/e4s-cl/e4s-cl-go/internal/pkg/pipeline/execute"
	"github.com/e4s-cl/e4s-cl-go/pkg/cmdline"
)

var (
	executeBackend   string
	executeImage     string
	executeSource    string
	executeLibraries string
	executeFiles     string
)

var executeBackendFlag = cmdline.Flag{
	ID: "executeBackendFlag", Value: &executeBackend, DefaultValue: "", Name: "backend",
}

var executeImageFlag = cmdline.Flag{
	ID: "executeImageFlag", Value: &executeImage, DefaultValue: "", Name: "image",
}

var executeSourceFlag = cmdline.Flag{
	ID: "executeSourceFlag", Value: &executeSource, DefaultValue: "", Name: "source",
}

var executeLibrariesFlag = cmdline.Flag{
	ID: "executeLibrariesFlag", Value: &executeLibraries, DefaultValue: "", Name: "libraries",
}

var executeFilesFlag = cmdline.Flag{
	ID: "executeFilesFlag", Value: &executeFiles, DefaultValue: "", Name: "files",
}

// executeCmd implements "execute", the internal per-rank stage the launch
// pipeline substitutes for the user's own command. It is never meant to be
// typed by a user, only re-invoked by launch.Run via the current
// executable's own argv[0].
var executeCmd = &cobra.Command{
	Use:                   "execute -- <program>",
	Hidden:                true,
	DisableFlagsInUseLine: true,
	Args:                  cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return execute.Run(execute.Options{
			Backend:   executeBackend,
			Image:     executeImage,
			Source:    executeSource,
			Libraries: splitComma(executeLibraries),
			Files:     splitComma(executeFiles),
			Program:   args,
		})
	},
}

func init() {
	executeCmd.Flags().SetInterspersed(false)
	cmdInits = append(cmdInits, func(manager *cmdline.CommandManager) {
		manager.RegisterFlagForCmd(&executeBackendFlag, executeCmd)
		manager.RegisterFlagForCmd(&executeImageFlag, executeCmd)
		manager.RegisterFlagForCmd(&executeSourceFlag, executeCmd)
		manager.RegisterFlagForCmd(&executeLibrariesFlag, executeCmd)
		manager.RegisterFlagForCmd(&executeFilesFlag, executeCmd)
		manager.RootCmd().AddCommand(executeCmd)
	})
}
