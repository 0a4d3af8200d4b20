// Copyright (c) e4s-cl-go authors. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/e4s-cl/e4s-cl-go/internal/pkg/pipeline/launch"
	"github.com/e4s-cl/e4s-cl-go/internal/pkg/storage"
	"github.com/e4s-cl/e4s-cl-go/pkg/cmdline"
	"github.com/e4s-cl/e4s-cl-go/pkg/e4serr"
	"github.com/e4s-cl/e4s-cl-go/pkg/syfs"
)

var (
	launchProfileName string
	launchImage       string
	launchBackend     string
	launchSource      string
	launchFiles       []string
	launchLibraries   []string
	launchWi4MPI      string
	launchFromFamily  string
)

var launchProfileFlag = cmdline.Flag{
	ID: "launchProfileFlag", Value: &launchProfileName, DefaultValue: "",
	Name: "profile", ShortHand: "p", Usage: "profile to launch with",
}

var launchImageFlag = cmdline.Flag{
	ID: "launchImageFlag", Value: &launchImage, DefaultValue: "",
	Name: "image", Usage: "container image to run",
}

var launchBackendFlag = cmdline.Flag{
	ID: "launchBackendFlag", Value: &launchBackend, DefaultValue: "",
	Name: "backend", Usage: "container backend to use",
}

var launchSourceFlag = cmdline.Flag{
	ID: "launchSourceFlag", Value: &launchSource, DefaultValue: "",
	Name: "source", Usage: "shell script to source inside the container before the program",
}

var launchFilesFlag = cmdline.Flag{
	ID: "launchFilesFlag", Value: &launchFiles, DefaultValue: []string{},
	Name: "files", Usage: "comma-separated extra files to bind",
}

var launchLibrariesFlag = cmdline.Flag{
	ID: "launchLibrariesFlag", Value: &launchLibraries, DefaultValue: []string{},
	Name: "libraries", Usage: "comma-separated extra libraries to bind",
}

var launchWi4MPIFlag = cmdline.Flag{
	ID: "launchWi4MPIFlag", Value: &launchWi4MPI, DefaultValue: "",
	Name: "wi4mpi", Usage: "Wi4MPI installation root to use for translation",
}

var launchFromFlag = cmdline.Flag{
	ID: "launchFromFlag", Value: &launchFromFamily, DefaultValue: "",
	Name: "from", Usage: "MPI family this binary was built against (enables translation)",
}

var launchCmd = &cobra.Command{
	Use:                "launch -- <command>",
	Short:              "Launch an MPI application in a container",
	Args:               cobra.ArbitraryArgs,
	DisableFlagsInUseLine: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := storage.OpenProfileStore(syfs.ProfilesFile("user"))
		if err != nil {
			return err
		}

		params := launch.Parameters{
			Image: launchImage, Backend: launchBackend, Source: launchSource,
			Files: launchFiles, Libraries: launchLibraries, Wi4MPI: launchWi4MPI,
			FromFamily: launchFromFamily,
		}

		name := launchProfileName
		if name == "" {
			if p, err := store.Selected(); err == nil {
				params = launch.MergeProfile(params, p)
			}
		} else {
			_, p, ok := store.Get(name)
			if !ok {
				return e4serr.NewUsageError("no such profile: " + name)
			}
			params = launch.MergeProfile(params, p)
		}

		return launch.Run(currentContext(), launch.Options{Params: params, Command: args})
	},
}

func init() {
	launchCmd.Flags().SetInterspersed(false)
	cmdInits = append(cmdInits, func(manager *cmdline.CommandManager) {
		manager.RegisterFlagForCmd(&launchProfileFlag, launchCmd)
		manager.RegisterFlagForCmd(&launchImageFlag, launchCmd)
		manager.RegisterFlagForCmd(&launchBackendFlag, launchCmd)
		manager.RegisterFlagForCmd(&launchSourceFlag, launchCmd)
		manager.RegisterFlagForCmd(&launchFilesFlag, launchCmd)
		manager.RegisterFlagForCmd(&launchLibrariesFlag, launchCmd)
		manager.RegisterFlagForCmd(&launchWi4MPIFlag, launchCmd)
		manager.RegisterFlagForCmd(&launchFromFlag, launchCmd)
		manager.RootCmd().AddCommand(launchCmd)
	})
}

// splitComma is used by the hidden execute-child command to parse the
// comma-joined lists launch.formatExecuteArgv produces.
func splitComma(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
