// Copyright (c) e4s-cl-go authors. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/e4s-cl/e4s-cl-go/internal/pkg/pipeline/detect"
	"github.com/e4s-cl/e4s-cl-go/internal/pkg/storage"
	"github.com/e4s-cl/e4s-cl-go/pkg/cmdline"
	"github.com/e4s-cl/e4s-cl-go/pkg/e4serr"
	"github.com/e4s-cl/e4s-cl-go/pkg/syfs"
)

func readFileArg(path string) ([]byte, error) {
	return os.ReadFile(path)
}

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Create and manage launch profiles",
}

func openStore() (*storage.ProfileStore, error) {
	return storage.OpenProfileStore(syfs.ProfilesFile("user"))
}

// --- create ---

var (
	pCreateBackend   string
	pCreateImage     string
	pCreateSource    string
	pCreateFiles     []string
	pCreateLibraries []string
)

var pCreateBackendFlag = cmdline.Flag{ID: "pCreateBackendFlag", Value: &pCreateBackend, DefaultValue: "", Name: "backend"}
var pCreateImageFlag = cmdline.Flag{ID: "pCreateImageFlag", Value: &pCreateImage, DefaultValue: "", Name: "image"}
var pCreateSourceFlag = cmdline.Flag{ID: "pCreateSourceFlag", Value: &pCreateSource, DefaultValue: "", Name: "source"}
var pCreateFilesFlag = cmdline.Flag{ID: "pCreateFilesFlag", Value: &pCreateFiles, DefaultValue: []string{}, Name: "files"}
var pCreateLibrariesFlag = cmdline.Flag{ID: "pCreateLibrariesFlag", Value: &pCreateLibraries, DefaultValue: []string{}, Name: "libraries"}

var profileCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a new profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		_, err = store.Create(storage.Profile{
			Name: args[0], Backend: pCreateBackend, Image: pCreateImage, Source: pCreateSource,
			Files: pCreateFiles, Libraries: pCreateLibraries,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Profile %s created.\n", args[0])
		return nil
	},
}

// --- delete ---

var profileDeleteCmd = &cobra.Command{
	Use:   "delete <name-or-pattern>",
	Short: "Delete one or more profiles, '*'/'#' wildcards supported",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		removed, err := store.DeleteMatching(args[0])
		if err != nil {
			return err
		}
		if len(removed) == 0 {
			return e4serr.NewProfileSelectionError("no matching profile: " + args[0])
		}
		for _, name := range removed {
			fmt.Printf("Profile %s deleted.\n", name)
		}
		return nil
	},
}

// --- edit ---

var (
	pEditAddFiles     []string
	pEditAddLibraries []string
)

var pEditAddFilesFlag = cmdline.Flag{ID: "pEditAddFilesFlag", Value: &pEditAddFiles, DefaultValue: []string{}, Name: "add-files"}
var pEditAddLibrariesFlag = cmdline.Flag{ID: "pEditAddLibrariesFlag", Value: &pEditAddLibraries, DefaultValue: []string{}, Name: "add-libraries"}

var profileEditCmd = &cobra.Command{
	Use:   "edit <name>",
	Short: "Add files or libraries to an existing profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		result, err := store.Edit(args[0], pEditAddFiles, pEditAddLibraries)
		if err != nil {
			return err
		}
		for _, f := range result.AddedFiles {
			fmt.Printf("added file: %s\n", f)
		}
		for _, l := range result.AddedLibraries {
			fmt.Printf("added library: %s\n", l)
		}
		for _, s := range result.AlreadyPresent {
			fmt.Printf("already present, skipped: %s\n", s)
		}
		return nil
	},
}

// --- list ---

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every available profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		selected, _ := store.Selected()
		for _, p := range store.List() {
			marker := ""
			if p.Name == selected.Name {
				marker = " " + color.New(color.FgGreen).Sprint("[selected]")
			}
			fmt.Printf("%s%s\n", p.Name, marker)
		}
		return nil
	},
}

// --- show ---

var profileShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Print a profile's full configuration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		_, p, ok := store.Get(args[0])
		if !ok {
			return e4serr.NewProfileSelectionError("no matching profile: " + args[0])
		}
		fmt.Printf("name: %s\n", p.Name)
		fmt.Printf("backend: %s\n", p.Backend)
		fmt.Printf("image: %s\n", p.Image)
		fmt.Printf("source: %s\n", p.Source)
		fmt.Printf("wi4mpi: %s\n", p.Wi4MPI)
		fmt.Printf("wi4mpi_options: %s\n", p.Wi4MPIOptions)
		fmt.Printf("files: %s\n", strings.Join(p.Files, ", "))
		fmt.Printf("libraries: %s\n", strings.Join(p.Libraries, ", "))
		return nil
	},
}

// --- diff ---

var profileDiffCmd = &cobra.Command{
	Use:   "diff <name-a> <name-b>",
	Short: "Show the fields that differ between two profiles",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		diffs, err := store.Diff(args[0], args[1])
		if err != nil {
			return err
		}
		if len(diffs) == 0 {
			fmt.Println("no differences")
			return nil
		}
		for _, d := range diffs {
			fmt.Println(d)
		}
		return nil
	},
}

// --- dump ---

var profileDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Print every profile as a JSON array",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		data, err := store.Dump()
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	},
}

// --- import ---

var profileImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import profiles from a profile dump file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		data, err := readFileArg(args[0])
		if err != nil {
			return err
		}
		created, skipped, err := store.Import(data)
		if err != nil {
			return err
		}
		for _, name := range created {
			fmt.Printf("Profile %s created.\n", name)
		}
		for _, name := range skipped {
			fmt.Printf("Profile %s already exists, skipped.\n", name)
		}
		return nil
	},
}

// --- select / unselect / copy ---

var profileSelectCmd = &cobra.Command{
	Use:   "select <name>",
	Short: "Select the profile to use for the next launch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		if err := store.Select(args[0]); err != nil {
			return err
		}
		fmt.Printf("Profile %s selected.\n", args[0])
		return nil
	},
}

var profileUnselectCmd = &cobra.Command{
	Use:   "unselect",
	Short: "Clear the currently selected profile",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		return store.Unselect()
	},
}

var profileCopyCmd = &cobra.Command{
	Use:   "copy <src> <dst>",
	Short: "Copy a profile under a new name",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		if err := store.Copy(args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("Profile %s copied to %s.\n", args[0], args[1])
		return nil
	},
}

// --- detect ---

var profileDetectName string
var profileDetectNameFlag = cmdline.Flag{
	ID: "profileDetectNameFlag", Value: &profileDetectName, DefaultValue: "",
	Name: "profile", ShortHand: "p", Usage: "profile to save discovered dependencies into",
}

var profileDetectCmd = &cobra.Command{
	Use:                   "detect -- <command>",
	Short:                 "Run a command and record its dependencies into a profile",
	Args:                  cobra.ArbitraryArgs,
	DisableFlagsInUseLine: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		return detect.Run(cmd.Context(), currentContext(), store, detect.Options{
			ProfileName: profileDetectName,
			Command:     args,
		})
	},
}

func init() {
	profileDetectCmd.Flags().SetInterspersed(false)
	cmdInits = append(cmdInits, func(manager *cmdline.CommandManager) {
		manager.RegisterFlagForCmd(&pCreateBackendFlag, profileCreateCmd)
		manager.RegisterFlagForCmd(&pCreateImageFlag, profileCreateCmd)
		manager.RegisterFlagForCmd(&pCreateSourceFlag, profileCreateCmd)
		manager.RegisterFlagForCmd(&pCreateFilesFlag, profileCreateCmd)
		manager.RegisterFlagForCmd(&pCreateLibrariesFlag, profileCreateCmd)

		manager.RegisterFlagForCmd(&pEditAddFilesFlag, profileEditCmd)
		manager.RegisterFlagForCmd(&pEditAddLibrariesFlag, profileEditCmd)

		manager.RegisterFlagForCmd(&profileDetectNameFlag, profileDetectCmd)

		profileCmd.AddCommand(profileCreateCmd, profileDeleteCmd, profileEditCmd, profileListCmd,
			profileShowCmd, profileDiffCmd, profileDumpCmd, profileImportCmd,
			profileSelectCmd, profileUnselectCmd, profileCopyCmd, profileDetectCmd)
		manager.RootCmd().AddCommand(profileCmd)
	})
}
