// Copyright (c) e4s-cl-go authors. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package cmdline

import "github.com/spf13/cobra"

var rootCmd = &cobra.Command{Use: "e4s-cl"}

var parentCmd = &cobra.Command{Use: "launch"}

func init() {
	rootCmd.AddCommand(parentCmd)
}
