// Copyright (c) e4s-cl-go authors. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package main

import (
	"os"

	"github.com/e4s-cl/e4s-cl-go/cmd/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
