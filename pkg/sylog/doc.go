// Copyright (c) e4s-cl-go authors. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

// Package sylog implements a small leveled logger for the e4s-cl-go code
// base, independent of the standard library's log package so that level
// filtering and color can be controlled through a single env var.
package sylog
