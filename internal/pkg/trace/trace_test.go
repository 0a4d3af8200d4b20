// Copyright (c) e4s-cl-go authors. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package trace

import (
	"context"
	"testing"
)

func TestTraceRejectsEmptyArgv(t *testing.T) {
	_, _, err := New().Trace(context.Background(), nil)
	if err == nil {
		t.Fatal("expected an error for an empty argv")
	}
}
