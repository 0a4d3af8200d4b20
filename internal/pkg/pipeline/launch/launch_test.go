// Copyright (c) e4s-cl-go authors. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package launch

import (
	"testing"

	"github.com/e4s-cl/e4s-cl-go/internal/pkg/storage"
)

func TestMergeProfilePreferslCLIValues(t *testing.T) {
	params := Parameters{Image: "cli.sif"}
	merged := MergeProfile(params, storage.Profile{Image: "profile.sif", Backend: "apptainer"})
	if merged.Image != "cli.sif" {
		t.Fatalf("expected CLI image to win, got %q", merged.Image)
	}
	if merged.Backend != "apptainer" {
		t.Fatalf("expected profile backend to fill the gap, got %q", merged.Backend)
	}
}

func TestFormatExecuteArgvIncludesEveryField(t *testing.T) {
	argv := formatExecuteArgv("/usr/bin/e4s-cl", Parameters{
		Image: "x.sif", Backend: "apptainer", Libraries: []string{"/a.so", "/b.so"},
	})
	joined := ""
	for _, a := range argv {
		joined += a + " "
	}
	for _, want := range []string{"--image", "x.sif", "--backend", "apptainer", "--libraries", "/a.so,/b.so"} {
		if !contains(joined, want) {
			t.Fatalf("expected argv to contain %q, got %q", want, joined)
		}
	}
}

func contains(haystack, needle string) bool {
	return len(haystack) >= len(needle) && (func() bool {
		for i := 0; i+len(needle) <= len(haystack); i++ {
			if haystack[i:i+len(needle)] == needle {
				return true
			}
		}
		return false
	})()
}

func TestAppendIfMissingDeduplicates(t *testing.T) {
	got := appendIfMissing([]string{"/a"}, "/a")
	if len(got) != 1 {
		t.Fatalf("expected no duplicate, got %v", got)
	}
	got = appendIfMissing(got, "/b")
	if len(got) != 2 {
		t.Fatalf("expected the new entry to be appended, got %v", got)
	}
}
