// Copyright (c) e4s-cl-go authors. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package pathutil

import "testing"

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"/a/b/../c/": "/a/c",
		"/a/./b":     "/a/b",
		"/a/b/":      "/a/b",
		"/":          "/",
		"":           "",
	}
	for in, want := range cases {
		if got := Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestContains(t *testing.T) {
	cases := []struct {
		container, containee string
		want                 bool
	}{
		{"/usr/lib", "/usr/lib/libmpi.so", true},
		{"/usr/lib", "/usr/lib", true},
		{"/usr/lib", "/usr/libexec", false},
		{"/usr/lib", "/usr", false},
		{"/usr/lib", "/usr/lib/../libexec/foo", false},
	}
	for _, c := range cases {
		if got := Contains(c.container, c.containee); got != c.want {
			t.Errorf("Contains(%q, %q) = %v, want %v", c.container, c.containee, got, c.want)
		}
	}
}

func TestCommonAncestor(t *testing.T) {
	got := CommonAncestor([]string{"/opt/mpi/lib/libmpi.so", "/opt/mpi/lib/libmpi_mpifh.so"})
	if got != "/opt/mpi/lib" {
		t.Errorf("CommonAncestor = %q, want /opt/mpi/lib", got)
	}
}
