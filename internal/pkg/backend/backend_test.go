// Copyright (c) e4s-cl-go authors. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package backend

import (
	"sort"
	"testing"

	"github.com/e4s-cl/e4s-cl-go/pkg/bindset"
)

func TestNamesListsEveryRegisteredBackend(t *testing.T) {
	names := Names()
	sort.Strings(names)
	want := []string{"apptainer", "containerless", "docker", "podman", "shifter", "singularity"}
	if len(names) != len(want) {
		t.Fatalf("got %v, want %v", names, want)
	}
	for i, n := range want {
		if names[i] != n {
			t.Fatalf("got %v, want %v", names, want)
		}
	}
}

func TestNewUnknownBackend(t *testing.T) {
	if _, err := New("nonexistent"); err == nil {
		t.Fatal("expected an error for an unregistered backend")
	}
}

func TestApptainerFormatBindsAndEnvPrefix(t *testing.T) {
	b, _ := New("apptainer")
	b.BindFile("/host/data", "/data", bindset.ReadOnly)
	b.BindEnv("FOO", "bar")

	plan, err := b.Prepare("image.sif", []string{"true"})
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if plan.Env["APPTAINERENV_FOO"] != "bar" {
		t.Fatalf("expected prefixed env var, got %v", plan.Env)
	}
	if plan.Env["APPTAINER_BIND"] != "/host/data:/data:ro" {
		t.Fatalf("unexpected bind spec: %v", plan.Env["APPTAINER_BIND"])
	}
}

func TestShifterRestrictsNonVarEtcOrigins(t *testing.T) {
	if !isShifterRestricted("/var/tmp/x") {
		t.Fatal("expected /var/tmp/x to be restricted-allowed")
	}
	if !isShifterRestricted("/etc/passwd") {
		t.Fatal("expected /etc/passwd to be restricted-allowed")
	}
	if isShifterRestricted("/home/user/lib.so") {
		t.Fatal("expected /home paths to require staging")
	}
}

func TestContainerlessRejectsImage(t *testing.T) {
	b, _ := New("containerless")
	if _, err := b.Prepare("some.sif", []string{"true"}); err == nil {
		t.Fatal("expected containerless to reject a non-empty image")
	}
}
