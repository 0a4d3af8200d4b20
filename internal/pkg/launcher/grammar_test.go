// Copyright (c) e4s-cl-go authors. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package launcher

import (
	"reflect"
	"testing"
)

func TestInterpretMpirun(t *testing.T) {
	argv := []string{"mpirun", "-n", "4", "--map-by", "node", "./app", "--iters", "10"}
	l, p := Interpret(argv)

	wantLauncher := []string{"mpirun", "-n", "4", "--map-by", "node"}
	wantProgram := []string{"./app", "--iters", "10"}

	if !reflect.DeepEqual(l, wantLauncher) {
		t.Errorf("launcher argv = %v, want %v", l, wantLauncher)
	}
	if !reflect.DeepEqual(p, wantProgram) {
		t.Errorf("program argv = %v, want %v", p, wantProgram)
	}
}

func TestInterpretDoubleDashWins(t *testing.T) {
	argv := []string{"mpirun", "-n", "4", "--", "./app", "-n", "wat"}
	l, p := Interpret(argv)

	wantLauncher := []string{"mpirun", "-n", "4"}
	wantProgram := []string{"./app", "-n", "wat"}

	if !reflect.DeepEqual(l, wantLauncher) {
		t.Errorf("launcher argv = %v, want %v", l, wantLauncher)
	}
	if !reflect.DeepEqual(p, wantProgram) {
		t.Errorf("program argv = %v, want %v", p, wantProgram)
	}
}

func TestInterpretUnknownLauncherPassesThrough(t *testing.T) {
	argv := []string{"./app", "--foo", "bar"}
	l, p := Interpret(argv)
	if l != nil {
		t.Errorf("expected nil launcher argv, got %v", l)
	}
	if !reflect.DeepEqual(p, argv) {
		t.Errorf("expected program argv to be the whole command, got %v", p)
	}
}

func TestReservedDirectoriesSrun(t *testing.T) {
	got := ReservedDirectories([]string{"srun", "-n", "4", "./app"})
	want := []string{"/var/spool/slurm", "/var/spool/slurmd"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("reserved dirs = %v, want %v", got, want)
	}
}

func TestFilterArguments(t *testing.T) {
	grammar, _ := Lookup("mpirun")
	known, foreign := FilterArguments(grammar, []string{"-n", "4", "--unknown-flag", "x"})

	if !reflect.DeepEqual(known, []string{"-n", "4"}) {
		t.Errorf("known = %v", known)
	}
	if !reflect.DeepEqual(foreign, []string{"--unknown-flag", "x"}) {
		t.Errorf("foreign = %v", foreign)
	}
}
