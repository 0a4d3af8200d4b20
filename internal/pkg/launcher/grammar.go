// Copyright (c) e4s-cl-go authors. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

// Package launcher recognizes MPI job-launcher command lines (mpirun,
// srun, aprun, jsrun, ...) well enough to split a user-supplied command
// into the launcher's own arguments and the wrapped program's argv, using
// a per-launcher arity table rather than a full argument grammar.
package launcher

import (
	"regexp"
	"strings"
)

// Grammar describes how to tokenize one launcher's command line.
type Grammar struct {
	// ScriptNames are the basenames this grammar applies to.
	ScriptNames []string
	// Flags maps a flag spelling to the number of extra tokens it
	// consumes (0 for a bare switch, 1 for `--flag value`, ...).
	Flags map[string]int
	// Reserved lists directories this launcher manages itself and that
	// the dependency-discovery engine should never attribute to the
	// traced application (e.g. Slurm's spool directories).
	Reserved []string
}

var registry = map[string]*Grammar{}

func register(g *Grammar) {
	for _, name := range g.ScriptNames {
		registry[name] = g
	}
}

// Lookup returns the grammar registered for a launcher basename.
func Lookup(name string) (*Grammar, bool) {
	g, ok := registry[name]
	return g, ok
}

// ReservedDirectories returns the reserved directory list for the launcher
// invoked by argv, or nil if argv doesn't match a known launcher.
func ReservedDirectories(argv []string) []string {
	if len(argv) == 0 {
		return nil
	}
	if g, ok := Lookup(baseName(argv[0])); ok {
		return g.Reserved
	}
	return nil
}

func baseName(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[i+1:]
	}
	return path
}

var equalsFlag = regexp.MustCompile(`^(--[\w-]+)=`)

// Parse walks argv against grammar's flag table, returning the tokens that
// belong to the launcher itself and the tokens that make up the wrapped
// program's command line. Parsing stops -- and everything from that point
// on is treated as the program -- at the first token that isn't a known
// launcher flag.
func Parse(grammar *Grammar, argv []string) (launcherArgv, programArgv []string) {
	i := 0
	for i < len(argv) {
		tok := argv[i]

		if m := equalsFlag.FindStringSubmatch(tok); m != nil {
			if _, ok := grammar.Flags[m[1]]; ok {
				launcherArgv = append(launcherArgv, tok)
				i++
				continue
			}
			break
		}

		arity, ok := grammar.Flags[tok]
		if !ok {
			break
		}
		launcherArgv = append(launcherArgv, argv[i:min(i+1+arity, len(argv))]...)
		i += 1 + arity
	}
	return launcherArgv, argv[i:]
}

// FilterArguments partitions argv into tokens grammar recognizes and
// tokens it doesn't, without assuming the foreign tokens only appear at
// the end; used by the translation orchestrator to separate the shim's own
// flags from flags meant for the wrapped application.
func FilterArguments(grammar *Grammar, argv []string) (known, foreign []string) {
	i := 0
	for i < len(argv) {
		tok := argv[i]

		if m := equalsFlag.FindStringSubmatch(tok); m != nil {
			if _, ok := grammar.Flags[m[1]]; ok {
				known = append(known, tok)
				i++
				continue
			}
			foreign = append(foreign, tok)
			i++
			continue
		}

		if arity, ok := grammar.Flags[tok]; ok {
			known = append(known, argv[i:min(i+1+arity, len(argv))]...)
			i += 1 + arity
			continue
		}

		foreign = append(foreign, tok)
		i++
	}
	return known, foreign
}

// Interpret splits a full command line into its launcher prefix and the
// wrapped program's argv. A literal "--" takes priority over grammar
// lookup: whatever precedes it is the launcher side regardless of whether
// its basename is recognized. Otherwise, if argv[0]'s basename matches a
// registered grammar, that grammar's arity table drives the split;
// unrecognized launchers are passed through with an empty launcher prefix.
func Interpret(argv []string) (launcherArgv, programArgv []string) {
	for i, tok := range argv {
		if tok == "--" {
			return argv[:i], argv[i+1:]
		}
	}
	if len(argv) == 0 {
		return nil, nil
	}
	grammar, ok := Lookup(baseName(argv[0]))
	if !ok {
		return nil, argv
	}
	launcherArgv, programArgv = Parse(grammar, argv[1:])
	return append([]string{argv[0]}, launcherArgv...), programArgv
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
