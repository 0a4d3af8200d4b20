// Copyright (c) e4s-cl-go authors. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

// Package e4serr implements the typed error taxonomy every pipeline and
// backend driver raises, each carrying enough context to both explain
// itself to a user and map to a stable process exit code.
package e4serr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Exit codes: 0 on success, 100 for a non-optimal but harmless termination
// (keyboard interrupt), 2 for CLI usage errors, and -100 for everything
// else unrecoverable. A process exit status is only a byte, so -100 and
// 100 both survive truncation as distinct, recognizable values (156 and
// 100) rather than colliding with 0-2.
const (
	ExitSuccess = 0
	ExitWarning = 100
	ExitUsage   = 2
	ExitFailure = -100
)

// Handler is implemented by every error value this package defines, letting
// a single dispatch point at the CLI's entry point translate any error
// returned by a pipeline into console output and an exit code.
type Handler interface {
	error
	Handle() int
}

// Base carries a message and optional hints shared by every concrete error
// below, mirroring the hint-rendering rules: one hint is shown inline, more
// than one is rendered as a bulleted list.
type Base struct {
	Value string
	Hints []string
}

func (b *Base) hintsString() string {
	switch len(b.Hints) {
	case 0:
		return ""
	case 1:
		return fmt.Sprintf("Hint: %s\n", b.Hints[0])
	default:
		s := "Hints:\n"
		for _, h := range b.Hints {
			s += fmt.Sprintf("  * %s\n", h)
		}
		return s
	}
}

// UsageError indicates malformed CLI input: a missing required flag, an
// unknown profile selector, an unparsable launcher command line.
type UsageError struct{ Base }

func NewUsageError(value string, hints ...string) *UsageError {
	return &UsageError{Base{Value: value, Hints: hints}}
}

func (e *UsageError) Error() string {
	return fmt.Sprintf("%s\n%s", e.Value, e.hintsString())
}

func (e *UsageError) Handle() int {
	fmt.Println(e.Error())
	return ExitUsage
}

// BackendNotAvailableError indicates the configured container backend's
// executable could not be located on PATH, in the config file, or via its
// environment override.
type BackendNotAvailableError struct {
	Base
	Backend string
}

func NewBackendNotAvailableError(backend string, hints ...string) *BackendNotAvailableError {
	return &BackendNotAvailableError{Base{Value: fmt.Sprintf("backend %q is not available", backend), Hints: hints}, backend}
}

func (e *BackendNotAvailableError) Error() string { return fmt.Sprintf("%s\n%s", e.Value, e.hintsString()) }
func (e *BackendNotAvailableError) Handle() int    { fmt.Println(e.Error()); return ExitFailure }

// AnalysisFailureError indicates the dependency-discovery tracer could not
// complete (tracee crashed, ptrace attach refused, no ELF found at all).
type AnalysisFailureError struct{ Base }

func NewAnalysisFailureError(value string, hints ...string) *AnalysisFailureError {
	return &AnalysisFailureError{Base{Value: value, Hints: hints}}
}

func (e *AnalysisFailureError) Error() string { return fmt.Sprintf("%s\n%s", e.Value, e.hintsString()) }
func (e *AnalysisFailureError) Handle() int    { fmt.Println(e.Error()); return ExitFailure }

// TranslationSetupFailureError indicates the MPI ABI translation shim could
// not be configured: unsupported (source, target) pair, missing install, or
// a required library not found under it.
type TranslationSetupFailureError struct{ Base }

func NewTranslationSetupFailureError(value string, hints ...string) *TranslationSetupFailureError {
	return &TranslationSetupFailureError{Base{Value: value, Hints: hints}}
}

func (e *TranslationSetupFailureError) Error() string {
	return fmt.Sprintf("%s\n%s", e.Value, e.hintsString())
}
func (e *TranslationSetupFailureError) Handle() int { fmt.Println(e.Error()); return ExitFailure }

// ProfileSelectionError indicates an operation needed a selected or named
// profile and none matched.
type ProfileSelectionError struct{ Base }

func NewProfileSelectionError(value string, hints ...string) *ProfileSelectionError {
	if len(hints) == 0 {
		hints = []string{
			"Use `e4s-cl profile create` to create a new profile.",
			"Use `e4s-cl profile select <name>` to select a profile.",
			"Use `e4s-cl profile list` to see available profiles.",
		}
	}
	return &ProfileSelectionError{Base{Value: value, Hints: hints}}
}

func (e *ProfileSelectionError) Error() string { return e.Value }
func (e *ProfileSelectionError) Handle() int    { fmt.Println(e.Error()); fmt.Print(e.hintsString()); return ExitFailure }

// UniqueAttributeError indicates an insert/update would violate a model's
// unique-attribute constraint (profile name collision).
type UniqueAttributeError struct {
	Base
	Model string
}

func NewUniqueAttributeError(model, attr string) *UniqueAttributeError {
	return &UniqueAttributeError{Base{Value: fmt.Sprintf("%s: a record with %q already exists", model, attr)}, model}
}

func (e *UniqueAttributeError) Error() string { return e.Value }
func (e *UniqueAttributeError) Handle() int    { fmt.Println(e.Error()); return ExitFailure }

// StorageReadOnlyError indicates a write was attempted against a storage
// table opened read-only because its backing directory isn't writable.
type StorageReadOnlyError struct{ Base }

func NewStorageReadOnlyError(path string) *StorageReadOnlyError {
	return &StorageReadOnlyError{Base{Value: fmt.Sprintf("storage at %s is read-only", path)}}
}

func (e *StorageReadOnlyError) Error() string { return e.Value }
func (e *StorageReadOnlyError) Handle() int    { fmt.Println(e.Error()); return ExitFailure }

// SubprocessNonZeroError wraps a failed subprocess invocation, keeping the
// last lines of its stderr for display.
type SubprocessNonZeroError struct {
	Base
	Argv     []string
	ExitCode int
	Stderr   []string
}

func NewSubprocessNonZeroError(argv []string, code int, stderr []string) *SubprocessNonZeroError {
	return &SubprocessNonZeroError{
		Base:     Base{Value: fmt.Sprintf("command %v exited with code %d", argv, code)},
		Argv:     argv,
		ExitCode: code,
		Stderr:   stderr,
	}
}

func (e *SubprocessNonZeroError) Error() string { return e.Value }
func (e *SubprocessNonZeroError) Handle() int {
	fmt.Println(e.Error())
	for _, l := range e.Stderr {
		fmt.Println(l)
	}
	return e.ExitCode
}

// InternalError indicates a bug in e4s-cl-go itself. It always carries a
// stack trace captured via github.com/pkg/errors so the backtrace survives
// until it's printed at the dispatch point.
type InternalError struct {
	Base
	cause error
}

func NewInternalError(value string) *InternalError {
	return &InternalError{Base: Base{Value: value}, cause: errors.New(value)}
}

func WrapInternalError(err error) *InternalError {
	return &InternalError{Base: Base{Value: err.Error()}, cause: errors.WithStack(err)}
}

func (e *InternalError) Error() string { return e.Value }
func (e *InternalError) Handle() int {
	fmt.Printf("An unexpected internal error occurred:\n\n%s\n\n%+v\n", e.Value, e.cause)
	fmt.Println("This is a bug in e4s-cl-go. Please file an issue with the above backtrace.")
	return ExitFailure
}

// KeyboardInterruptError is raised by the CLI entry point on SIGINT so
// Dispatch can special-case it into a warning exit rather than a failure.
type KeyboardInterruptError struct{ Base }

func NewKeyboardInterruptError() *KeyboardInterruptError {
	return &KeyboardInterruptError{Base{Value: "interrupted"}}
}

func (e *KeyboardInterruptError) Error() string { return e.Value }
func (e *KeyboardInterruptError) Handle() int    { fmt.Println("Received interrupt. Exiting."); return ExitWarning }

// Dispatch maps any error to a process exit code, printing user-facing
// output along the way. Errors implementing Handler render themselves;
// anything else is treated as an unexpected internal error.
func Dispatch(err error) int {
	if err == nil {
		return ExitSuccess
	}
	if h, ok := err.(Handler); ok {
		return h.Handle()
	}
	return WrapInternalError(err).Handle()
}
