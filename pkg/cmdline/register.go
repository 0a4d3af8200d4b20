// Copyright (c) e4s-cl-go authors. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package cmdline

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var errNilCommand = errors.New("cmdline: nil command")

// RegisterFlagForCmd binds flag's Value to cmd's flag set, dispatching on
// the concrete type of Value/DefaultValue the way pflag itself does. Errors
// are accumulated in the manager rather than returned, so a caller can
// register a whole batch and check failures once.
func (m *CommandManager) RegisterFlagForCmd(flag *Flag, cmd *cobra.Command) {
	if flag == nil || cmd == nil {
		m.errPool = append(m.errPool, errNilCommand)
		return
	}
	if vt := reflect.TypeOf(flag.Value); flag.DefaultValue != nil && vt != nil && vt.Kind() == reflect.Ptr && vt.Elem() != reflect.TypeOf(flag.DefaultValue) {
		m.errPool = append(m.errPool, fmt.Errorf("cmdline: default value %T does not match flag %q of type %T", flag.DefaultValue, flag.Name, flag.Value))
		return
	}

	fs := cmd.Flags()
	var err error

	switch v := flag.Value.(type) {
	case *string:
		def, _ := flag.DefaultValue.(string)
		fs.StringVarP(v, flag.Name, flag.ShortHand, def, flag.Usage)
	case *bool:
		def, _ := flag.DefaultValue.(bool)
		fs.BoolVarP(v, flag.Name, flag.ShortHand, def, flag.Usage)
	case *int:
		def, _ := flag.DefaultValue.(int)
		fs.IntVarP(v, flag.Name, flag.ShortHand, def, flag.Usage)
	case *uint32:
		def, _ := flag.DefaultValue.(uint32)
		fs.Uint32VarP(v, flag.Name, flag.ShortHand, def, flag.Usage)
	case *[]string:
		def, _ := flag.DefaultValue.([]string)
		fs.StringSliceVarP(v, flag.Name, flag.ShortHand, def, flag.Usage)
	case *map[string]string:
		def, _ := flag.DefaultValue.(map[string]string)
		fs.StringToStringVarP(v, flag.Name, flag.ShortHand, def, flag.Usage)
	default:
		err = fmt.Errorf("cmdline: unsupported flag type for %q: %T", flag.Name, flag.Value)
	}

	if err != nil {
		m.errPool = append(m.errPool, err)
		return
	}

	pf := fs.Lookup(flag.Name)
	if flag.Hidden {
		pf.Hidden = true
	}
	if flag.Deprecated != "" {
		pf.Deprecated = flag.Deprecated
	}

	m.flags = append(m.flags, flag)
}

// ResetErrors clears accumulated registration errors.
func (m *CommandManager) ResetErrors() {
	m.errPool = m.errPool[:0]
}

// envPrefix is prepended to every EnvKeys entry unless the flag opts out
// with WithoutPrefix.
const envPrefix = "E4S_CL_"

// UpdateCmdFlagFromEnv walks every flag registered against cmd and, for any
// flag not already set explicitly (Changed == false) with a non-deprecated
// EnvKeys list, looks up each env var in priority order and sets the flag
// from the first one present. pid is accepted for parity with call sites
// that pass a lookup-process id (unused beyond documentation purposes here,
// since all lookups are against the current process's environment).
func (m *CommandManager) UpdateCmdFlagFromEnv(cmd *cobra.Command, pid int, extra map[string]string) error {
	if cmd == nil {
		return errNilCommand
	}

	for _, flag := range m.flags {
		if flag.Deprecated != "" || len(flag.EnvKeys) == 0 {
			continue
		}
		pf := cmd.Flags().Lookup(flag.Name)
		if pf == nil || pf.Changed {
			continue
		}

		for _, key := range flag.EnvKeys {
			name := key
			if !flag.WithoutPrefix {
				name = envPrefix + key
			}
			val, ok := extra[name]
			if !ok {
				val, ok = os.LookupEnv(name)
			}
			if !ok {
				continue
			}
			if err := pf.Value.Set(val); err != nil {
				return fmt.Errorf("cmdline: invalid value %q for env %s: %w", val, name, err)
			}
			pf.Changed = true
			break
		}
	}
	return nil
}

// EnvName returns the fully-qualified environment variable name this flag
// would be resolved from (its first EnvKeys entry), or "" if it has none.
func (f *Flag) EnvName() string {
	if len(f.EnvKeys) == 0 {
		return ""
	}
	name := f.EnvKeys[0]
	if !f.WithoutPrefix {
		name = envPrefix + name
	}
	return name
}

// splitCSV is a small helper used by callers building EnvKeys-compatible
// string-slice values from a raw environment variable.
func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
