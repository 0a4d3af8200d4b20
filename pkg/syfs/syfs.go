// Copyright (c) e4s-cl-go authors. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

// Package syfs locates e4s-cl-go's on-disk layout: the per-user config
// directory and the two named storage scopes ("user", "system") the
// profile store and selection pointer live under.
package syfs

import (
	"os"
	"os/user"
	"path/filepath"
	"sync"

	"github.com/e4s-cl/e4s-cl-go/pkg/sylog"
)

// Configuration files/directories.
const (
	appDirName     = ".e4s-cl"
	ConfigFileName = "e4s-cl.yaml"
	systemConfDir  = "/etc/e4s-cl"
)

var cache struct {
	sync.Once
	configDir string
}

// ConfigDir returns the directory e4s-cl-go's own user configuration and
// the "user" storage scope's profile table live under.
func ConfigDir() string {
	cache.Do(func() {
		cache.configDir = configDir(appDirName)
		sylog.Debugf("using configuration directory %q", cache.configDir)
	})
	return cache.configDir
}

func configDir(dir string) string {
	if v := os.Getenv("E4S_CL_CONFIGDIR"); v != "" {
		return v
	}

	homedir := os.Getenv("HOME")
	if homedir == "" {
		u, err := user.Current()
		if err != nil {
			sylog.Warningf("could not look up the current user's information: %s", err)

			cwd, err := os.Getwd()
			if err != nil {
				sylog.Warningf("could not get current working directory: %s", err)
				return dir
			}
			homedir = cwd
		} else {
			homedir = u.HomeDir
		}
	}

	return filepath.Join(homedir, dir)
}

// ConfigFile returns the path to the YAML configuration file e4s-cl-go
// reads backend executable overrides and launcher_options from.
func ConfigFile() string {
	return filepath.Join(ConfigDir(), ConfigFileName)
}

// ScopeDir returns the directory a named storage scope's profile table
// lives under: the per-user config directory for "user", and a
// system-wide, typically root-owned directory for "system".
func ScopeDir(scope string) string {
	if scope == "system" {
		return systemConfDir
	}
	return ConfigDir()
}

// ProfilesFile returns the path to a storage scope's profile table file.
func ProfilesFile(scope string) string {
	return filepath.Join(ScopeDir(scope), "profiles.json")
}
