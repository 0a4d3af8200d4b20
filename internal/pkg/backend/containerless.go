// Copyright (c) e4s-cl-go authors. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package backend

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/e4s-cl/e4s-cl-go/pkg/elfx/ldcache"
)

// containerlessBackend is the degenerate driver used when no container
// technology is involved at all: "binds" become a tree of symlinks under a
// scratch directory, which is then prepended to LD_LIBRARY_PATH so the
// unmodified host command picks up the discovered libraries directly.
type containerlessBackend struct {
	common
	root string
}

func newContainerless() Backend {
	return &containerlessBackend{common: newCommon()}
}

func (c *containerlessBackend) Name() string { return "containerless" }

func (c *containerlessBackend) ensureRoot() (string, error) {
	if c.root != "" {
		return c.root, nil
	}
	dir, err := os.MkdirTemp("", "e4s-cl-containerless-"+uuid.NewString()+"-")
	if err != nil {
		return "", fmt.Errorf("containerless: could not create scratch directory: %w", err)
	}
	c.root = dir
	return dir, nil
}

func (c *containerlessBackend) Prepare(image string, command []string) (*Plan, error) {
	if image != "" {
		return nil, fmt.Errorf("containerless: does not run container images, got %q", image)
	}

	root, err := c.ensureRoot()
	if err != nil {
		return nil, err
	}

	for _, b := range c.binds {
		link := filepath.Join(root, b.Destination)
		if err := os.MkdirAll(filepath.Dir(link), 0o755); err != nil {
			return nil, fmt.Errorf("containerless: %w", err)
		}
		_ = os.Remove(link)
		if err := os.Symlink(b.Origin, link); err != nil {
			return nil, fmt.Errorf("containerless: symlinking %s: %w", b.Destination, err)
		}
	}

	env := map[string]string{}
	for k, v := range c.env {
		env[k] = v
	}
	libPath := []string{root}
	for _, dir := range c.libraries {
		libPath = append(libPath, filepath.Join(root, dir))
	}
	if existing := os.Getenv("LD_LIBRARY_PATH"); existing != "" {
		libPath = append(libPath, existing)
	}
	env["LD_LIBRARY_PATH"] = strings.Join(libPath, ":")
	if len(c.preloads) > 0 {
		env["LD_PRELOAD"] = strings.Join(c.preloads, ":")
	}

	return &Plan{Argv: command, Env: env}, nil
}

// GetData has no image to probe: the host's own linker cache is what the
// command will actually see.
func (c *containerlessBackend) GetData(image string) (*ProbeData, error) {
	cache, err := ldcache.Read()
	if err != nil {
		return nil, err
	}
	return &ProbeData{LdCache: cache}, nil
}

func init() {
	register("containerless", newContainerless)
}
