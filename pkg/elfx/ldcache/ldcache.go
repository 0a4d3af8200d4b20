// Copyright (c) e4s-cl-go authors. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

// Package ldcache reads the dynamic linker's soname cache, either by
// shelling out to ldconfig on the host or by decoding a cache blob
// retrieved from inside a container image, the way a backend's GetData
// probe does.
package ldcache

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
)

// Read shells out to `ldconfig -p` and returns a soname -> absolute path
// map, keeping only the first (highest priority) entry for each soname.
func Read() (map[string]string, error) {
	path, err := exec.LookPath("ldconfig")
	if err != nil {
		return nil, fmt.Errorf("ldconfig not found on PATH: %w", err)
	}
	out, err := exec.Command(path, "-p").Output()
	if err != nil {
		return nil, fmt.Errorf("could not execute ldconfig: %w", err)
	}
	return parseLdconfigOutput(out), nil
}

// ParseLdconfigOutput parses the text output of `ldconfig -p`, as captured
// by probing a running container rather than the host's own ldconfig.
func ParseLdconfigOutput(out []byte) (map[string]string, error) {
	return parseLdconfigOutput(out), nil
}

var ldconfigLine = regexp.MustCompile(`(?m)^\s*(\S+)\s*\(.*\)\s*=>\s*(.*)$`)

func parseLdconfigOutput(out []byte) map[string]string {
	cache := make(map[string]string)
	for _, m := range ldconfigLine.FindAllSubmatch(out, -1) {
		name := strings.TrimSpace(string(m[1]))
		path := strings.TrimSpace(string(m[2]))
		if _, ok := cache[name]; !ok {
			cache[name] = path
		}
	}
	return cache
}

// magic is the ld.so.cache-new header, "glibc-ld.so.cache1.1".
var magic = []byte("glibc-ld.so.cache1.1")

// ParseCacheBlob decodes a raw /etc/ld.so.cache file (format 1.1, the
// glibc-ld.so.cache "new format" layout, which embeds the older format-1
// header at the front for compatibility) into a soname -> path map. It is
// used when the cache was captured from inside a container rather than
// read via ldconfig on the host.
func ParseCacheBlob(blob []byte) (map[string]string, error) {
	idx := bytes.Index(blob, magic)
	if idx < 0 {
		return nil, fmt.Errorf("ldcache: missing %q header", magic)
	}
	b := blob[idx+len(magic):]
	if len(b) < 4 {
		return nil, fmt.Errorf("ldcache: truncated header")
	}
	numEntries := binary.LittleEndian.Uint32(b[0:4])
	const entrySize = 4 * 6 // flags, key, value, osversion_needed, hwcap low/high
	const headerSize = 4 + 4 + 4 + 20
	b = b[headerSize:]

	cache := make(map[string]string)
	stringsBase := b
	for i := uint32(0); i < numEntries; i++ {
		off := int(i) * entrySize
		if off+entrySize > len(b) {
			break
		}
		keyOff := binary.LittleEndian.Uint32(b[off+4 : off+8])
		valOff := binary.LittleEndian.Uint32(b[off+8 : off+12])
		name := cString(stringsBase, keyOff)
		path := cString(stringsBase, valOff)
		if name == "" || path == "" {
			continue
		}
		if _, ok := cache[name]; !ok {
			cache[name] = path
		}
	}
	return cache, nil
}

func cString(b []byte, off uint32) string {
	if int(off) >= len(b) {
		return ""
	}
	end := bytes.IndexByte(b[off:], 0)
	if end < 0 {
		return ""
	}
	return string(b[off : int(off)+end])
}
