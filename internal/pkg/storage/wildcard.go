// Copyright (c) e4s-cl-go authors. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package storage

import (
	"regexp"
	"strings"
)

// WildcardToRegexp compiles a CLI-facing profile selector using '*' and
// '#' as metacharacters ('*' matches any run of characters, '#' matches a
// run of digits) into an anchored regular expression, escaping every other
// regex metacharacter literally so a profile named "v1.2" doesn't
// accidentally act as a wildcard itself.
func WildcardToRegexp(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(".*")
		case '#':
			b.WriteString(`\d+`)
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}

// MatchNames returns the subset of names matching a wildcard pattern.
func MatchNames(pattern string, names []string) ([]string, error) {
	re, err := WildcardToRegexp(pattern)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, n := range names {
		if re.MatchString(n) {
			out = append(out, n)
		}
	}
	return out, nil
}
