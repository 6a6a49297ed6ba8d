// Copyright 2025 Autopatch Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

// Package version parses and orders the semantic version strings carried by
// container image tags and Helm chart releases. Ordering is defined on the
// numeric (major, minor, patch) triple only; pre-release and build metadata
// take no part in comparison.
package version

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

// ErrParseFailure is returned when a raw string does not look like a
// semantic version. Callers must treat it as "no safe comparison possible"
// instead of coercing the value to a default.
var ErrParseFailure = errors.New("version: unparseable version string")

var semverPattern = regexp.MustCompile(`^v?(\d+)\.(\d+)(?:\.(\d+))?(?:-([0-9A-Za-z.-]+))?$`)

// Version is a parsed semantic version. Raw keeps the original input so
// reports can echo exactly what was scanned (tags like "latest" or digests
// never make it here, they fail Parse).
type Version struct {
	Major int
	Minor int
	Patch int
	// Pre holds a pre-release suffix if the input carried one. It is kept
	// for display only and ignored by Compare.
	Pre string
	// Raw is the original unparsed string.
	Raw string
}

// Parse parses MAJOR.MINOR.PATCH or MAJOR.MINOR with an optional leading
// "v" and an optional "-suffix". Anything else returns ErrParseFailure.
func Parse(raw string) (Version, error) {
	m := semverPattern.FindStringSubmatch(raw)
	if m == nil {
		return Version{}, fmt.Errorf("%w: %q", ErrParseFailure, raw)
	}

	major, err := strconv.Atoi(m[1])
	if err != nil {
		return Version{}, fmt.Errorf("%w: %q", ErrParseFailure, raw)
	}
	minor, err := strconv.Atoi(m[2])
	if err != nil {
		return Version{}, fmt.Errorf("%w: %q", ErrParseFailure, raw)
	}
	patch := 0
	if m[3] != "" {
		if patch, err = strconv.Atoi(m[3]); err != nil {
			return Version{}, fmt.Errorf("%w: %q", ErrParseFailure, raw)
		}
	}

	return Version{Major: major, Minor: minor, Patch: patch, Pre: m[4], Raw: raw}, nil
}

// MustParse is a test and fixture helper. It panics on invalid input.
func MustParse(raw string) Version {
	v, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return v
}

// String formats the numeric triple, re-attaching any pre-release suffix.
func (v Version) String() string {
	s := fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	if v.Pre != "" {
		s += "-" + v.Pre
	}
	return s
}

// Compare orders a and b on (major, minor, patch). It returns -1 when a is
// lower, 0 when equal and 1 when a is higher.
func Compare(a, b Version) int {
	switch {
	case a.Major != b.Major:
		return sign(a.Major - b.Major)
	case a.Minor != b.Minor:
		return sign(a.Minor - b.Minor)
	default:
		return sign(a.Patch - b.Patch)
	}
}

// Less reports whether a orders strictly before b.
func Less(a, b Version) bool { return Compare(a, b) < 0 }

// MajorGap returns how many major versions b is ahead of a. It is zero when
// b.Major <= a.Major, never negative.
func MajorGap(a, b Version) int {
	if b.Major <= a.Major {
		return 0
	}
	return b.Major - a.Major
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}
