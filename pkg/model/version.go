/*
 * Copyright © 2019 One Concern
 *
 */

package model

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	// CurrentRepoVersion indicates the version of the on-disk repository layout
	//
	// Note that version numbering is an integer, not a semver string.
	CurrentRepoVersion uint64 = 1
)

// InitialVersion is assigned to the first write of a document
var InitialVersion = Version{Major: 1, Minor: 0}

// Version of a data object: a major.minor pair
type Version struct {
	Major uint64
	Minor uint64
}

func (v Version) String() string {
	return strconv.FormatUint(v.Major, 10) + "." + strconv.FormatUint(v.Minor, 10)
}

// Less tells if v comes strictly before w
func (v Version) Less(w Version) bool {
	if v.Major != w.Major {
		return v.Major < w.Major
	}
	return v.Minor < w.Minor
}

// IsZero tells if the version is unset
func (v Version) IsZero() bool {
	return v.Major == 0 && v.Minor == 0
}

// NextVersion computes the version following current.
//
// A major bump resets the minor number to 0, a minor bump increments it.
func NextVersion(current Version, major bool) Version {
	if major {
		return Version{Major: current.Major + 1}
	}
	return Version{Major: current.Major, Minor: current.Minor + 1}
}

// ParseVersion parses a "major.minor" string
func ParseVersion(s string) (Version, error) {
	parts := strings.Split(strings.TrimSpace(s), ".")
	if len(parts) != 2 {
		return Version{}, ErrMalformedVersion.WrapMessage("%q", s)
	}
	major, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return Version{}, ErrMalformedVersion.Wrap(err)
	}
	minor, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return Version{}, ErrMalformedVersion.Wrap(err)
	}
	return Version{Major: major, Minor: minor}, nil
}

// MustParseVersion parses a version or panics
func MustParseVersion(s string) Version {
	v, err := ParseVersion(s)
	if err != nil {
		panic(fmt.Sprintf("invalid version: %v", err))
	}
	return v
}
