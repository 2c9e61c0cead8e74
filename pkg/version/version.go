// Package version provides driver version parsing and comparison.
package version

import (
	"fmt"
	"strconv"
	"strings"
)

// Driver is a "major.minor.patchlevel" driver version as reported by the
// VERSION command.
type Driver struct {
	Major      int32
	Minor      int32
	Patchlevel int32
}

// Parse parses a "major.minor.patchlevel" version string.
// A missing patchlevel ("1.0") is accepted and reads as zero.
func Parse(s string) (Driver, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 2 && len(parts) != 3 {
		return Driver{}, fmt.Errorf("invalid version %q: expected major.minor[.patchlevel]", s)
	}

	var nums [3]int32
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 31)
		if err != nil || p == "" {
			return Driver{}, fmt.Errorf("invalid version %q: bad component %q", s, p)
		}
		nums[i] = int32(n)
	}

	return Driver{Major: nums[0], Minor: nums[1], Patchlevel: nums[2]}, nil
}

// MustParse is like Parse but panics on error. It is meant for driver
// constants.
func MustParse(s string) Driver {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// String returns the version as "major.minor.patchlevel".
func (v Driver) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patchlevel)
}

// Compatible returns true if the other version has the same major version.
func (v Driver) Compatible(other Driver) bool {
	return v.Major == other.Major
}

// Less reports whether v orders before other.
func (v Driver) Less(other Driver) bool {
	if v.Major != other.Major {
		return v.Major < other.Major
	}
	if v.Minor != other.Minor {
		return v.Minor < other.Minor
	}
	return v.Patchlevel < other.Patchlevel
}
