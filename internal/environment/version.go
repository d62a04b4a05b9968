package environment

import (
	"strconv"
	"strings"

	"golang.org/x/mod/semver"
)

// ParseMajor extracts the major component of a host or dependency version.
// Host versions are usually "generation.build" ("13.345"); dependency
// versions are semantic ("4.3.1", "5.0.0-beta.2"). Both are normalized to a
// v-prefixed semantic version before parsing.
func ParseMajor(raw string) (int, bool) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return 0, false
	}
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return 0, false
	}

	major, err := strconv.Atoi(strings.TrimPrefix(semver.Major(v), "v"))
	if err != nil {
		return 0, false
	}
	return major, true
}
