package models

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseSemver splits a MAJOR.MINOR.PATCH version string into its numeric
// parts. Pre-release and build suffixes are not supported.
func ParseSemver(version string) (major, minor, patch int, ok bool) {
	parts := strings.Split(version, ".")
	if len(parts) != 3 {
		return 0, 0, 0, false
	}

	numbers := make([]int, 3)

	for i, part := range parts {
		if part == "" {
			return 0, 0, 0, false
		}

		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return 0, 0, 0, false
		}

		numbers[i] = n
	}

	return numbers[0], numbers[1], numbers[2], true
}

// IsSemver reports whether version is a plain MAJOR.MINOR.PATCH string.
func IsSemver(version string) bool {
	_, _, _, ok := ParseSemver(version)

	return ok
}

// BumpPatch increments the patch component, e.g. "1.2.3" -> "1.2.4".
func BumpPatch(version string) (string, error) {
	major, minor, patch, ok := ParseSemver(version)
	if !ok {
		return "", fmt.Errorf("not a semantic version: %s", version)
	}

	return fmt.Sprintf("%d.%d.%d", major, minor, patch+1), nil
}

// BumpMinor increments the minor component and resets patch.
func BumpMinor(version string) (string, error) {
	major, minor, _, ok := ParseSemver(version)
	if !ok {
		return "", fmt.Errorf("not a semantic version: %s", version)
	}

	return fmt.Sprintf("%d.%d.0", major, minor+1), nil
}

// BumpMajor increments the major component and resets the rest.
func BumpMajor(version string) (string, error) {
	major, _, _, ok := ParseSemver(version)
	if !ok {
		return "", fmt.Errorf("not a semantic version: %s", version)
	}

	return fmt.Sprintf("%d.0.0", major+1), nil
}
