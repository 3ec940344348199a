package session

import (
	"strconv"
	"strings"
)

// parseMajorMinor extracts the leading major.minor integers from a dotted
// version string. Anything past the minor component is ignored.
func parseMajorMinor(s string) (major, minor int, ok bool) {
	parts := strings.Split(strings.TrimSpace(s), ".")
	if len(parts) == 0 || parts[0] == "" {
		return 0, 0, false
	}
	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, false
	}
	if len(parts) > 1 {
		minor, err = strconv.Atoi(parts[1])
		if err != nil {
			return 0, 0, false
		}
	}
	return major, minor, true
}

// versionAtLeast reports whether the device-reported version meets the floor.
// A reported string that does not parse fails the check.
func versionAtLeast(reported, floor string) bool {
	rMaj, rMin, ok := parseMajorMinor(reported)
	if !ok {
		return false
	}
	fMaj, fMin, ok := parseMajorMinor(floor)
	if !ok {
		return false
	}
	if rMaj != fMaj {
		return rMaj > fMaj
	}
	return rMin >= fMin
}
