package version

import (
	"fmt"
	"strconv"
	"strings"
)

// Version is the claude-mem build version. Release builds override it via
// -ldflags "-X github.com/Pamacea/claude-mem/internal/version.Version=...".
var Version = "0.9.0"

// Compare compares two dotted version strings. It returns -1 if a < b,
// 0 if equal, 1 if a > b. A leading "v" and pre-release suffixes
// ("1.2.3-beta") are tolerated; missing segments compare as zero.
func Compare(a, b string) (int, error) {
	partsA, err := parseParts(a)
	if err != nil {
		return 0, err
	}
	partsB, err := parseParts(b)
	if err != nil {
		return 0, err
	}

	max := len(partsA)
	if len(partsB) > max {
		max = len(partsB)
	}
	for i := 0; i < max; i++ {
		va := 0
		vb := 0
		if i < len(partsA) {
			va = partsA[i]
		}
		if i < len(partsB) {
			vb = partsB[i]
		}
		if va < vb {
			return -1, nil
		}
		if va > vb {
			return 1, nil
		}
	}
	return 0, nil
}

func parseParts(v string) ([]int, error) {
	v = strings.TrimSpace(v)
	v = strings.TrimPrefix(v, "v")
	if v == "" {
		return nil, fmt.Errorf("empty version")
	}
	base := strings.SplitN(v, "-", 2)[0]
	segments := strings.Split(base, ".")
	parts := make([]int, 0, len(segments))
	for _, seg := range segments {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			parts = append(parts, 0)
			continue
		}
		// Strip any trailing non-digit characters.
		digits := seg
		for i, r := range seg {
			if r < '0' || r > '9' {
				digits = seg[:i]
				break
			}
		}
		if digits == "" {
			return nil, fmt.Errorf("invalid version segment: %q", seg)
		}
		val, err := strconv.Atoi(digits)
		if err != nil {
			return nil, fmt.Errorf("invalid version segment: %q", seg)
		}
		parts = append(parts, val)
	}
	return parts, nil
}
