package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// SemVer is a MAJOR.MINOR.PATCH version as recorded on vocabularies and
// package manifests. It is a domain primitive enforcing validity at parse
// time; the zero value is not a valid version.
type SemVer struct {
	Major int
	Minor int
	Patch int
}

// ParseSemVer parses a strict MAJOR.MINOR.PATCH string. No "v" prefix,
// no pre-release or build metadata: device exports never produce those.
func ParseSemVer(s string) (SemVer, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return SemVer{}, fmt.Errorf("malformed version %q: want MAJOR.MINOR.PATCH", s)
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || (len(p) > 1 && p[0] == '0') {
			return SemVer{}, fmt.Errorf("malformed version %q: bad component %q", s, p)
		}
		nums[i] = n
	}
	return SemVer{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

func (v SemVer) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// MarshalJSON emits the canonical "MAJOR.MINOR.PATCH" string.
func (v SemVer) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(v.String())), nil
}

// UnmarshalJSON parses the canonical string form.
func (v *SemVer) UnmarshalJSON(data []byte) error {
	s, err := strconv.Unquote(string(data))
	if err != nil {
		return fmt.Errorf("version must be a JSON string: %w", err)
	}
	parsed, err := ParseSemVer(s)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// Compare returns -1, 0 or 1 ordering v against other.
func (v SemVer) Compare(other SemVer) int {
	pairs := [3][2]int{
		{v.Major, other.Major},
		{v.Minor, other.Minor},
		{v.Patch, other.Patch},
	}
	for _, p := range pairs {
		switch {
		case p[0] < p[1]:
			return -1
		case p[0] > p[1]:
			return 1
		}
	}
	return 0
}
