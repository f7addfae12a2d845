package ocfl

import (
	"fmt"
	"regexp"
	"strconv"
)

var vnumRE = regexp.MustCompile(`^v([0-9]+)$`)

// VNum is an OCFL object version number ("v1", "v2", ... or zero-padded
// "v0001", "v0002", ...).
type VNum struct {
	Num     int // version number, 1-indexed
	Padding int // zero-padded width, 0 if unpadded
}

// V1 is the first version of a new object.
var V1 = VNum{Num: 1}

func (v VNum) String() string {
	if v.Padding > 0 {
		return fmt.Sprintf("v%0*d", v.Padding, v.Num)
	}
	return fmt.Sprintf("v%d", v.Num)
}

// Empty reports whether v is the zero value.
func (v VNum) Empty() bool { return v.Num == 0 }

// Next returns the next version number, preserving v's padding width
// unless it would be too narrow for the new number.
func (v VNum) Next() VNum {
	next := VNum{Num: v.Num + 1, Padding: v.Padding}
	if next.Padding > 0 && len(strconv.Itoa(next.Num)) > next.Padding {
		next.Padding = 0
	}
	return next
}

// ParseVNum parses a version directory name like "v3" or "v0003".
func ParseVNum(name string) (VNum, error) {
	m := vnumRE.FindStringSubmatch(name)
	if m == nil {
		return VNum{}, fmt.Errorf("invalid version name: %q", name)
	}
	numStr := m[1]
	num, err := strconv.Atoi(numStr)
	if err != nil || num < 1 {
		return VNum{}, fmt.Errorf("invalid version name: %q", name)
	}
	padding := 0
	if len(numStr) > 1 && numStr[0] == '0' {
		padding = len(numStr)
	}
	return VNum{Num: num, Padding: padding}, nil
}
