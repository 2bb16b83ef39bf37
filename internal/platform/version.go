// Package platform compares versions of the hosting monitoring platform.
//
// Platform versions look like "2.1.0", "2.1.0p12", "2.2.0b3" or "2.2.0i1".
// Daily builds are either "2022.01.31" (master, cannot be compared) or
// "2.1.0-2022.01.31" (a daily build of the 2.1.0 branch).
package platform

import (
	"cmp"
	"fmt"
	"regexp"
	"strconv"
)

// Master is what a daily build of the main branch normalises to.
const Master = "master"

var (
	versionPattern   = regexp.MustCompile(`^(\d+)\.(\d+)\.(\d+)(?:([ibp])(\d+))?$`)
	dailyPattern     = regexp.MustCompile(`^\d{4}\.\d{2}\.\d{2}$`)
	branchDailyRegex = regexp.MustCompile(`^(\d+\.\d+\.\d+)-\d{4}\.\d{2}\.\d{2}$`)
)

// Stage weights: innovation < beta < release/patch.
const (
	stageInnovation = iota
	stageBeta
	stageRelease
)

// Version is a parsed platform version.
type Version struct {
	Major, Minor, Sub int
	stage             int
	num               int
}

// Normalize maps daily builds onto their branch.
func Normalize(raw string) string {
	if dailyPattern.MatchString(raw) {
		return Master
	}
	if m := branchDailyRegex.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	return raw
}

// Parse parses a normalised platform version.
func Parse(raw string) (Version, error) {
	m := versionPattern.FindStringSubmatch(raw)
	if m == nil {
		return Version{}, fmt.Errorf("invalid platform version %q", raw)
	}
	v := Version{stage: stageRelease}
	v.Major, _ = strconv.Atoi(m[1])
	v.Minor, _ = strconv.Atoi(m[2])
	v.Sub, _ = strconv.Atoi(m[3])
	if m[4] != "" {
		v.num, _ = strconv.Atoi(m[5])
		switch m[4] {
		case "i":
			v.stage = stageInnovation
		case "b":
			v.stage = stageBeta
		}
	}
	return v, nil
}

// Compare orders two parsed versions.
func (v Version) Compare(o Version) int {
	for _, c := range []int{
		cmp.Compare(v.Major, o.Major),
		cmp.Compare(v.Minor, o.Minor),
		cmp.Compare(v.Sub, o.Sub),
		cmp.Compare(v.stage, o.stage),
		cmp.Compare(v.num, o.num),
	} {
		if c != 0 {
			return c
		}
	}
	return 0
}

// Compare parses and compares two raw platform versions. It fails if either
// side is a master daily build or cannot be parsed; callers treat that as
// "cannot decide".
func Compare(a, b string) (int, error) {
	na, nb := Normalize(a), Normalize(b)
	if na == Master || nb == Master {
		return 0, fmt.Errorf("cannot compare daily build of master (%q, %q)", a, b)
	}
	va, err := Parse(na)
	if err != nil {
		return 0, err
	}
	vb, err := Parse(nb)
	if err != nil {
		return 0, err
	}
	return va.Compare(vb), nil
}
