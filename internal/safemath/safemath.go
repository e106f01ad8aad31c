// Package safemath has the validated arithmetic used by the installer for every number that
// comes from the environment, the user or a previous computation.
//
// Nothing in this package aborts: invalid input is always replaced by a safe value and the
// callers get an ok flag when they need to know it happened.
package safemath

import (
	"math"
	"regexp"
	"strconv"
)

var nonNegIntRegexp = regexp.MustCompile(`^[0-9]+$`)

// IsNonNegInt returns true if v is a string made only of decimal digits.
func IsNonNegInt(v string) bool {
	return nonNegIntRegexp.MatchString(v)
}

// ParseNonNeg parses v as a nonnegative integer. Values that are not plain digits or that
// don't fit in an int are reported as not ok.
func ParseNonNeg(v string) (int, bool) {
	if !IsNonNegInt(v) {
		return 0, false
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}

	return n, true
}

// Clamp returns v as an int if it is numeric and in [min, max], otherwise min.
func Clamp(v string, min, max int) int {
	n, ok := ParseNonNeg(v)
	if !ok || n < min || n > max {
		return min
	}

	return n
}

// ClampInt saturates an already typed value to the nearest bound of [min, max].
func ClampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// Add adds two nonnegative integers saturating at math.MaxInt. Negative inputs return (0, false).
func Add(a, b int) (int, bool) {
	if a < 0 || b < 0 {
		return 0, false
	}

	if a > math.MaxInt-b {
		return math.MaxInt, true
	}

	return a + b, true
}

// Sub subtracts two nonnegative integers saturating at 0, it never returns a negative number.
// Negative inputs return (0, false).
func Sub(a, b int) (int, bool) {
	if a < 0 || b < 0 {
		return 0, false
	}

	if b > a {
		return 0, true
	}

	return a - b, true
}

// Mul multiplies two nonnegative integers saturating at math.MaxInt. Negative inputs return (0, false).
func Mul(a, b int) (int, bool) {
	if a < 0 || b < 0 {
		return 0, false
	}

	if a != 0 && b > math.MaxInt/a {
		return math.MaxInt, true
	}

	return a * b, true
}
