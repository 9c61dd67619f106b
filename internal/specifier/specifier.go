// Package specifier parses package specifiers such as "hatchling",
// "hatchling==1.27.0" or "hatchling >= 1.2" into the search strings used to
// query remote manifests.
package specifier

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalid is returned for specifiers that cannot be parsed.
var ErrInvalid = errors.New("invalid package specifier")

// Wildcard selects every package in operations that support it (reset).
const Wildcard = "*"

// DefaultOperator is implied when a specifier has no operator, turning a
// bare name into a search for pinned versions.
const DefaultOperator = "=="

// Operators are checked longest first so ">=" is not read as ">".
var operators = []string{"==", "!=", ">=", "<=", ">", "<"}

var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// Specifier is a package name with an optional comparison and version.
type Specifier struct {
	Name     string
	Operator string
	Version  string
}

// Parse parses s. Whitespace around the name, operator and version is
// ignored.
func Parse(s string) (Specifier, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Specifier{}, fmt.Errorf("%w: empty", ErrInvalid)
	}

	idx, op := -1, ""
	for _, candidate := range operators {
		if i := strings.Index(s, candidate); i >= 0 && (idx < 0 || i < idx) {
			idx, op = i, candidate
		}
	}

	var spec Specifier
	if idx < 0 {
		spec.Name = s
	} else {
		spec.Name = strings.TrimSpace(s[:idx])
		spec.Operator = op
		spec.Version = strings.TrimSpace(s[idx+len(op):])
	}

	if !namePattern.MatchString(spec.Name) {
		return Specifier{}, fmt.Errorf("%w: bad package name in %q", ErrInvalid, s)
	}
	if strings.ContainsAny(spec.Version, " \t=!<>") {
		return Specifier{}, fmt.Errorf("%w: bad version in %q", ErrInvalid, s)
	}

	return spec, nil
}

// MustParse is like Parse but panics on error. Intended for tests and
// constant specifiers.
func MustParse(s string) Specifier {
	spec, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return spec
}

func (s Specifier) operator() string {
	if s.Operator == "" {
		return DefaultOperator
	}
	return s.Operator
}

// Canonical returns the specifier without spaces, e.g. "hatchling==1.27.0".
// It is the key search runs are stored under.
func (s Specifier) Canonical() string {
	return s.Name + s.operator() + s.Version
}

// Spaced returns the loosely written form, e.g. "hatchling == 1.27.0".
// A bare name yields "hatchling == " so the phrase still requires an
// operator followed by a space.
func (s Specifier) Spaced() string {
	return s.Name + " " + s.operator() + " " + s.Version
}

// Variants returns the distinct search phrases for s, canonical first.
func (s Specifier) Variants() []string {
	canonical, spaced := s.Canonical(), s.Spaced()
	if canonical == spaced {
		return []string{canonical}
	}
	return []string{canonical, spaced}
}

// String returns the canonical form.
func (s Specifier) String() string {
	return s.Canonical()
}

// IsWildcard reports whether any of args is the reset wildcard.
func IsWildcard(args []string) bool {
	for _, a := range args {
		if strings.TrimSpace(a) == Wildcard {
			return true
		}
	}
	return false
}

// ParseAll parses every argument, returning the first error.
func ParseAll(args []string) ([]Specifier, error) {
	specs := make([]Specifier, 0, len(args))
	for _, a := range args {
		spec, err := Parse(a)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}
