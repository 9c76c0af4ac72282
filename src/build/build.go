// Package build defines the Build value and reduces build listings to the
// latest build per builder.
package build

import (
	"fmt"
	"sort"

	"results-agent/src/provider"
)

var (
	ErrEmptyBuilderName = fmt.Errorf("%w: builder name must not be empty", provider.ErrPrecondition)
	ErrNegativeNumber   = fmt.Errorf("%w: build number must not be negative", provider.ErrPrecondition)
)

// Build identifies one execution of a builder. Identity is the builder name
// plus the optional build number; ID is informational.
type Build struct {
	BuilderName string
	// Number is nil when the backend did not report a build number.
	Number *int
	// ID is the opaque buildbucket id, needed for log lookups.
	ID string
}

// New returns a Build without a number.
func New(builderName string) (Build, error) {
	if builderName == "" {
		return Build{}, ErrEmptyBuilderName
	}
	return Build{BuilderName: builderName}, nil
}

// WithNumber returns a numbered Build.
func WithNumber(builderName string, number int) (Build, error) {
	return WithID(builderName, number, "")
}

// WithID returns a numbered Build that also carries its buildbucket id.
func WithID(builderName string, number int, id string) (Build, error) {
	b, err := New(builderName)
	if err != nil {
		return Build{}, err
	}
	if number < 0 {
		return Build{}, ErrNegativeNumber
	}
	n := number
	b.Number = &n
	b.ID = id
	return b, nil
}

// HasNumber reports whether the build number is known.
func (b Build) HasNumber() bool {
	return b.Number != nil
}

// NumberOr returns the build number, or def when it is unknown.
func (b Build) NumberOr(def int) int {
	if b.Number == nil {
		return def
	}
	return *b.Number
}

// Equal compares builder name and build number. Two unnumbered builds of
// the same builder are equal whatever their ids.
func (b Build) Equal(other Build) bool {
	if b.BuilderName != other.BuilderName || b.HasNumber() != other.HasNumber() {
		return false
	}
	return !b.HasNumber() || *b.Number == *other.Number
}

// Less orders by builder name, then by number with unnumbered builds first.
func (b Build) Less(other Build) bool {
	if b.BuilderName != other.BuilderName {
		return b.BuilderName < other.BuilderName
	}
	if !b.HasNumber() || !other.HasNumber() {
		return !b.HasNumber() && other.HasNumber()
	}
	return *b.Number < *other.Number
}

func (b Build) String() string {
	if !b.HasNumber() {
		return fmt.Sprintf("Build(%q)", b.BuilderName)
	}
	return fmt.Sprintf("Build(%q, %d)", b.BuilderName, *b.Number)
}

// Validate checks the invariants a Build built by hand may violate.
func (b Build) Validate() error {
	if b.BuilderName == "" {
		return ErrEmptyBuilderName
	}
	if b.Number != nil && *b.Number < 0 {
		return ErrNegativeNumber
	}
	return nil
}

// FilterLatest keeps one build per builder: the one with the highest
// number, or the first seen if none of that builder's builds is numbered.
// The result is sorted by builder name, so applying it twice changes nothing.
func FilterLatest(builds []Build) []Build {
	latest := make(map[string]Build, len(builds))
	for _, b := range builds {
		cur, seen := latest[b.BuilderName]
		if !seen || newer(b, cur) {
			latest[b.BuilderName] = b
		}
	}

	out := make([]Build, 0, len(latest))
	for _, b := range latest {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].BuilderName < out[j].BuilderName
	})
	return out
}

func newer(candidate, current Build) bool {
	if !candidate.HasNumber() {
		return false
	}
	return !current.HasNumber() || *candidate.Number > *current.Number
}

