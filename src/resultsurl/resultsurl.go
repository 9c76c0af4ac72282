// Package resultsurl builds URLs on the test-results server. It performs no I/O.
package resultsurl

import (
	"fmt"
	"net/url"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"results-agent/src/build"
	"results-agent/src/provider"
	"results-agent/src/sanitize"
)

const (
	// DefaultHost is the public test-results server.
	DefaultHost = "https://test-results.appspot.com"

	layoutResultsPath = "/data/layout_results/"
	layoutTestResults = "layout-test-results"

	webdriverTestType = "webdriver_tests_suite (with patch)"
)

// ErrInvalidBuildNumber is returned when a build number argument is not an integer.
var ErrInvalidBuildNumber = fmt.Errorf("%w: expected numeric build number", provider.ErrPrecondition)

var digits = regexp.MustCompile(`^\d+$`)

// Builder constructs result URLs for one results server.
type Builder struct {
	Host string
}

// New returns a Builder for host, e.g. "https://test-results.appspot.com".
func New(host string) *Builder {
	return &Builder{Host: strings.TrimRight(host, "/")}
}

// Default returns a Builder for DefaultHost.
func Default() *Builder {
	return New(DefaultHost)
}

// BuilderResultsURLBase returns the root of a builder's stored results.
func (u *Builder) BuilderResultsURLBase(builderName string) string {
	return u.Host + layoutResultsPath + sanitize.BuilderToken(builderName)
}

// AccumulatedResultsURLBase returns the URL of the builder's most recent
// accumulated results.
func (u *Builder) AccumulatedResultsURLBase(builderName string) string {
	return u.BuilderResultsURLBase(builderName) + "/results/" + layoutTestResults
}

// ResultsURL returns the layout-test-results directory for a build.
//
// buildNumber may be nil, an integer, a *int, or a string of digits; any
// other string fails with ErrInvalidBuildNumber. Without a build number the
// accumulated URL is returned and stepName is ignored.
func (u *Builder) ResultsURL(builderName string, buildNumber interface{}, stepName string) (string, error) {
	n, ok, err := normalizeBuildNumber(buildNumber)
	if err != nil {
		return "", err
	}
	if n < 0 {
		return "", fmt.Errorf("%w, got %d", ErrInvalidBuildNumber, n)
	}
	if !ok {
		return u.AccumulatedResultsURLBase(builderName), nil
	}

	parts := []string{u.BuilderResultsURLBase(builderName), strconv.FormatInt(n, 10)}
	if stepName != "" {
		parts = append(parts, url.PathEscape(stepName))
	}
	parts = append(parts, layoutTestResults)
	return strings.Join(parts, "/"), nil
}

// BuildResultsURL is ResultsURL for a Build value.
func (u *Builder) BuildResultsURL(b build.Build, stepName string) (string, error) {
	return u.ResultsURL(b.BuilderName, b.Number, stepName)
}

// FullBuilderURL joins base with the builder name, using the bucket naming
// rule (sanitize.URLToken).
func FullBuilderURL(base, builderName string) string {
	return strings.TrimRight(base, "/") + "/" + sanitize.URLToken(builderName)
}

// WebdriverResultsURL returns the testfile query for a build's webdriver
// full_results.json. The parameter order is fixed.
func (u *Builder) WebdriverResultsURL(b build.Build, master string) (string, error) {
	if !b.HasNumber() {
		return "", fmt.Errorf("%w: %v has no build number", provider.ErrPrecondition, b)
	}
	return u.testfileURL([][2]string{
		{"buildnumber", strconv.Itoa(*b.Number)},
		{"master", master},
		{"builder", b.BuilderName},
		{"testtype", webdriverTestType},
		{"name", "full_results.json"},
	}), nil
}

// TestfileStepsURL returns the JSONP listing of every test step uploaded
// for a build.
func (u *Builder) TestfileStepsURL(b build.Build) (string, error) {
	if !b.HasNumber() {
		return "", fmt.Errorf("%w: %v has no build number", provider.ErrPrecondition, b)
	}
	return u.testfileURL([][2]string{
		{"buildnumber", strconv.Itoa(*b.Number)},
		{"callback", "ADD_RESULTS"},
		{"builder", b.BuilderName},
		{"name", "full_results.json"},
	}), nil
}

// testfileURL encodes params in order. url.Values would sort them.
func (u *Builder) testfileURL(params [][2]string) string {
	var sb strings.Builder
	sb.WriteString(u.Host)
	sb.WriteString("/testfile?")
	for i, p := range params {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(url.QueryEscape(p[0]))
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(p[1]))
	}
	return sb.String()
}

func normalizeBuildNumber(v interface{}) (int64, bool, error) {
	switch n := v.(type) {
	case nil:
		return 0, false, nil
	case *int:
		if n == nil {
			return 0, false, nil
		}
		return int64(*n), true, nil
	case string:
		if n == "" {
			return 0, false, nil
		}
		if !digits.MatchString(n) {
			return 0, false, fmt.Errorf("%w, got %q", ErrInvalidBuildNumber, n)
		}
		parsed, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return 0, false, fmt.Errorf("%w, got %q", ErrInvalidBuildNumber, n)
		}
		return parsed, true, nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(rv.Uint()), true, nil
	}
	return 0, false, fmt.Errorf("%w, got %T", ErrInvalidBuildNumber, v)
}
