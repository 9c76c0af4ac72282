// Package artifacts reads ResultDB artifact listings and picks out the
// wptreport artifacts.
package artifacts

import (
	"fmt"
	"regexp"

	"results-agent/src/jsondoc"
	"results-agent/src/provider"
)

// reportName matches report1, report2, ... at the start of the name.
var reportName = regexp.MustCompile(`^report\d+`)

// Artifact is one entry of an artifact listing.
type Artifact struct {
	Name       string
	ArtifactID string
	FetchURL   string
	SizeBytes  int64
}

// IsReport reports whether name follows the report<N> convention.
func IsReport(name string) bool {
	return reportName.MatchString(name)
}

// ParseManifest converts a listing ({"artifacts": [...]}) to Artifacts in
// listing order. A listing without an "artifacts" key has no artifacts.
func ParseManifest(doc jsondoc.Document) ([]Artifact, error) {
	if doc.Kind() != jsondoc.Map {
		return nil, fmt.Errorf("%w: artifact listing is a %v, not an object", provider.ErrDecode, doc.Kind())
	}
	list, ok := doc.Field("artifacts")
	if !ok {
		return []Artifact{}, nil
	}
	if list.Kind() != jsondoc.List {
		return nil, fmt.Errorf("%w: artifacts is a %v, not a list", provider.ErrDecode, list.Kind())
	}

	out := make([]Artifact, 0, list.Len())
	for i, entry := range list.Items() {
		if entry.Kind() != jsondoc.Map {
			return nil, fmt.Errorf("%w: artifacts[%d] is a %v, not an object", provider.ErrDecode, i, entry.Kind())
		}
		a := Artifact{}
		a.Name, _ = entry.StringField("name")
		a.ArtifactID, _ = entry.StringField("artifactId")
		a.FetchURL, _ = entry.StringField("fetchUrl")
		a.SizeBytes, _ = entry.IntField("sizeBytes")
		out = append(out, a)
	}
	return out, nil
}

// Filter returns the artifacts whose names are reports, keeping order.
func Filter(all []Artifact) []Artifact {
	out := []Artifact{}
	for _, a := range all {
		if IsReport(a.Name) {
			out = append(out, a)
		}
	}
	return out
}

// ReportURLs returns the fetch URLs of the report artifacts in listing order.
func ReportURLs(doc jsondoc.Document) ([]string, error) {
	all, err := ParseManifest(doc)
	if err != nil {
		return nil, err
	}
	urls := []string{}
	for _, a := range Filter(all) {
		urls = append(urls, a.FetchURL)
	}
	return urls, nil
}
