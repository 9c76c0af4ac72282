// Package contracts defines the messages the results agent publishes.
package contracts

import "time"

// TopicLatestBuilds carries a BuildUpdate whenever a watched builder's
// latest finished build changes.
// Key: {builder}
const TopicLatestBuilds = "results.builds.latest"

// BuildUpdate announces a newly finished build.
type BuildUpdate struct {
	Builder string `json:"builder"`
	// Bucket is "try" or "ci".
	Bucket string `json:"bucket"`
	Number int    `json:"number"`
	// BuildID is the Buildbucket id; empty when bb did not report one.
	BuildID string `json:"build_id,omitempty"`
	// Previous is the build number seen on the prior poll, 0 on the first.
	Previous int `json:"previous,omitempty"`
	// ResultsURL is the build's web test results directory.
	ResultsURL string    `json:"results_url,omitempty"`
	ObservedAt time.Time `json:"observed_at"`
}

// TopicResultsSummaries carries a ResultsSummary for each build whose web
// test results were ingested.
// Key: {builder}
const TopicResultsSummaries = "results.summaries"

// ResultsSummary condenses the web test results of one build.
type ResultsSummary struct {
	Builder          string `json:"builder"`
	Number           int    `json:"number"`
	BuildID          string `json:"build_id,omitempty"`
	Step             string `json:"step,omitempty"`
	ChromiumRevision string `json:"chromium_revision,omitempty"`
	Interrupted      bool   `json:"interrupted"`
	TotalTests       int    `json:"total_tests"`
	// Unexpected lists the tests that did not run as expected, sorted.
	Unexpected []string `json:"unexpected"`
}
