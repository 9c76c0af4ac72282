// Package mcp provides the MCP server exposing build lookup and web test
// results to LLM clients.
package mcp

// TieredResponse is the fetch_results tool response.
type TieredResponse struct {
	RequestID string    `json:"request_id"`
	Build     BuildInfo `json:"build"`
	// Tier 1: failures the expectations did not predict.
	Tier1UnexpectedFailures []Finding `json:"tier_1_unexpected_failures"`
	// Tier 2: tests that passed on retry or passed unexpectedly.
	Tier2Flaky []Finding `json:"tier_2_flaky"`
	// Tier 3: failures covered by expectations.
	Tier3ExpectedFailures []Finding `json:"tier_3_expected_failures"`
	// Omitted counts the findings left out by the per-tier limits.
	Omitted int `json:"omitted,omitempty"`
}

// BuildInfo contains build and result metadata.
type BuildInfo struct {
	Builder          string `json:"builder"`
	Number           int    `json:"number"`
	Step             string `json:"step,omitempty"`
	ResultsURL       string `json:"results_url"`
	ChromiumRevision string `json:"chromium_revision,omitempty"`
	Interrupted      bool   `json:"interrupted"`
	TotalTests       int    `json:"total_tests"`
}

// Finding is one non-passing test.
type Finding struct {
	// ID is the slash-separated test name, used for get_test_result.
	ID         string `json:"id"`
	Actual     string `json:"actual"`
	Expected   string `json:"expected"`
	Unexpected bool   `json:"unexpected"`
}
