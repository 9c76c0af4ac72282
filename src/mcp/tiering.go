package mcp

import (
	"strings"

	"results-agent/src/results"
)

// Default finding limits per tier.
// Tier 1 gets more findings since they're highest signal.
const (
	DefaultTier1Limit = 50
	DefaultTier2Limit = 10
	DefaultTier3Limit = 5
)

// classifyTest returns the tier of a test case, or 0 if it ran as expected
// and passed.
func classifyTest(tc results.TestCase) int {
	runs := strings.Fields(tc.Actual)
	if len(runs) == 0 {
		return 0
	}
	last := runs[len(runs)-1]
	passed := last == "PASS"

	switch {
	case tc.IsUnexpected && !passed:
		return 1
	case passed && (len(runs) > 1 || tc.IsUnexpected):
		return 2
	case !passed && last != "SKIP":
		return 3
	}
	return 0
}

// TierResults sorts the tests of r into tiers. tier1Limit caps tier 1;
// tiers 2 and 3 keep their defaults scaled down in proportion.
func TierResults(r *results.TestResult, tier1Limit int) TieredResponse {
	if tier1Limit <= 0 {
		tier1Limit = DefaultTier1Limit
	}
	limits := map[int]int{
		1: tier1Limit,
		2: scaledLimit(DefaultTier2Limit, tier1Limit),
		3: scaledLimit(DefaultTier3Limit, tier1Limit),
	}

	var resp TieredResponse
	tests := r.Tests()
	resp.Build.TotalTests = len(tests)
	tiers := map[int]*[]Finding{
		1: &resp.Tier1UnexpectedFailures,
		2: &resp.Tier2Flaky,
		3: &resp.Tier3ExpectedFailures,
	}
	for _, tc := range tests {
		tier := classifyTest(tc)
		if tier == 0 {
			continue
		}
		list := tiers[tier]
		if len(*list) >= limits[tier] {
			resp.Omitted++
			continue
		}
		*list = append(*list, Finding{
			ID:         tc.Name,
			Actual:     tc.Actual,
			Expected:   tc.Expected,
			Unexpected: tc.IsUnexpected,
		})
	}
	for _, list := range tiers {
		if *list == nil {
			*list = []Finding{}
		}
	}
	return resp
}

func scaledLimit(def, tier1Limit int) int {
	n := def * tier1Limit / DefaultTier1Limit
	if n < 1 {
		return 1
	}
	return n
}
