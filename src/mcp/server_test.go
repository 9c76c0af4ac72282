package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/mark3labs/mcp-go/mcp"

	"results-agent/src/build"
	"results-agent/src/jsondoc"
	"results-agent/src/provider"
	"results-agent/src/results"
	"results-agent/src/resultsurl"
)

type fakeLocator struct {
	latest map[string]int
	steps  map[string]string
	err    error
}

func (f *fakeLocator) LatestFinishedBuild(ctx context.Context, builder string, isTryJob bool) (*build.Build, error) {
	if f.err != nil {
		return nil, f.err
	}
	n, ok := f.latest[builder]
	if !ok {
		return nil, nil
	}
	b, err := build.WithID(builder, n, "bb-"+builder)
	return &b, err
}

func (f *fakeLocator) BuildStepResult(ctx context.Context, b build.Build, step string) (*results.StepLogPayload, error) {
	out, ok := f.steps[b.ID+"/"+step]
	if !ok {
		return nil, nil
	}
	doc, err := jsondoc.Parse([]byte(out))
	if err != nil {
		return nil, err
	}
	return results.NewStepLogPayload(doc), nil
}

type fakeFetcher struct {
	results map[string]string
	reports []string
	err     error
}

func (f *fakeFetcher) FetchResults(ctx context.Context, b build.Build, isTryJob bool, stepName string) (*results.TestResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, ok := f.results[b.String()]
	if !ok {
		return nil, nil
	}
	doc, err := jsondoc.Parse([]byte(body))
	if err != nil {
		return nil, err
	}
	return results.NewTestResult(doc, "blink_web_tests"), nil
}

func (f *fakeFetcher) FetchWPTReportURLs(ctx context.Context, buildID string) ([]string, error) {
	return f.reports, f.err
}

func (f *fakeFetcher) URLs() *resultsurl.Builder { return resultsurl.Default() }

func callTool(name string, args map[string]interface{}) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) != 1 {
		t.Fatalf("got %d content items, want 1", len(res.Content))
	}
	text, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content is %T, want mcp.TextContent", res.Content[0])
	}
	return text.Text
}

func newTestServer() (*Server, *fakeLocator, *fakeFetcher) {
	loc := &fakeLocator{latest: map[string]int{}, steps: map[string]string{}}
	fetch := &fakeFetcher{results: map[string]string{}}
	return NewServer(loc, fetch, nil), loc, fetch
}

func TestHandleLatestBuilds(t *testing.T) {
	s, loc, _ := newTestServer()
	loc.latest["mac-rel"] = 12
	loc.latest["linux-rel"] = 40

	res, err := s.handleLatestBuilds(context.Background(), callTool("latest_builds", map[string]interface{}{
		"builders": "mac-rel, linux-rel,unknown",
		"try":      true,
	}))
	if err != nil {
		t.Fatalf("handleLatestBuilds() error = %v", err)
	}
	if res.IsError {
		t.Fatalf("tool error: %s", resultText(t, res))
	}

	var got []LatestBuild
	if err := json.Unmarshal([]byte(resultText(t, res)), &got); err != nil {
		t.Fatal(err)
	}
	want := []LatestBuild{
		{Builder: "linux-rel", Number: 40, BuildID: "bb-linux-rel", ResultsURL: "https://test-results.appspot.com/data/layout_results/linux-rel/40/layout-test-results"},
		{Builder: "mac-rel", Number: 12, BuildID: "bb-mac-rel", ResultsURL: "https://test-results.appspot.com/data/layout_results/mac-rel/12/layout-test-results"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("latest_builds mismatch (-want +got):\n%s", diff)
	}
}

func TestHandleLatestBuilds_Errors(t *testing.T) {
	s, loc, _ := newTestServer()

	res, _ := s.handleLatestBuilds(context.Background(), callTool("latest_builds", map[string]interface{}{"builders": " , "}))
	if !res.IsError {
		t.Error("expected error for empty builders")
	}

	loc.err = provider.ErrAuthFailed
	res, _ = s.handleLatestBuilds(context.Background(), callTool("latest_builds", map[string]interface{}{"builders": "linux-rel"}))
	if !res.IsError || !strings.Contains(resultText(t, res), "luci-auth login") {
		t.Errorf("expected auth hint, got %q", resultText(t, res))
	}
}

func TestHandleFetchResults_ThenGetTestResult(t *testing.T) {
	s, _, fetch := newTestServer()
	fetch.results[`Build("linux-rel", 40)`] = tieredResults

	res, err := s.handleFetchResults(context.Background(), callTool("fetch_results", map[string]interface{}{
		"builder": "linux-rel",
		"number":  float64(40),
	}))
	if err != nil || res.IsError {
		t.Fatalf("handleFetchResults() = %v, %v", resultText(t, res), err)
	}

	var resp TieredResponse
	if err := json.Unmarshal([]byte(resultText(t, res)), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.RequestID != "ci/linux-rel/40/blink_web_tests" {
		t.Errorf("RequestID = %q", resp.RequestID)
	}
	if resp.Build.Builder != "linux-rel" || resp.Build.Number != 40 || resp.Build.TotalTests != 7 {
		t.Errorf("Build = %+v", resp.Build)
	}
	if len(resp.Tier1UnexpectedFailures) != 2 {
		t.Errorf("Tier1 = %+v", resp.Tier1UnexpectedFailures)
	}

	res, err = s.handleGetTestResult(context.Background(), callTool("get_test_result", map[string]interface{}{
		"request_id": resp.RequestID,
		"test":       "fast/b.html",
	}))
	if err != nil || res.IsError {
		t.Fatalf("handleGetTestResult() = %v, %v", resultText(t, res), err)
	}
	want := `{"id":"fast/b.html","result":{"actual":"FAIL","expected":"PASS","is_unexpected":true}}`
	if got := resultText(t, res); got != want {
		t.Errorf("get_test_result = %s, want %s", got, want)
	}

	res, _ = s.handleGetTestResult(context.Background(), callTool("get_test_result", map[string]interface{}{
		"request_id": resp.RequestID,
		"test":       "fast/nope.html",
	}))
	if !res.IsError {
		t.Error("expected error for unknown test")
	}
}

func TestHandleFetchResults_Absent(t *testing.T) {
	s, _, _ := newTestServer()

	res, err := s.handleFetchResults(context.Background(), callTool("fetch_results", map[string]interface{}{
		"builder": "linux-rel",
		"number":  float64(1),
	}))
	if err != nil || res.IsError {
		t.Fatalf("handleFetchResults() = %v, %v", res, err)
	}
	if !strings.HasPrefix(resultText(t, res), "No web test results found") {
		t.Errorf("text = %q", resultText(t, res))
	}
}

func TestHandleFetchResults_BadArguments(t *testing.T) {
	s, _, _ := newTestServer()

	tests := []struct {
		name string
		args map[string]interface{}
	}{
		{name: "no builder", args: map[string]interface{}{"number": float64(1)}},
		{name: "no number", args: map[string]interface{}{"builder": "linux-rel"}},
		{name: "negative number", args: map[string]interface{}{"builder": "linux-rel", "number": float64(-3)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := s.handleFetchResults(context.Background(), callTool("fetch_results", tt.args))
			if err != nil {
				t.Fatalf("handleFetchResults() error = %v", err)
			}
			if !res.IsError {
				t.Errorf("expected tool error, got %q", resultText(t, res))
			}
		})
	}
}

func TestHandleWPTReportURLs(t *testing.T) {
	s, _, fetch := newTestServer()
	fetch.reports = []string{"https://a/report1", "https://a/report2"}

	res, err := s.handleWPTReportURLs(context.Background(), callTool("wpt_report_urls", map[string]interface{}{"build_id": "31415"}))
	if err != nil || res.IsError {
		t.Fatalf("handleWPTReportURLs() = %v, %v", res, err)
	}
	if got := resultText(t, res); got != `["https://a/report1","https://a/report2"]` {
		t.Errorf("wpt_report_urls = %s", got)
	}

	fetch.err = provider.ErrDecode
	res, _ = s.handleWPTReportURLs(context.Background(), callTool("wpt_report_urls", map[string]interface{}{"build_id": "31415"}))
	if !res.IsError || !strings.Contains(resultText(t, res), "Unexpected response format") {
		t.Errorf("expected decode error, got %q", resultText(t, res))
	}
}

func TestHandleStepResult(t *testing.T) {
	s, loc, _ := newTestServer()
	loc.steps["8834/blink_web_tests"] = `{"version": 3, "num_regressions": 0}`

	res, err := s.handleStepResult(context.Background(), callTool("step_result", map[string]interface{}{
		"build_id": "8834",
		"step":     "blink_web_tests",
	}))
	if err != nil || res.IsError {
		t.Fatalf("handleStepResult() = %v, %v", res, err)
	}
	if got := resultText(t, res); got != `{"version":3,"num_regressions":0}` {
		t.Errorf("step_result = %s", got)
	}

	res, _ = s.handleStepResult(context.Background(), callTool("step_result", map[string]interface{}{
		"build_id": "8834",
		"step":     "other",
	}))
	if res.IsError || !strings.Contains(resultText(t, res), "has no json.output") {
		t.Errorf("step_result for missing step = %q", resultText(t, res))
	}

	res, _ = s.handleStepResult(context.Background(), callTool("step_result", map[string]interface{}{"step": "x"}))
	if !res.IsError {
		t.Error("expected error without build_id")
	}
}
