package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"results-agent/src/build"
	"results-agent/src/jsondoc"
	"results-agent/src/provider"
	"results-agent/src/results"
	"results-agent/src/resultsurl"
	"results-agent/src/watch"
)

// Locator finds builds and step outputs.
type Locator interface {
	LatestFinishedBuild(ctx context.Context, builder string, isTryJob bool) (*build.Build, error)
	BuildStepResult(ctx context.Context, b build.Build, step string) (*results.StepLogPayload, error)
}

// Fetcher retrieves web test results and WPT reports.
type Fetcher interface {
	FetchResults(ctx context.Context, b build.Build, isTryJob bool, stepName string) (*results.TestResult, error)
	FetchWPTReportURLs(ctx context.Context, buildID string) ([]string, error)
	URLs() *resultsurl.Builder
}

// Server is the MCP server for the results agent.
type Server struct {
	mcpServer   *server.MCPServer
	locator     Locator
	fetcher     Fetcher
	store       ResultsStore
	concurrency int
}

// NewServer creates a new MCP server. A nil store keeps results in memory.
func NewServer(locator Locator, fetcher Fetcher, store ResultsStore) *Server {
	if store == nil {
		store = NewInMemoryStore(DefaultStoreCapacity)
	}
	s := server.NewMCPServer(
		"results-agent",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	srv := &Server{
		mcpServer:   s,
		locator:     locator,
		fetcher:     fetcher,
		store:       store,
		concurrency: 4,
	}
	srv.registerTools()
	return srv
}

// registerTools registers all available tools.
func (s *Server) registerTools() {
	latestTool := mcp.NewTool("latest_builds",
		mcp.WithDescription("Find the latest finished build of each builder. Returns one entry per builder that has finished builds, sorted by builder name."),
		mcp.WithString("builders",
			mcp.Required(),
			mcp.Description("Comma-separated builder names, e.g. linux-rel,mac-rel"),
		),
		mcp.WithBoolean("try",
			mcp.Description("Look in the try bucket instead of ci (default: false)"),
		),
	)

	fetchTool := mcp.NewTool("fetch_results",
		mcp.WithDescription("Fetch the web test results of a build and return non-passing tests in tiers. Tier 1 holds unexpected failures, the likely regressions. Use get_test_result with the returned request_id to inspect one test."),
		mcp.WithString("builder",
			mcp.Required(),
			mcp.Description("Builder name"),
		),
		mcp.WithNumber("number",
			mcp.Required(),
			mcp.Description("Build number"),
		),
		mcp.WithString("step",
			mcp.Description("Test step name; looked up from the build when omitted"),
		),
		mcp.WithBoolean("try",
			mcp.Description("The build is a try job (default: false)"),
		),
		mcp.WithNumber("limit",
			mcp.Description(fmt.Sprintf("Max unexpected failures to return (default: %d)", DefaultTier1Limit)),
		),
	)

	testTool := mcp.NewTool("get_test_result",
		mcp.WithDescription("Get the full result entry of one test from an earlier fetch_results call."),
		mcp.WithString("request_id",
			mcp.Required(),
			mcp.Description("request_id from the fetch_results response"),
		),
		mcp.WithString("test",
			mcp.Required(),
			mcp.Description("Slash-separated test name, the finding id"),
		),
	)

	wptTool := mcp.NewTool("wpt_report_urls",
		mcp.WithDescription("List the fetch URLs of the WPT report artifacts uploaded by a build."),
		mcp.WithString("build_id",
			mcp.Required(),
			mcp.Description("Buildbucket build id"),
		),
	)

	stepTool := mcp.NewTool("step_result",
		mcp.WithDescription("Get the json.output log of a build step."),
		mcp.WithString("build_id",
			mcp.Required(),
			mcp.Description("Buildbucket build id"),
		),
		mcp.WithString("step",
			mcp.Required(),
			mcp.Description("Step name"),
		),
	)

	s.mcpServer.AddTool(latestTool, s.handleLatestBuilds)
	s.mcpServer.AddTool(fetchTool, s.handleFetchResults)
	s.mcpServer.AddTool(testTool, s.handleGetTestResult)
	s.mcpServer.AddTool(wptTool, s.handleWPTReportURLs)
	s.mcpServer.AddTool(stepTool, s.handleStepResult)
}

// Run starts the MCP server on stdio.
func (s *Server) Run() error {
	return server.ServeStdio(s.mcpServer)
}

// LatestBuild is one latest_builds entry.
type LatestBuild struct {
	Builder    string `json:"builder"`
	Number     int    `json:"number"`
	BuildID    string `json:"build_id,omitempty"`
	ResultsURL string `json:"results_url"`
}

func (s *Server) handleLatestBuilds(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var builders []string
	for _, b := range strings.Split(request.GetString("builders", ""), ",") {
		if b = strings.TrimSpace(b); b != "" {
			builders = append(builders, b)
		}
	}
	if len(builders) == 0 {
		return mcp.NewToolResultError("builders parameter is required"), nil
	}
	isTryJob := request.GetBool("try", false)

	poller := watch.NewPoller(s.locator, nil, watch.Options{
		Builders:    builders,
		TryJobs:     isTryJob,
		Concurrency: s.concurrency,
		URLs:        s.fetcher.URLs(),
	})
	latest, err := poller.Latest(ctx)
	if err != nil {
		return toolError("lookup failed", err), nil
	}

	out := []LatestBuild{}
	for _, b := range latest {
		entry := LatestBuild{Builder: b.BuilderName, Number: b.NumberOr(0), BuildID: b.ID}
		entry.ResultsURL, _ = s.fetcher.URLs().BuildResultsURL(b, "")
		out = append(out, entry)
	}
	return jsonResult(out)
}

func (s *Server) handleFetchResults(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	builder := request.GetString("builder", "")
	if builder == "" {
		return mcp.NewToolResultError("builder parameter is required"), nil
	}
	number := request.GetInt("number", -1)
	if number < 0 {
		return mcp.NewToolResultError("number parameter must be a non-negative integer"), nil
	}
	step := request.GetString("step", "")
	isTryJob := request.GetBool("try", false)
	limit := request.GetInt("limit", DefaultTier1Limit)

	b, err := build.WithNumber(builder, number)
	if err != nil {
		return toolError("invalid build", err), nil
	}
	r, err := s.fetcher.FetchResults(ctx, b, isTryJob, step)
	if err != nil {
		return toolError("fetch failed", err), nil
	}
	if r == nil {
		return mcp.NewToolResultText(fmt.Sprintf("No web test results found for %v.", b)), nil
	}

	requestID := requestIDFor(b, isTryJob, r.StepName())
	s.store.Store(requestID, r)

	resp := TierResults(r, limit)
	resp.RequestID = requestID
	resp.Build.Builder = b.BuilderName
	resp.Build.Number = number
	resp.Build.Step = r.StepName()
	resp.Build.ResultsURL, _ = s.fetcher.URLs().BuildResultsURL(b, r.StepName())
	resp.Build.ChromiumRevision, _ = r.ChromiumRevision()
	resp.Build.Interrupted = r.Interrupted()
	return jsonResult(resp)
}

// TestResultDetail is the get_test_result response.
type TestResultDetail struct {
	ID     string           `json:"id"`
	Result jsondoc.Document `json:"result"`
}

func (s *Server) handleGetTestResult(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	requestID := request.GetString("request_id", "")
	if requestID == "" {
		return mcp.NewToolResultError("request_id parameter is required"), nil
	}
	test := request.GetString("test", "")
	if test == "" {
		return mcp.NewToolResultError("test parameter is required"), nil
	}

	tc, found := s.store.Get(requestID, test)
	if !found {
		return mcp.NewToolResultError(fmt.Sprintf("test not found: request_id=%s, test=%s", requestID, test)), nil
	}
	return jsonResult(TestResultDetail{ID: tc.Name, Result: tc.Raw})
}

func (s *Server) handleWPTReportURLs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	buildID := request.GetString("build_id", "")
	if buildID == "" {
		return mcp.NewToolResultError("build_id parameter is required"), nil
	}
	urls, err := s.fetcher.FetchWPTReportURLs(ctx, buildID)
	if err != nil {
		return toolError("listing artifacts failed", err), nil
	}
	return jsonResult(urls)
}

func (s *Server) handleStepResult(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	buildID := request.GetString("build_id", "")
	if buildID == "" {
		return mcp.NewToolResultError("build_id parameter is required"), nil
	}
	step := request.GetString("step", "")
	if step == "" {
		return mcp.NewToolResultError("step parameter is required"), nil
	}

	payload, err := s.locator.BuildStepResult(ctx, build.Build{ID: buildID}, step)
	if err != nil {
		return toolError("step lookup failed", err), nil
	}
	if payload == nil {
		return mcp.NewToolResultText(fmt.Sprintf("Step %q of build %s has no json.output.", step, buildID)), nil
	}
	return jsonResult(payload.Document())
}

func requestIDFor(b build.Build, isTryJob bool, step string) string {
	bucket := "ci"
	if isTryJob {
		bucket = "try"
	}
	id := fmt.Sprintf("%s/%s/%d", bucket, b.BuilderName, b.NumberOr(0))
	if step != "" {
		id += "/" + step
	}
	return id
}

func toolError(action string, err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(fmt.Sprintf("%s: %v", action, provider.WrapError(err)))
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal response: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}
