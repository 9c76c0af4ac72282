// Package fetcher downloads test results from the test-results server and
// ResultDB and decodes them.
//
// Absent data (no build number, HTTP 404, empty body) is reported as a nil
// result with a nil error. Transport and decode failures are returned as
// errors and never turned into absence.
package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"results-agent/src/artifacts"
	"results-agent/src/build"
	"results-agent/src/envelope"
	"results-agent/src/logger"
	"results-agent/src/provider"
	"results-agent/src/results"
	"results-agent/src/resultsurl"
	"results-agent/src/web"
)

const (
	// DefaultResultDBHost serves the ResultDB prpc API.
	DefaultResultDBHost = "https://results.api.cr.dev"

	ResultDBService = "luci.resultdb.v1.ResultDB"

	webdriverStepName = "webdriver_tests_suite (with patch)"
	withPatch         = "(with patch)"
	listArtifactsPage = 1000
)

// Fetcher retrieves and decodes result payloads.
type Fetcher struct {
	client       web.Client
	urls         *resultsurl.Builder
	log          logger.Logger
	retries      int
	resultDBHost string
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithRetries sets the retry count handed to the HTTP client.
func WithRetries(n int) Option {
	return func(f *Fetcher) { f.retries = n }
}

// WithResultDBHost overrides DefaultResultDBHost. A bare host name gets an
// https:// scheme.
func WithResultDBHost(host string) Option {
	return func(f *Fetcher) { f.resultDBHost = normalizeHost(host) }
}

// New creates a Fetcher. A nil urls uses resultsurl.Default and a nil log
// discards output.
func New(client web.Client, urls *resultsurl.Builder, log logger.Logger, opts ...Option) *Fetcher {
	if urls == nil {
		urls = resultsurl.Default()
	}
	if log == nil {
		log = logger.NewSilentLogger()
	}
	f := &Fetcher{
		client:       client,
		urls:         urls,
		log:          log,
		resultDBHost: DefaultResultDBHost,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// URLs returns the URL builder the fetcher uses.
func (f *Fetcher) URLs() *resultsurl.Builder { return f.urls }

// FetchWebTestResults fetches failing_results.json (full_results.json when
// full is set) below resultsURL, as returned by resultsurl.Builder.ResultsURL.
func (f *Fetcher) FetchWebTestResults(ctx context.Context, resultsURL string, full bool, stepName string) (*results.TestResult, error) {
	fileName := "failing_results.json"
	if full {
		fileName = "full_results.json"
	}
	u := resultsURL + "/" + fileName

	body, err := f.getOrNil(ctx, u)
	if err != nil || body == nil {
		return nil, err
	}

	doc, err := envelope.JSONP(body)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", u, err)
	}
	return results.NewTestResult(doc, stepName), nil
}

// FetchResults fetches the failing web test results of a build. When
// stepName is empty the web test step is looked up first; isTryJob selects
// the "(with patch)" variant of that step.
func (f *Fetcher) FetchResults(ctx context.Context, b build.Build, isTryJob bool, stepName string) (*results.TestResult, error) {
	if b.BuilderName == "" || !b.HasNumber() {
		f.log.Debug("Builder name or build number is missing: %v", b)
		return nil, nil
	}

	if stepName == "" {
		var err error
		stepName, err = f.LayoutTestStepName(ctx, b, isTryJob)
		if err != nil {
			return nil, err
		}
	}

	u, err := f.urls.BuildResultsURL(b, stepName)
	if err != nil {
		return nil, err
	}
	return f.FetchWebTestResults(ctx, u, false, stepName)
}

// FetchWebdriverTestResults fetches the webdriver suite's full_results.json
// for a build on master.
func (f *Fetcher) FetchWebdriverTestResults(ctx context.Context, b build.Build, master string) (*results.TestResult, error) {
	if b.BuilderName == "" || !b.HasNumber() || master == "" {
		f.log.Debug("Builder name or build number or master is None")
		return nil, nil
	}

	u, err := f.urls.WebdriverResultsURL(b, master)
	if err != nil {
		return nil, err
	}
	body, err := f.getOrNil(ctx, u)
	if err != nil || body == nil {
		return nil, err
	}

	doc, err := envelope.Plain(body)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", u, err)
	}
	return results.NewTestResult(doc, webdriverStepName), nil
}

// LayoutTestStepName returns the name of the web test step uploaded for a
// build, or "" if the server knows of none.
func (f *Fetcher) LayoutTestStepName(ctx context.Context, b build.Build, isTryJob bool) (string, error) {
	u, err := f.urls.TestfileStepsURL(b)
	if err != nil {
		return "", err
	}
	body, err := f.getOrNil(ctx, u)
	if err != nil || body == nil {
		return "", err
	}

	doc, err := envelope.JSONP(body)
	if err != nil {
		return "", fmt.Errorf("decoding %s: %w", u, err)
	}

	var candidates []string
	for _, entry := range doc.Items() {
		step, ok := entry.StringField("TestType")
		if !ok {
			continue
		}
		if strings.Contains(step, "blink_web_tests") || strings.Contains(step, "webkit_layout_tests") {
			candidates = append(candidates, step)
		}
	}
	f.log.Debug("Found web test steps for %v: %v", b, candidates)
	return pickStep(candidates, isTryJob), nil
}

func pickStep(candidates []string, isTryJob bool) string {
	if len(candidates) == 0 {
		return ""
	}
	for _, c := range candidates {
		if strings.Contains(c, withPatch) == isTryJob {
			return c
		}
	}
	return candidates[0]
}

// FetchPrpcResponse calls a prpc method on host and decodes the prefixed
// JSON response. request is encoded with encoding/json.
func (f *Fetcher) FetchPrpcResponse(ctx context.Context, host, service, method string, request interface{}) (*results.StepLogPayload, error) {
	body, err := f.prpc(ctx, host, service, method, request)
	if err != nil {
		return nil, err
	}
	doc, err := envelope.Prefixed(body)
	if err != nil {
		return nil, fmt.Errorf("%s.%s: %w", service, method, err)
	}
	return results.NewStepLogPayload(doc), nil
}

type listArtifactsRequest struct {
	Parent   string `json:"parent"`
	PageSize int    `json:"pageSize"`
}

// FetchWPTReportURLs lists the artifacts of a build's ResultDB invocation
// and returns the fetch URLs of the report<N> artifacts in listing order.
func (f *Fetcher) FetchWPTReportURLs(ctx context.Context, buildID string) ([]string, error) {
	if buildID == "" {
		return nil, fmt.Errorf("%w: build id is required to list artifacts", provider.ErrPrecondition)
	}

	body, err := f.prpc(ctx, f.resultDBHost, ResultDBService, "ListArtifacts", listArtifactsRequest{
		Parent:   "invocations/build-" + buildID,
		PageSize: listArtifactsPage,
	})
	if err != nil {
		return nil, err
	}

	doc, err := envelope.MaybePrefixed(body)
	if err != nil {
		return nil, fmt.Errorf("ListArtifacts for build %s: %w", buildID, err)
	}
	return artifacts.ReportURLs(doc)
}

func (f *Fetcher) prpc(ctx context.Context, host, service, method string, request interface{}) ([]byte, error) {
	payload, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s request: %w", method, err)
	}

	u := fmt.Sprintf("%s/prpc/%s/%s", normalizeHost(host), service, method)
	resp, err := f.client.Post(ctx, u, payload, web.Options{
		Header: http.Header{
			"Accept":       []string{"application/json"},
			"Content-Type": []string{"application/json"},
		},
		Retries: f.retries,
	})
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// getOrNil returns the body at u, or nil when the server answers 404 or
// sends nothing. Both cases log one debug line naming u.
func (f *Fetcher) getOrNil(ctx context.Context, u string) ([]byte, error) {
	resp, err := f.client.Get(ctx, u, web.Options{ReturnNilOn404: true, Retries: f.retries})
	if err != nil {
		return nil, err
	}
	if resp == nil {
		f.log.Debug("Got 404 response from:\n%s", u)
		return nil, nil
	}
	if len(bytes.TrimSpace(resp.Body)) == 0 {
		f.log.Debug("Got empty response from:\n%s", u)
		return nil, nil
	}
	return resp.Body, nil
}

func normalizeHost(host string) string {
	host = strings.TrimRight(host, "/")
	if !strings.Contains(host, "://") {
		host = "https://" + host
	}
	return host
}
