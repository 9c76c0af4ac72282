// Package bbagent locates builds and step outputs through the bb
// (Buildbucket) command-line tool.
package bbagent

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"results-agent/src/build"
	"results-agent/src/envelope"
	"results-agent/src/jsondoc"
	"results-agent/src/logger"
	"results-agent/src/provider"
	"results-agent/src/results"
	"results-agent/src/runner"
)

const (
	DefaultBBPath       = "bb"
	DefaultLuciAuthPath = "luci-auth"

	stepOutputLog = "json.output"
)

// ErrMissingBuildID is returned when a step lookup is attempted for a build
// without a Buildbucket id.
var ErrMissingBuildID = fmt.Errorf("%w: build id is required to fetch step logs", provider.ErrPrecondition)

// AuthChecker verifies that the bb tool has credentials.
type AuthChecker interface {
	Check(ctx context.Context) error
}

// LuciAuth checks credentials by asking luci-auth for a token.
type LuciAuth struct {
	runner runner.Runner
	path   string
}

func NewLuciAuth(r runner.Runner, path string) *LuciAuth {
	if path == "" {
		path = DefaultLuciAuthPath
	}
	return &LuciAuth{runner: r, path: path}
}

func (a *LuciAuth) Check(ctx context.Context) error {
	if _, err := a.runner.Run(ctx, []string{a.path, "token"}); err != nil {
		return fmt.Errorf("%w: %w", provider.ErrAuthFailed, err)
	}
	return nil
}

// Agent runs bb commands. The first successful auth check is remembered for
// the lifetime of the Agent; failed checks are retried on the next call.
type Agent struct {
	runner runner.Runner
	bbPath string
	auth   AuthChecker
	log    logger.Logger

	mu            sync.Mutex
	authenticated bool
}

// Option configures an Agent.
type Option func(*Agent)

func WithBBPath(path string) Option {
	return func(a *Agent) {
		if path != "" {
			a.bbPath = path
		}
	}
}

func WithAuth(checker AuthChecker) Option {
	return func(a *Agent) { a.auth = checker }
}

func WithLogger(log logger.Logger) Option {
	return func(a *Agent) { a.log = log }
}

// New creates an Agent. Without WithAuth, credentials are checked with
// luci-auth through r.
func New(r runner.Runner, opts ...Option) *Agent {
	a := &Agent{
		runner: r,
		bbPath: DefaultBBPath,
		log:    logger.NewSilentLogger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.auth == nil {
		a.auth = NewLuciAuth(r, DefaultLuciAuthPath)
	}
	return a
}

func (a *Agent) ensureAuthenticated(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.authenticated {
		return nil
	}
	if err := a.auth.Check(ctx); err != nil {
		a.log.Error("Authentication check failed: %v", err)
		a.log.Error("Run `%s login` and try again.", DefaultLuciAuthPath)
		return err
	}
	a.authenticated = true
	return nil
}

// LatestFinishedBuild returns the most recent ended build of builder in the
// chromium try or ci bucket, or nil if the builder has none.
func (a *Agent) LatestFinishedBuild(ctx context.Context, builder string, isTryJob bool) (*build.Build, error) {
	if err := a.ensureAuthenticated(ctx); err != nil {
		return nil, err
	}

	bucket := "ci"
	if isTryJob {
		bucket = "try"
	}
	stdout, err := a.runner.Run(ctx, []string{
		a.bbPath, "ls", "-1", "-json", "-status", "ended",
		fmt.Sprintf("chromium/%s/%s", bucket, builder),
	})
	if err != nil {
		return nil, err
	}

	if len(bytes.TrimSpace(stdout)) == 0 {
		a.log.Debug("No finished builds for %s", builder)
		return nil, nil
	}

	// With -1, bb still prints the newest build first.
	doc, err := envelope.First(stdout)
	if err != nil {
		return nil, fmt.Errorf("bb ls output for %s: %w", builder, err)
	}
	b, err := decodeBuild(builder, doc)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func decodeBuild(builder string, doc jsondoc.Document) (build.Build, error) {
	number, ok := doc.IntField("number")
	if !ok {
		return build.Build{}, fmt.Errorf("%w: bb ls output for %s has no build number", provider.ErrDecode, builder)
	}
	id, ok := doc.StringField("id")
	if !ok {
		if n, isInt := doc.IntField("id"); isInt {
			id = fmt.Sprint(n)
		}
	}
	b, err := build.WithID(builder, int(number), id)
	if err != nil {
		return build.Build{}, fmt.Errorf("%w: %v", provider.ErrDecode, err)
	}
	return b, nil
}

// BuildStepResult returns the json.output log of step in b, or nil if the
// step wrote none.
func (a *Agent) BuildStepResult(ctx context.Context, b build.Build, step string) (*results.StepLogPayload, error) {
	if b.ID == "" {
		return nil, fmt.Errorf("%v: %w", b, ErrMissingBuildID)
	}
	if err := a.ensureAuthenticated(ctx); err != nil {
		return nil, err
	}

	stdout, err := a.runner.Run(ctx, []string{a.bbPath, "log", "-nocolor", b.ID, step, stepOutputLog})
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(stdout)) == 0 {
		a.log.Debug("Step %q of %v has no %s", step, b, stepOutputLog)
		return nil, nil
	}

	doc, err := envelope.Plain(stdout)
	if err != nil {
		return nil, fmt.Errorf("step %q of %v: %w", step, b, err)
	}
	return results.NewStepLogPayload(doc), nil
}
