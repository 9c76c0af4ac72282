// Package main provides the results CLI: build lookup, web test results and
// WPT report retrieval for Chromium builders.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"results-agent/src/broker"
	"results-agent/src/build"
	"results-agent/src/config"
	"results-agent/src/logger"
	"results-agent/src/pipeline"
	"results-agent/src/provider"
	"results-agent/src/results"
	"results-agent/src/resultsurl"
	"results-agent/src/runner"
	"results-agent/src/watch"
)

type locator interface {
	watch.Locator
	BuildStepResult(ctx context.Context, b build.Build, step string) (*results.StepLogPayload, error)
}

type resultsFetcher interface {
	FetchResults(ctx context.Context, b build.Build, isTryJob bool, stepName string) (*results.TestResult, error)
	FetchWebTestResults(ctx context.Context, resultsURL string, full bool, stepName string) (*results.TestResult, error)
	FetchWebdriverTestResults(ctx context.Context, b build.Build, master string) (*results.TestResult, error)
	FetchWPTReportURLs(ctx context.Context, buildID string) ([]string, error)
}

// app holds what the commands share. Tests fill it in directly; otherwise
// it is built from the configuration before any command runs.
type app struct {
	cfg       *config.Config
	log       logger.Logger
	urls      *resultsurl.Builder
	locator   locator
	fetcher   resultsFetcher
	newBroker func() (broker.Broker, error)

	configPath string
	verbose    bool
}

func (a *app) init() error {
	if a.fetcher != nil {
		return nil
	}

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	log := logger.NewConsoleLogger(a.verbose || cfg.Debug)
	p := pipeline.New(cfg, runner.NewSubprocess(log), log)

	a.cfg = cfg
	a.log = log
	a.urls = p.URLs
	a.locator = p.Agent
	a.fetcher = p.Fetcher
	a.newBroker = p.NewBroker
	log.Debug("Using %s mode", pipeline.DetectMode(cfg))
	return nil
}

func newRootCmd(a *app, out io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "results",
		Short: "Results - retrieve Chromium web test results",
		Long: `Results looks up finished builds with the bb tool and downloads their
web test results from the test-results server and ResultDB.

Settings come from .results-agent.yml and RESULTS_* environment variables.
bb and luci-auth must be on PATH (or set BB_PATH and LUCI_AUTH_PATH).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}
	rootCmd.SetOut(out)
	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "config file (default .results-agent.yml)")
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log debug output to stderr")

	rootCmd.AddCommand(
		newLatestCmd(a),
		newResultsCmd(a),
		newWebdriverCmd(a),
		newStepResultCmd(a),
		newWPTReportsCmd(a),
		newWatchCmd(a),
		newIngestCmd(a),
		newURLCmd(a),
	)
	return rootCmd
}

func main() {
	if err := newRootCmd(&app{}, os.Stdout).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", provider.WrapError(err))
		os.Exit(1)
	}
}
