// Package main provides the MCP server entry point for the results agent.
// The server speaks the Model Context Protocol over stdio and exposes build
// lookup and web test results as tools.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"results-agent/src/config"
	"results-agent/src/logger"
	"results-agent/src/mcp"
	"results-agent/src/pipeline"
	"results-agent/src/provider"
	"results-agent/src/runner"
)

type serverOptions struct {
	configPath string
	verbose    bool
}

func newRootCmd(serve func(opts serverOptions) error) *cobra.Command {
	var opts serverOptions
	rootCmd := &cobra.Command{
		Use:   "mcp-server",
		Short: "Serve build lookup and web test results over MCP (stdio)",
		Long: `mcp-server speaks the Model Context Protocol on stdin/stdout and exposes
the latest_builds, fetch_results, get_test_result, wpt_report_urls and
step_result tools. Logs go to stderr.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(opts)
		},
	}
	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file (default .results-agent.yml)")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log debug output to stderr")
	return rootCmd
}

func serve(opts serverOptions) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	// stdout carries the protocol, so everything else goes to stderr.
	consoleLog := &logger.ConsoleLogger{Out: os.Stderr, Err: os.Stderr, Verbose: opts.verbose || cfg.Debug}
	p := pipeline.New(cfg, runner.NewSubprocess(consoleLog), consoleLog)

	if err := mcp.NewServer(p.Agent, p.Fetcher, nil).Run(); err != nil {
		return fmt.Errorf("MCP server error: %w", err)
	}
	return nil
}

func main() {
	if err := newRootCmd(serve).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", provider.WrapError(err))
		os.Exit(1)
	}
}
