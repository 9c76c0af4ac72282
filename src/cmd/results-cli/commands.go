package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"results-agent/src/build"
	"results-agent/src/contracts"
	"results-agent/src/ingest"
	"results-agent/src/results"
	"results-agent/src/resultsurl"
	"results-agent/src/watch"
)

func parseBuild(builder, number string) (build.Build, error) {
	n, err := strconv.Atoi(number)
	if err != nil {
		return build.Build{}, fmt.Errorf("%w: %q", resultsurl.ErrInvalidBuildNumber, number)
	}
	return build.WithNumber(builder, n)
}

func newLatestCmd(a *app) *cobra.Command {
	var tryJobs bool
	cmd := &cobra.Command{
		Use:   "latest [builder...]",
		Short: "Show the latest finished build of each builder",
		Long: `Look up the most recent ended build of each builder with bb.

Builders without finished builds are left out. Builds are listed by builder name.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			poller := watch.NewPoller(a.locator, nil, watch.Options{
				Builders:    args,
				TryJobs:     tryJobs,
				Concurrency: a.cfg.Watch.Concurrency,
				URLs:        a.urls,
				Log:         a.log,
			})
			latest, err := poller.Latest(cmd.Context())
			if err != nil {
				return err
			}
			if len(latest) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No finished builds found.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "BUILDER\tNUMBER\tBUILD ID")
			for _, b := range latest {
				fmt.Fprintf(w, "%s\t%d\t%s\n", b.BuilderName, b.NumberOr(0), b.ID)
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&tryJobs, "try", false, "look in the try bucket instead of ci")
	return cmd
}

func newResultsCmd(a *app) *cobra.Command {
	var (
		step    string
		tryJobs bool
		full    bool
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "results <builder> <build-number>",
		Short: "Show the web tests of a build that did not run as expected",
		Long: `Download the failing_results.json of a build from the test-results server.

When --step is not given, the web test step is looked up from the build's
uploaded steps; --try picks the "(with patch)" step.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := parseBuild(args[0], args[1])
			if err != nil {
				return err
			}

			var r *results.TestResult
			if full {
				u, err := a.urls.BuildResultsURL(b, step)
				if err != nil {
					return err
				}
				r, err = a.fetcher.FetchWebTestResults(cmd.Context(), u, true, step)
				if err != nil {
					return err
				}
			} else {
				r, err = a.fetcher.FetchResults(cmd.Context(), b, tryJobs, step)
				if err != nil {
					return err
				}
			}
			if r == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "No results found for %v.\n", b)
				return nil
			}
			if asJSON {
				fmt.Fprintln(cmd.OutOrStdout(), r.Document())
				return nil
			}
			printTestResult(cmd.OutOrStdout(), r)
			return nil
		},
	}
	cmd.Flags().StringVar(&step, "step", "", "test step name")
	cmd.Flags().BoolVar(&tryJobs, "try", false, "the build is a try job")
	cmd.Flags().BoolVar(&full, "full", false, "fetch full_results.json instead of failing_results.json")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw results JSON")
	return cmd
}

func printTestResult(out io.Writer, r *results.TestResult) {
	if name := r.BuilderName(); name != "" {
		fmt.Fprintf(out, "Builder:  %s\n", name)
	}
	if step := r.StepName(); step != "" {
		fmt.Fprintf(out, "Step:     %s\n", step)
	}
	if rev, ok := r.ChromiumRevision(); ok {
		fmt.Fprintf(out, "Revision: %s\n", rev)
	}
	if r.Interrupted() {
		fmt.Fprintln(out, "⚠️  The test run was interrupted; results are incomplete.")
	}

	unexpected := r.DidntRunAsExpected()
	if len(unexpected) == 0 {
		fmt.Fprintln(out, "All tests ran as expected.")
		return
	}
	fmt.Fprintf(out, "\n%d tests did not run as expected:\n", len(unexpected))
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TEST\tACTUAL\tEXPECTED")
	for _, name := range unexpected {
		tc, _ := r.ResultForTest(name)
		fmt.Fprintf(w, "%s\t%s\t%s\n", tc.Name, tc.Actual, tc.Expected)
	}
	w.Flush()
}

func newWebdriverCmd(a *app) *cobra.Command {
	var master string
	cmd := &cobra.Command{
		Use:   "webdriver <builder> <build-number>",
		Short: "Show the webdriver tests of a build that did not run as expected",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := parseBuild(args[0], args[1])
			if err != nil {
				return err
			}
			r, err := a.fetcher.FetchWebdriverTestResults(cmd.Context(), b, master)
			if err != nil {
				return err
			}
			if r == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "No webdriver results found for %v.\n", b)
				return nil
			}
			printTestResult(cmd.OutOrStdout(), r)
			return nil
		},
	}
	cmd.Flags().StringVar(&master, "master", "", "master (builder group) name, e.g. tryserver.chromium.linux")
	cmd.MarkFlagRequired("master")
	return cmd
}

func newStepResultCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "step-result <build-id> <step>",
		Short: "Print the json.output log of a build step",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := a.locator.BuildStepResult(cmd.Context(), build.Build{ID: args[0]}, args[1])
			if err != nil {
				return err
			}
			if payload == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Step %q has no json.output.\n", args[1])
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), payload.Document())
			return nil
		},
	}
}

func newWPTReportsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "wpt-reports <build-id>",
		Short: "List the WPT report artifacts of a build",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			urls, err := a.fetcher.FetchWPTReportURLs(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for _, u := range urls {
				fmt.Fprintln(cmd.OutOrStdout(), u)
			}
			return nil
		},
	}
}

func newWatchCmd(a *app) *cobra.Command {
	var (
		tryJobs  bool
		interval time.Duration
		once     bool
	)
	cmd := &cobra.Command{
		Use:   "watch [builder...]",
		Short: "Poll builders and announce new finished builds",
		Long: `Poll the given builders (or watch.builders from the config file) and
publish a message to ` + contracts.TopicLatestBuilds + ` whenever a builder
finishes a new build.

Set REDPANDA_BROKERS to publish to Redpanda; otherwise updates are only printed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			builders := args
			if len(builders) == 0 {
				builders = a.cfg.Watch.Builders
			}
			if len(builders) == 0 {
				return fmt.Errorf("no builders to watch: pass them as arguments or set watch.builders")
			}
			if !cmd.Flags().Changed("try") {
				tryJobs = a.cfg.Watch.TryJobs
			}
			if !cmd.Flags().Changed("interval") {
				interval = a.cfg.Watch.Interval
			}

			b, err := a.newBroker()
			if err != nil {
				return err
			}
			defer b.Close()

			poller := watch.NewPoller(a.locator, b, watch.Options{
				Builders:    builders,
				TryJobs:     tryJobs,
				Concurrency: a.cfg.Watch.Concurrency,
				URLs:        a.urls,
				Log:         a.log,
			})

			if once {
				updates, err := poller.Poll(cmd.Context())
				if err != nil {
					return err
				}
				for _, u := range updates {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\t%s\n", u.Builder, u.Number, u.ResultsURL)
				}
				return nil
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			fmt.Fprintf(cmd.OutOrStdout(), "Watching %d builders every %v (Ctrl+C to stop)\n", len(builders), interval)
			return poller.Run(ctx, interval)
		},
	}
	cmd.Flags().BoolVar(&tryJobs, "try", false, "watch the try bucket instead of ci")
	cmd.Flags().DurationVar(&interval, "interval", 5*time.Minute, "time between polls")
	cmd.Flags().BoolVar(&once, "once", false, "poll once and print the new builds")
	return cmd
}

func newIngestCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "Summarize the results of announced builds",
		Long: `Consume ` + contracts.TopicLatestBuilds + ` messages, fetch the web test results of
each announced build and publish a summary to ` + contracts.TopicResultsSummaries + `.

Run it next to "results watch" with REDPANDA_BROKERS set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := a.newBroker()
			if err != nil {
				return err
			}
			defer b.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			err = ingest.NewAgent(b, a.fetcher, a.log).Run(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}

func newURLCmd(a *app) *cobra.Command {
	var step string
	cmd := &cobra.Command{
		Use:   "url <builder> [build-number]",
		Short: "Print the results URL of a builder or build",
		Long: `Print where the test-results server keeps results.

Without a build number this is the builder's accumulated results directory.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var number interface{}
			if len(args) == 2 {
				number = args[1]
			}
			u, err := a.urls.ResultsURL(args[0], number, step)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), u)
			return nil
		},
	}
	cmd.Flags().StringVar(&step, "step", "", "test step name")
	return cmd
}
