// Package ingest provides the results ingest agent. It consumes build
// updates and publishes a summary of each build's web test results.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"

	"results-agent/src/broker"
	"results-agent/src/build"
	"results-agent/src/contracts"
	"results-agent/src/logger"
	"results-agent/src/results"
)

// ConsumerGroup is the consumer group the agent subscribes with.
const ConsumerGroup = "results-ingest"

// Fetcher retrieves the web test results of a build.
type Fetcher interface {
	FetchResults(ctx context.Context, b build.Build, isTryJob bool, stepName string) (*results.TestResult, error)
}

// Agent consumes build updates and publishes results summaries.
type Agent struct {
	broker  broker.Broker
	fetcher Fetcher
	logger  logger.Logger
}

// NewAgent creates a new ingest agent.
func NewAgent(brk broker.Broker, f Fetcher, log logger.Logger) *Agent {
	if log == nil {
		log = logger.NewSilentLogger()
	}
	return &Agent{broker: brk, fetcher: f, logger: log}
}

// Run processes build updates until ctx is done or the subscription ends.
func (a *Agent) Run(ctx context.Context) error {
	msgChan, err := a.broker.Subscribe(ctx, contracts.TopicLatestBuilds, ConsumerGroup)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", contracts.TopicLatestBuilds, err)
	}

	a.logger.Info("[IngestAgent] Listening for builds on '%s' topic...", contracts.TopicLatestBuilds)

	for {
		select {
		case msg, ok := <-msgChan:
			if !ok {
				a.logger.Info("[IngestAgent] Message channel closed, shutting down")
				return nil
			}
			if err := a.processUpdate(ctx, msg); err != nil {
				a.logger.Error("[IngestAgent] Error processing %s: %v", msg.Key, err)
			}

		case <-ctx.Done():
			a.logger.Info("[IngestAgent] Context cancelled, shutting down")
			return ctx.Err()
		}
	}
}

func (a *Agent) processUpdate(ctx context.Context, msg broker.Message) error {
	var update contracts.BuildUpdate
	if err := json.Unmarshal(msg.Value, &update); err != nil {
		return fmt.Errorf("failed to unmarshal build update: %w", err)
	}

	b, err := build.WithID(update.Builder, update.Number, update.BuildID)
	if err != nil {
		return fmt.Errorf("invalid build update: %w", err)
	}
	a.logger.Info("[IngestAgent] Fetching results for %v", b)

	r, err := a.fetcher.FetchResults(ctx, b, update.Bucket == "try", "")
	if err != nil {
		return fmt.Errorf("fetching results for %v: %w", b, err)
	}
	if r == nil {
		a.logger.Info("[IngestAgent] No web test results for %v", b)
		return nil
	}

	summary := Summarize(b, r)
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}
	if err := a.broker.Publish(ctx, contracts.TopicResultsSummaries, b.BuilderName, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", contracts.TopicResultsSummaries, err)
	}

	a.logger.Info("[IngestAgent] Published summary for %v: %d unexpected of %d tests",
		b, len(summary.Unexpected), summary.TotalTests)
	return nil
}

// Summarize condenses r, the results of b.
func Summarize(b build.Build, r *results.TestResult) contracts.ResultsSummary {
	summary := contracts.ResultsSummary{
		Builder:     b.BuilderName,
		Number:      b.NumberOr(0),
		BuildID:     b.ID,
		Step:        r.StepName(),
		Interrupted: r.Interrupted(),
		TotalTests:  len(r.TestNames()),
		Unexpected:  r.DidntRunAsExpected(),
	}
	summary.ChromiumRevision, _ = r.ChromiumRevision()
	if summary.Unexpected == nil {
		summary.Unexpected = []string{}
	}
	return summary
}
