// Package watch polls builders for newly finished builds and announces them
// on the broker.
package watch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"results-agent/src/broker"
	"results-agent/src/build"
	"results-agent/src/contracts"
	"results-agent/src/logger"
	"results-agent/src/provider"
	"results-agent/src/resultsurl"
)

// Locator finds the latest finished build of a builder.
type Locator interface {
	LatestFinishedBuild(ctx context.Context, builder string, isTryJob bool) (*build.Build, error)
}

// Options configure a Poller.
type Options struct {
	Builders []string
	TryJobs  bool
	// Concurrency bounds the number of builders queried at once.
	Concurrency int
	URLs        *resultsurl.Builder
	Log         logger.Logger
}

// Poller remembers the last build number seen per builder and publishes a
// contracts.BuildUpdate only when it changes.
type Poller struct {
	locator Locator
	broker  broker.Broker
	opts    Options
	now     func() time.Time

	mu   sync.Mutex
	seen map[string]int
}

func NewPoller(locator Locator, b broker.Broker, opts Options) *Poller {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.URLs == nil {
		opts.URLs = resultsurl.Default()
	}
	if opts.Log == nil {
		opts.Log = logger.NewSilentLogger()
	}
	return &Poller{
		locator: locator,
		broker:  b,
		opts:    opts,
		now:     time.Now,
		seen:    make(map[string]int),
	}
}

// Latest queries every builder and returns one build per builder that has
// finished builds, sorted by builder name. Lookup failures for a single
// builder are logged and skipped; authentication failures abort.
func (p *Poller) Latest(ctx context.Context) ([]build.Build, error) {
	var (
		mu     sync.Mutex
		builds []build.Build
	)

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(p.opts.Concurrency)
	for _, builder := range p.opts.Builders {
		eg.Go(func() error {
			b, err := p.locator.LatestFinishedBuild(ctx, builder, p.opts.TryJobs)
			if err != nil {
				if errors.Is(err, provider.ErrAuthFailed) || ctx.Err() != nil {
					return err
				}
				p.opts.Log.Error("Failed to find latest build of %s: %v", builder, err)
				return nil
			}
			if b == nil {
				p.opts.Log.Debug("No finished builds for %s", builder)
				return nil
			}
			mu.Lock()
			builds = append(builds, *b)
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return build.FilterLatest(builds), nil
}

// Poll runs one round and returns the updates it published.
func (p *Poller) Poll(ctx context.Context) ([]contracts.BuildUpdate, error) {
	latest, err := p.Latest(ctx)
	if err != nil {
		return nil, err
	}

	var updates []contracts.BuildUpdate
	for _, b := range latest {
		if !b.HasNumber() {
			continue
		}
		number := *b.Number

		p.mu.Lock()
		previous, known := p.seen[b.BuilderName]
		p.mu.Unlock()
		if known && previous == number {
			continue
		}

		update := p.newUpdate(b, previous)
		value, err := json.Marshal(update)
		if err != nil {
			return updates, fmt.Errorf("encoding update for %v: %w", b, err)
		}
		if err := p.broker.Publish(ctx, contracts.TopicLatestBuilds, b.BuilderName, value); err != nil {
			return updates, fmt.Errorf("publishing update for %v: %w", b, err)
		}

		p.mu.Lock()
		p.seen[b.BuilderName] = number
		p.mu.Unlock()

		p.opts.Log.Info("New build %v (previous %d)", b, previous)
		updates = append(updates, update)
	}
	return updates, nil
}

func (p *Poller) newUpdate(b build.Build, previous int) contracts.BuildUpdate {
	bucket := "ci"
	if p.opts.TryJobs {
		bucket = "try"
	}
	update := contracts.BuildUpdate{
		Builder:    b.BuilderName,
		Bucket:     bucket,
		Number:     *b.Number,
		BuildID:    b.ID,
		Previous:   previous,
		ObservedAt: p.now().UTC(),
	}
	if u, err := p.opts.URLs.BuildResultsURL(b, ""); err == nil {
		update.ResultsURL = u
	}
	return update
}

// Run polls every interval until ctx is done. Only authentication failures
// stop it early.
func (p *Poller) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := p.Poll(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, provider.ErrAuthFailed) {
				return err
			}
			p.opts.Log.Error("Poll failed: %v", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
