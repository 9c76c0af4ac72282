// Package pipeline wires the components shared by the CLI and the MCP server.
package pipeline

import (
	"results-agent/src/bbagent"
	"results-agent/src/broker"
	"results-agent/src/config"
	"results-agent/src/fetcher"
	"results-agent/src/ingest"
	"results-agent/src/logger"
	"results-agent/src/resultsurl"
	"results-agent/src/runner"
	"results-agent/src/watch"
	"results-agent/src/web"
)

// Mode selects where build updates go.
type Mode int

const (
	// LocalMode keeps build updates in process.
	LocalMode Mode = iota
	// DistributedMode publishes build updates to Redpanda.
	DistributedMode
)

func (m Mode) String() string {
	if m == DistributedMode {
		return "distributed"
	}
	return "local"
}

// DetectMode returns DistributedMode when Redpanda brokers are configured.
func DetectMode(cfg *config.Config) Mode {
	if len(cfg.Brokers) > 0 {
		return DistributedMode
	}
	return LocalMode
}

// Pipeline holds the configured fetcher and build locator.
type Pipeline struct {
	Config  *config.Config
	Log     logger.Logger
	URLs    *resultsurl.Builder
	Fetcher *fetcher.Fetcher
	Agent   *bbagent.Agent
}

// New builds the components described by cfg. r runs bb and luci-auth.
func New(cfg *config.Config, r runner.Runner, log logger.Logger) *Pipeline {
	if log == nil {
		log = logger.NewSilentLogger()
	}
	urls := resultsurl.New(cfg.ResultsServer)
	return &Pipeline{
		Config: cfg,
		Log:    log,
		URLs:   urls,
		Fetcher: fetcher.New(
			web.NewHTTPClient(cfg.HTTPTimeout),
			urls,
			log,
			fetcher.WithRetries(cfg.Retries),
			fetcher.WithResultDBHost(cfg.ResultDBHost),
		),
		Agent: bbagent.New(r,
			bbagent.WithBBPath(cfg.BBPath),
			bbagent.WithAuth(bbagent.NewLuciAuth(r, cfg.LuciAuthPath)),
			bbagent.WithLogger(log),
		),
	}
}

// NewBroker returns the broker for the detected mode.
func (p *Pipeline) NewBroker() (broker.Broker, error) {
	return broker.New(p.Config.Brokers, p.Log)
}

// NewPoller returns a poller over builders, or over the configured watch
// list when builders is empty.
func (p *Pipeline) NewPoller(b broker.Broker, builders []string, tryJobs bool) *watch.Poller {
	if len(builders) == 0 {
		builders = p.Config.Watch.Builders
	}
	return watch.NewPoller(p.Agent, b, watch.Options{
		Builders:    builders,
		TryJobs:     tryJobs,
		Concurrency: p.Config.Watch.Concurrency,
		URLs:        p.URLs,
		Log:         p.Log,
	})
}

// NewIngestAgent returns an agent that summarizes the results of each build
// update published on b.
func (p *Pipeline) NewIngestAgent(b broker.Broker) *ingest.Agent {
	return ingest.NewAgent(b, p.Fetcher, p.Log)
}
