package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/viper"

	"github.com/Veraticus/spice-inbox/internal/common"
	"github.com/Veraticus/spice-inbox/internal/connectivity"
	"github.com/Veraticus/spice-inbox/internal/dedup"
	"github.com/Veraticus/spice-inbox/internal/ingest"
	"github.com/Veraticus/spice-inbox/internal/queue"
)

// Pipeline defaults that are not owned by a component package.
const (
	DefaultDatabasePath = "$HOME/.local/share/spice/spice.db"
	DefaultInboxDir     = "$HOME/.local/share/spice/inbox"
)

// Pipeline is the validated runtime configuration of the ingestion pipeline.
type Pipeline struct {
	DatabasePath  string
	InboxDir      string
	TablesPath    string
	MetricsAddr   string
	ProbeURL      string
	MaxRetries    int
	DedupSoftCap  int
	ProbeInterval time.Duration
	ProbeTimeout  time.Duration
	IngestBudget  time.Duration
	DedupTTL      time.Duration
}

// DefaultPipeline returns the configuration used when nothing is set.
func DefaultPipeline() Pipeline {
	return Pipeline{
		DatabasePath:  DefaultDatabasePath,
		InboxDir:      DefaultInboxDir,
		ProbeURL:      connectivity.DefaultProbeURL,
		MaxRetries:    queue.DefaultMaxRetries,
		DedupSoftCap:  dedup.DefaultSoftCap,
		ProbeInterval: connectivity.DefaultProbeInterval,
		ProbeTimeout:  connectivity.DefaultProbeTimeout,
		IngestBudget:  ingest.DefaultBudget,
		DedupTTL:      dedup.DefaultTTL,
	}
}

// LoadPipelineConfig reads the pipeline keys from Viper (config file or
// SPICE_ env vars) over the defaults, expands paths and validates the result.
func LoadPipelineConfig() (*Pipeline, error) {
	return pipelineFrom(viper.GetViper())
}

func pipelineFrom(v *viper.Viper) (*Pipeline, error) {
	p := DefaultPipeline()

	if s := v.GetString("database.path"); s != "" {
		p.DatabasePath = s
	}
	if s := v.GetString("inbox.dir"); s != "" {
		p.InboxDir = s
	}
	if s := v.GetString("sync.probe_url"); s != "" {
		p.ProbeURL = s
	}
	p.MetricsAddr = v.GetString("metrics.addr")
	p.TablesPath = ExpandPath(v.GetString("categorize.tables"))

	if v.IsSet("sync.max_retries") {
		p.MaxRetries = v.GetInt("sync.max_retries")
	}
	if v.IsSet("dedup.soft_cap") {
		p.DedupSoftCap = v.GetInt("dedup.soft_cap")
	}
	if v.IsSet("sync.probe_interval") {
		p.ProbeInterval = v.GetDuration("sync.probe_interval")
	}
	if v.IsSet("sync.probe_timeout") {
		p.ProbeTimeout = v.GetDuration("sync.probe_timeout")
	}
	if v.IsSet("ingest.budget") {
		p.IngestBudget = v.GetDuration("ingest.budget")
	}
	if v.IsSet("dedup.ttl") {
		p.DedupTTL = v.GetDuration("dedup.ttl")
	}

	p.DatabasePath = ExpandPath(p.DatabasePath)
	p.InboxDir = ExpandPath(p.InboxDir)

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks the configuration for values the pipeline cannot run with.
func (p *Pipeline) Validate() error {
	if p.DatabasePath == "" {
		return fmt.Errorf("%w: database.path is required", common.ErrMissingConfig)
	}
	if p.MaxRetries < 1 {
		return fmt.Errorf("%w: sync.max_retries must be at least 1", common.ErrInvalidConfig)
	}
	if p.DedupSoftCap < 1 {
		return fmt.Errorf("%w: dedup.soft_cap must be positive", common.ErrInvalidConfig)
	}

	durations := []struct {
		key   string
		value time.Duration
	}{
		{"sync.probe_interval", p.ProbeInterval},
		{"sync.probe_timeout", p.ProbeTimeout},
		{"ingest.budget", p.IngestBudget},
		{"dedup.ttl", p.DedupTTL},
	}
	for _, d := range durations {
		if d.value <= 0 {
			return fmt.Errorf("%w: %s must be positive", common.ErrInvalidConfig, d.key)
		}
	}
	if p.ProbeTimeout >= p.ProbeInterval {
		return fmt.Errorf("%w: sync.probe_timeout must be shorter than sync.probe_interval", common.ErrInvalidConfig)
	}

	u, err := url.Parse(p.ProbeURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: sync.probe_url %q is not an http(s) URL", common.ErrInvalidConfig, p.ProbeURL)
	}
	return nil
}
