// Package connectivity tracks whether the remote ledger is reachable.
package connectivity

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/Veraticus/spice-inbox/internal/common"
	"github.com/Veraticus/spice-inbox/internal/events"
	"github.com/Veraticus/spice-inbox/internal/model"
	"github.com/Veraticus/spice-inbox/internal/service"
)

// Defaults for MonitorOptions.
const (
	DefaultProbeURL      = "https://www.google.com/generate_204"
	DefaultProbeInterval = 30 * time.Second
	DefaultProbeTimeout  = 5 * time.Second
)

// HTTPProber checks reachability with a single HEAD request.
type HTTPProber struct {
	client *http.Client
	url    string
}

var _ service.Prober = (*HTTPProber)(nil)

// NewHTTPProber creates a prober for url. A nil client uses http.DefaultClient.
func NewHTTPProber(url string, client *http.Client) *HTTPProber {
	if url == "" {
		url = DefaultProbeURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPProber{client: client, url: url}
}

// Reachable reports whether the probe URL answered with a non-5xx status
// within timeout. Every failure, including a timeout, reports false.
func (p *HTTPProber) Reachable(ctx context.Context, timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.url, nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode < http.StatusInternalServerError
}

// MonitorOptions configures a Monitor.
type MonitorOptions struct {
	Logger   *slog.Logger
	Interval time.Duration
	Timeout  time.Duration
}

// Monitor owns the process-wide ConnectivityState. It probes on demand and on
// a fixed interval, and publishes every transition on its bus.
type Monitor struct {
	prober   service.Prober
	bus      *events.Bus[model.ConnectivityChange]
	logger   *slog.Logger
	state    model.ConnectivityState
	interval time.Duration
	timeout  time.Duration
	mu       sync.RWMutex
}

// NewMonitor creates a monitor in the Unknown state.
func NewMonitor(prober service.Prober, bus *events.Bus[model.ConnectivityChange], opts MonitorOptions) *Monitor {
	if opts.Interval <= 0 {
		opts.Interval = DefaultProbeInterval
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultProbeTimeout
	}
	if bus == nil {
		bus = events.NewBus[model.ConnectivityChange]()
	}
	return &Monitor{
		prober:   prober,
		bus:      bus,
		logger:   common.OrDefault(opts.Logger),
		state:    model.ConnectivityUnknown,
		interval: opts.Interval,
		timeout:  opts.Timeout,
	}
}

// State returns the last observed state.
func (m *Monitor) State() model.ConnectivityState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Online reports whether the last observed state is Online.
func (m *Monitor) Online() bool {
	return m.State() == model.ConnectivityOnline
}

// Bus returns the bus transitions are published on.
func (m *Monitor) Bus() *events.Bus[model.ConnectivityChange] {
	return m.bus
}

// Check probes once, records the result and publishes a change if the state moved.
func (m *Monitor) Check(ctx context.Context) model.ConnectivityState {
	next := model.ConnectivityOffline
	if m.prober.Reachable(ctx, m.timeout) {
		next = model.ConnectivityOnline
	}

	m.mu.Lock()
	prev := m.state
	m.state = next
	m.mu.Unlock()

	if prev != next {
		m.logger.Info("Connectivity changed", "from", prev, "to", next)
		m.bus.Publish(ctx, model.ConnectivityChange{From: prev, To: next})
	}
	return next
}

// Run probes immediately and then every interval until ctx is done.
func (m *Monitor) Run(ctx context.Context) error {
	m.Check(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}
