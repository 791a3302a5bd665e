package reachability

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brojonat/ledgersync/service/metrics"
)

// Signal reports whether the remote API looks reachable right now. It is a
// hint; callers must still handle network failures.
type Signal interface {
	Online() bool
}

// Flag is a Signal set by the host, e.g. from an OS network callback.
type Flag struct {
	online atomic.Bool
}

// NewFlag creates a flag with the given initial state.
func NewFlag(online bool) *Flag {
	f := &Flag{}
	f.online.Store(online)
	return f
}

func (f *Flag) Online() bool { return f.online.Load() }

// Set updates the flag.
func (f *Flag) Set(online bool) { f.online.Store(online) }

// Prober is a Signal that periodically GETs a health URL. Any 2xx response
// counts as online.
type Prober struct {
	url        string
	interval   time.Duration
	httpClient *http.Client
	metrics    *metrics.Metrics
	logger     *slog.Logger

	online atomic.Bool

	mu       sync.Mutex
	onOnline []func(ctx context.Context)
}

// NewProber creates a prober that starts out online so the first write tries
// the network. If metrics is nil, no metrics will be recorded.
func NewProber(url string, interval time.Duration, httpClient *http.Client, m *metrics.Metrics, logger *slog.Logger) *Prober {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	p := &Prober{
		url:        url,
		interval:   interval,
		httpClient: httpClient,
		metrics:    m,
		logger:     logger.With("component", "reachability", "url", url),
	}
	p.online.Store(true)
	return p
}

func (p *Prober) Online() bool { return p.online.Load() }

// OnOnline registers fn to run after every offline to online transition.
// Hosts use it to trigger a sync sweep.
func (p *Prober) OnOnline(fn func(ctx context.Context)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onOnline = append(p.onOnline, fn)
}

// Run probes immediately and then every interval until ctx is done.
func (p *Prober) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.Check(ctx)
		}
	}
}

// Check runs one probe, updates the signal, and returns the new state.
func (p *Prober) Check(ctx context.Context) bool {
	err := p.probe(ctx)
	online := err == nil
	was := p.online.Swap(online)
	changed := was != online

	if p.metrics != nil {
		p.metrics.RecordReachability(online, changed)
	}
	if !changed {
		return online
	}

	if online {
		p.logger.InfoContext(ctx, "remote API reachable again")
		p.mu.Lock()
		hooks := make([]func(ctx context.Context), len(p.onOnline))
		copy(hooks, p.onOnline)
		p.mu.Unlock()
		for _, fn := range hooks {
			fn(ctx)
		}
	} else {
		p.logger.WarnContext(ctx, "remote API unreachable", "error", err)
	}
	return online
}

func (p *Prober) probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("probe failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("probe returned status %d", resp.StatusCode)
	}
	return nil
}
