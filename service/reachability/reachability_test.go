package reachability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/brojonat/ledgersync/service/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
)

func TestFlag(t *testing.T) {
	f := NewFlag(false)
	assert.False(t, f.Online())
	f.Set(true)
	assert.True(t, f.Online())

	var s Signal = f
	assert.True(t, s.Online())
}

func TestProber_Transitions(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if healthy.Load() {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	p := NewProber(server.URL, time.Hour, nil, metrics.NewMetrics(prometheus.NewRegistry()), nil)
	var backOnline int
	p.OnOnline(func(ctx context.Context) { backOnline++ })

	assert.True(t, p.Online())
	assert.True(t, p.Check(context.Background()))
	assert.Zero(t, backOnline)

	healthy.Store(false)
	assert.False(t, p.Check(context.Background()))
	assert.False(t, p.Online())

	healthy.Store(true)
	assert.True(t, p.Check(context.Background()))
	assert.Equal(t, 1, backOnline)
}

func TestProber_UnreachableHost(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	p := NewProber(url, time.Hour, &http.Client{Timeout: time.Second}, nil, nil)
	assert.False(t, p.Check(context.Background()))
	assert.False(t, p.Online())
}

func TestProber_RunStopsOnCancel(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer server.Close()

	p := NewProber(server.URL, 10*time.Millisecond, nil, nil, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := p.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.GreaterOrEqual(t, hits.Load(), int32(2))
}
