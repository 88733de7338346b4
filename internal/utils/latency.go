package utils

import (
	"math"
	"slices"
	"sync"
	"time"
)

// EndpointLatencies keeps a bounded window of recent request durations per
// reporting endpoint.
type EndpointLatencies struct {
	mu      sync.Mutex
	window  int
	windows map[string]*ring
}

type ring struct {
	buf   []time.Duration
	next  int
	full  bool
	total int
}

func (r *ring) add(d time.Duration) {
	r.buf[r.next] = d
	r.total++
	r.next = (r.next + 1) % len(r.buf)
	if r.next == 0 {
		r.full = true
	}
}

func (r *ring) values() []time.Duration {
	if r.full {
		return slices.Clone(r.buf)
	}
	return slices.Clone(r.buf[:r.next])
}

// NewEndpointLatencies keeps the last window samples of each endpoint.
func NewEndpointLatencies(window int) *EndpointLatencies {
	if window <= 0 {
		window = 256
	}
	return &EndpointLatencies{window: window, windows: make(map[string]*ring)}
}

// Observe records one request duration and returns how many requests the
// endpoint has seen in total.
func (e *EndpointLatencies) Observe(endpoint string, d time.Duration) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	r, ok := e.windows[endpoint]
	if !ok {
		r = &ring{buf: make([]time.Duration, e.window)}
		e.windows[endpoint] = r
	}
	r.add(d)
	return r.total
}

// Percentile returns the nearest-rank percentile (0-100) of an endpoint's
// window, or zero when the endpoint has not been observed.
func (e *EndpointLatencies) Percentile(endpoint string, p float64) time.Duration {
	e.mu.Lock()
	r, ok := e.windows[endpoint]
	var samples []time.Duration
	if ok {
		samples = r.values()
	}
	e.mu.Unlock()
	return nearestRank(samples, p)
}

// Snapshot returns the percentile of every observed endpoint in milliseconds.
func (e *EndpointLatencies) Snapshot(p float64) map[string]float64 {
	e.mu.Lock()
	windows := make(map[string][]time.Duration, len(e.windows))
	for name, r := range e.windows {
		windows[name] = r.values()
	}
	e.mu.Unlock()

	out := make(map[string]float64, len(windows))
	for name, samples := range windows {
		out[name] = float64(nearestRank(samples, p)) / float64(time.Millisecond)
	}
	return out
}

func nearestRank(samples []time.Duration, p float64) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	slices.Sort(samples)
	rank := int(math.Ceil(p / 100 * float64(len(samples))))
	rank = min(max(rank, 1), len(samples))
	return samples[rank-1]
}
