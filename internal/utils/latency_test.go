package utils

import (
	"testing"
	"time"
)

func TestEndpointLatenciesSeparateEndpoints(t *testing.T) {
	lat := NewEndpointLatencies(100)
	for i := 1; i <= 20; i++ {
		lat.Observe("scoring", time.Duration(i)*time.Millisecond)
	}
	lat.Observe("prediction", 300*time.Millisecond)

	if got := lat.Percentile("scoring", 95); got != 19*time.Millisecond {
		t.Fatalf("expected scoring p95 19ms, got %v", got)
	}
	if got := lat.Percentile("prediction", 95); got != 300*time.Millisecond {
		t.Fatalf("expected prediction p95 300ms, got %v", got)
	}
	if got := lat.Percentile("diagnostics", 95); got != 0 {
		t.Fatalf("expected zero for unobserved endpoint, got %v", got)
	}
}

func TestEndpointLatenciesWindowDropsOldest(t *testing.T) {
	lat := NewEndpointLatencies(3)
	var n int
	for _, ms := range []int{500, 400, 1, 2, 3} {
		n = lat.Observe("summarystats", time.Duration(ms)*time.Millisecond)
	}
	if n != 5 {
		t.Fatalf("expected 5 observed requests, got %d", n)
	}
	if got := lat.Percentile("summarystats", 100); got != 3*time.Millisecond {
		t.Fatalf("expected old samples evicted, max is %v", got)
	}
}

func TestEndpointLatenciesSnapshot(t *testing.T) {
	lat := NewEndpointLatencies(10)
	lat.Observe("scoring", 1500*time.Microsecond)
	lat.Observe("diagnostics", 2*time.Second)

	snap := lat.Snapshot(95)
	if len(snap) != 2 {
		t.Fatalf("expected two endpoints, got %v", snap)
	}
	if snap["scoring"] != 1.5 || snap["diagnostics"] != 2000 {
		t.Fatalf("unexpected snapshot %v", snap)
	}
}
