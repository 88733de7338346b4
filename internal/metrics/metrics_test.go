package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterIsIdempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := Register(reg); err != nil {
		t.Fatalf("second register: %v", err)
	}
}

func TestObserveRunNormalisesOutcome(t *testing.T) {
	before := testutil.ToFloat64(runsTotal.WithLabelValues(OutcomeError))
	ObserveRun(time.Second, "exploded")
	after := testutil.ToFloat64(runsTotal.WithLabelValues(OutcomeError))
	if after != before+1 {
		t.Fatalf("expected unknown outcome to count as error, before=%v after=%v", before, after)
	}
}

func TestSetScores(t *testing.T) {
	SetScores(0.7, 0.6)
	if v := testutil.ToFloat64(scoreGauge.WithLabelValues("current")); v != 0.6 {
		t.Fatalf("unexpected current score %v", v)
	}
}

func TestIncDeployments(t *testing.T) {
	before := testutil.ToFloat64(deploymentsTotal)
	IncDeployments()
	if after := testutil.ToFloat64(deploymentsTotal); after != before+1 {
		t.Fatalf("expected deployment counted, before=%v after=%v", before, after)
	}
}

func TestPush(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("register: %v", err)
	}
	IncDrift()
	if err := Push(context.Background(), srv.URL, "mirador_drift", reg); err != nil {
		t.Fatalf("push: %v", err)
	}
	if hits == 0 {
		t.Fatalf("expected pushgateway request")
	}
	if err := Push(context.Background(), "", "job", reg); err != nil {
		t.Fatalf("empty url should be a no-op: %v", err)
	}
}
