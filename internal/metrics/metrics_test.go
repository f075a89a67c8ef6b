// Copyright (c) 2025 ToeiRei
// UfO - SSH proxy access management
// This source code is licensed under the MIT license found in the LICENSE file.

package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollector_Counters(t *testing.T) {
	c := NewCollector()
	c.ObserveDistribution(ResultOK, time.Second)
	c.ObserveDistribution(ResultOK, time.Second)
	c.ObserveDistribution(ResultConnectError, time.Millisecond)
	c.ObserveSyncAction("absent", "delete")
	c.ObserveSyncCycle("ok")

	if got := testutil.ToFloat64(c.distributions.WithLabelValues(ResultOK)); got != 2 {
		t.Errorf("ok distributions = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.distributions.WithLabelValues(ResultConnectError)); got != 1 {
		t.Errorf("connect_error distributions = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.syncActions.WithLabelValues("absent", "delete")); got != 1 {
		t.Errorf("sync actions = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.syncCycles.WithLabelValues("ok")); got != 1 {
		t.Errorf("sync cycles = %v, want 1", got)
	}
}

func TestCollector_NilIsNoop(t *testing.T) {
	var c *Collector
	c.ObserveDistribution(ResultOK, time.Second)
	c.ObserveSyncAction("suspended", "revoke")
	c.ObserveSyncCycle("aborted")
}

func TestHandler_ServesMetrics(t *testing.T) {
	c := NewCollector()
	c.ObserveDistribution(ResultRemoteError, time.Second)

	h, err := Handler(c)
	if err != nil {
		t.Fatalf("Handler: %v", err)
	}
	srv := httptest.NewServer(h)
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `ufo_distribution_total{result="remote_error"} 1`) {
		t.Fatalf("metric missing from output:\n%s", body)
	}
}
