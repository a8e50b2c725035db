package prometheus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/MrEthical07/authcore"
)

type fakeSource struct {
	snapshot authcore.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() authcore.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                      { return f.dropped }

func TestCollectNothingWhenMetricsDisabled(t *testing.T) {
	exp := NewExporterFromSource(fakeSource{
		snapshot: authcore.MetricsSnapshot{
			Counters:   map[authcore.MetricID]uint64{},
			Histograms: map[authcore.MetricID][]uint64{},
		},
	})

	if n := testutil.CollectAndCount(exp); n != 0 {
		t.Fatalf("expected no series for disabled metrics, got %d", n)
	}
}

func TestCollectCountersAndHistogram(t *testing.T) {
	exp := NewExporterFromSource(fakeSource{
		snapshot: authcore.MetricsSnapshot{
			Counters: map[authcore.MetricID]uint64{
				authcore.MetricLoginSuccess: 7,
			},
			Histograms: map[authcore.MetricID][]uint64{
				authcore.MetricVerifyLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped: 2,
	})

	reg := prom.NewRegistry()
	reg.MustRegister(exp)

	expected := `
# HELP authcore_login_success_total Completed gateway logins.
# TYPE authcore_login_success_total counter
authcore_login_success_total 7
# HELP authcore_audit_dropped_total Audit events dropped because the dispatcher buffer was full.
# TYPE authcore_audit_dropped_total counter
authcore_audit_dropped_total 2
# HELP authcore_verify_latency_seconds Token verification latency.
# TYPE authcore_verify_latency_seconds histogram
authcore_verify_latency_seconds_bucket{le="0.0001"} 1
authcore_verify_latency_seconds_bucket{le="0.001"} 3
authcore_verify_latency_seconds_bucket{le="0.005"} 6
authcore_verify_latency_seconds_bucket{le="0.025"} 10
authcore_verify_latency_seconds_bucket{le="0.1"} 15
authcore_verify_latency_seconds_bucket{le="0.25"} 21
authcore_verify_latency_seconds_bucket{le="0.5"} 28
authcore_verify_latency_seconds_bucket{le="+Inf"} 36
authcore_verify_latency_seconds_sum 0
authcore_verify_latency_seconds_count 36
`
	err := testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"authcore_login_success_total",
		"authcore_audit_dropped_total",
		"authcore_verify_latency_seconds",
	)
	if err != nil {
		t.Fatal(err)
	}
}

func TestHandlerServesTextFormat(t *testing.T) {
	exp := NewExporterFromSource(fakeSource{
		snapshot: authcore.MetricsSnapshot{
			Counters:   map[authcore.MetricID]uint64{authcore.MetricAPITokenIssued: 1},
			Histograms: map[authcore.MetricID][]uint64{},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	exp.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); !strings.Contains(got, "text/plain") {
		t.Fatalf("expected prometheus content type, got %q", got)
	}
	if !strings.Contains(rec.Body.String(), "authcore_api_token_issued_total 1") {
		t.Fatalf("counter missing from body:\n%s", rec.Body.String())
	}
}

func TestExporterWithEngine(t *testing.T) {
	cfg := authcore.DefaultConfig()
	cfg.JWT.Secret = []byte("0123456789abcdef0123456789abcdef")
	cfg.Password.Cost = 4
	cfg.Metrics.Enabled = true
	engine, err := authcore.New().WithConfig(cfg).Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer engine.Close()

	if _, err := engine.SignAccess(authcore.Claims{"sub": "u1", "role": "r", "sid": "s"}); err != nil {
		t.Fatalf("sign: %v", err)
	}

	reg := prom.NewRegistry()
	reg.MustRegister(NewExporter(engine))
	expected := `
# HELP authcore_access_signed_total Access tokens signed.
# TYPE authcore_access_signed_total counter
authcore_access_signed_total 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "authcore_access_signed_total"); err != nil {
		t.Fatal(err)
	}
}

func BenchmarkCollect(b *testing.B) {
	exp := NewExporterFromSource(fakeSource{
		snapshot: authcore.MetricsSnapshot{
			Counters: map[authcore.MetricID]uint64{
				authcore.MetricLoginSuccess:    1000,
				authcore.MetricLoginFailure:    40,
				authcore.MetricRefreshRotated:  800,
				authcore.MetricRefreshRejected: 10,
			},
			Histograms: map[authcore.MetricID][]uint64{
				authcore.MetricVerifyLatency: {10, 20, 30, 40, 50, 60, 70, 80},
			},
		},
	})

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = testutil.CollectAndCount(exp)
	}
}
