package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	io_prometheus_client "github.com/prometheus/client_model/go"

	"github.com/hazz-dev/urlcanary/internal/probe"
)

func gather(t *testing.T, b *Bundle) map[string]*io_prometheus_client.MetricFamily {
	t.Helper()
	families, err := b.Registry.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	out := make(map[string]*io_prometheus_client.MetricFamily, len(families))
	for _, f := range families {
		out[f.GetName()] = f
	}
	return out
}

func labels(m *io_prometheus_client.Metric) map[string]string {
	out := make(map[string]string)
	for _, l := range m.GetLabel() {
		out[l.GetName()] = l.GetValue()
	}
	return out
}

func TestNewBundle(t *testing.T) {
	bundle := NewBundle()
	if bundle.Registry == nil {
		t.Error("Registry is nil")
	}
	if bundle.Collector == nil {
		t.Error("Collector is nil")
	}
}

func TestCollector_BuildInfo(t *testing.T) {
	families := gather(t, NewBundle())

	f, ok := families["urlcanary_build_info"]
	if !ok {
		t.Fatal("urlcanary_build_info metric not found")
	}
	for _, m := range f.GetMetric() {
		if m.GetGauge().GetValue() != 1 {
			t.Errorf("build_info value = %v, want 1", m.GetGauge().GetValue())
		}
		l := labels(m)
		for _, name := range []string{"version", "go_version", "os", "arch"} {
			if l[name] == "" {
				t.Errorf("%s label missing", name)
			}
		}
	}
}

func TestCollector_Observe_Success(t *testing.T) {
	bundle := NewBundle()
	bundle.Collector.Observe("check", probe.Classify(200), 120*time.Millisecond)

	families := gather(t, bundle)

	if v := families["urlcanary_up"].GetMetric()[0].GetGauge().GetValue(); v != 1 {
		t.Errorf("urlcanary_up = %v, want 1", v)
	}
	if v := families["urlcanary_last_status_code"].GetMetric()[0].GetGauge().GetValue(); v != 200 {
		t.Errorf("urlcanary_last_status_code = %v, want 200", v)
	}
	if v := families["urlcanary_last_success_timestamp"].GetMetric()[0].GetGauge().GetValue(); v <= 0 {
		t.Errorf("last_success_timestamp = %v, want > 0", v)
	}

	total := families["urlcanary_probe_total"].GetMetric()
	if len(total) != 1 {
		t.Fatalf("expected 1 probe_total series, got %d", len(total))
	}
	l := labels(total[0])
	if l[LabelStep] != "check" || l[LabelResult] != ResultSuccess || l[LabelOutcome] != "success" {
		t.Errorf("unexpected labels %v", l)
	}
	if total[0].GetCounter().GetValue() != 1 {
		t.Errorf("probe_total = %v, want 1", total[0].GetCounter().GetValue())
	}
}

func TestCollector_Observe_Failure(t *testing.T) {
	bundle := NewBundle()
	bundle.Collector.Observe("check", probe.Outcome{Kind: probe.KindTimeout, Message: "Request timeout"}, 10*time.Second)

	families := gather(t, bundle)

	if v := families["urlcanary_up"].GetMetric()[0].GetGauge().GetValue(); v != 0 {
		t.Errorf("urlcanary_up = %v, want 0", v)
	}
	if v := families["urlcanary_last_status_code"].GetMetric()[0].GetGauge().GetValue(); v != 0 {
		t.Errorf("urlcanary_last_status_code = %v, want 0", v)
	}
	if _, ok := families["urlcanary_last_success_timestamp"]; ok {
		t.Error("last_success_timestamp should not be set without a success")
	}

	l := labels(families["urlcanary_probe_total"].GetMetric()[0])
	if l[LabelResult] != ResultFailure || l[LabelOutcome] != "timeout" {
		t.Errorf("unexpected labels %v", l)
	}
}

func TestCollector_Observe_LatencyHistogram(t *testing.T) {
	bundle := NewBundle()
	for _, latency := range []time.Duration{
		10 * time.Millisecond,
		50 * time.Millisecond,
		100 * time.Millisecond,
		500 * time.Millisecond,
	} {
		bundle.Collector.Observe("check", probe.Classify(200), latency)
	}

	h := gather(t, bundle)["urlcanary_probe_duration_seconds"].GetMetric()[0].GetHistogram()
	if h.GetSampleCount() != 4 {
		t.Errorf("histogram count = %d, want 4", h.GetSampleCount())
	}
}

func TestCollector_Observe_CountsByOutcome(t *testing.T) {
	bundle := NewBundle()
	bundle.Collector.Observe("check", probe.Classify(200), time.Millisecond)
	bundle.Collector.Observe("check", probe.Classify(503), time.Millisecond)
	bundle.Collector.Observe("check", probe.Classify(502), time.Millisecond)

	counts := make(map[string]float64)
	for _, m := range gather(t, bundle)["urlcanary_probe_total"].GetMetric() {
		counts[labels(m)[LabelOutcome]] = m.GetCounter().GetValue()
	}
	if counts["success"] != 1 || counts["server_error"] != 2 {
		t.Errorf("unexpected counts %v", counts)
	}
}

func TestBundle_Handler(t *testing.T) {
	bundle := NewBundle()
	bundle.Collector.Observe("check", probe.Classify(404), time.Millisecond)

	w := httptest.NewRecorder()
	bundle.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `urlcanary_probe_total{outcome="client_error",result="failure",step="check"} 1`) {
		t.Errorf("expected probe_total series in output, got:\n%s", w.Body.String())
	}
}

func TestLabelConstants(t *testing.T) {
	if LabelStep != "step" {
		t.Errorf("LabelStep = %q, want %q", LabelStep, "step")
	}
	if ResultSuccess != "success" {
		t.Errorf("ResultSuccess = %q, want %q", ResultSuccess, "success")
	}
	if ResultFailure != "failure" {
		t.Errorf("ResultFailure = %q, want %q", ResultFailure, "failure")
	}
}
