package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestTransformMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewTransformMetrics(reg)
	metrics.IncOutcome("produced", "Success")
	metrics.IncOutcome("produced", "Success")
	metrics.IncOutcome("no_match", "Failure")
	metrics.ObserveDuration("produced", 250*time.Millisecond)
	metrics.IncPublishFailure("Failure")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "getsum_messages_total", "outcome", "produced"); err != nil {
		t.Fatalf("fetch produced: %v", err)
	} else if got != 2 {
		t.Fatalf("expected produced=2, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "getsum_messages_total", "outcome", "no_match"); err != nil {
		t.Fatalf("fetch no match: %v", err)
	} else if got != 1 {
		t.Fatalf("expected no_match=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "getsum_publish_failures_total", "relation", "Failure"); err != nil {
		t.Fatalf("fetch publish failures: %v", err)
	} else if got != 1 {
		t.Fatalf("expected publish failures=1, got %f", got)
	}

	if got, err := fetchHistogramSum(mfs, "getsum_message_duration_seconds", "outcome", "produced"); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", got)
	}
}

func TestTransformMetricsNilSafe(t *testing.T) {
	var nilMetrics *TransformMetrics
	nilMetrics.IncOutcome("produced", "Success")
	nilMetrics.ObserveDuration("produced", time.Second)
	nilMetrics.IncPublishFailure("Success")

	unregistered := NewTransformMetrics(nil)
	unregistered.IncOutcome("", "")
}

func TestNormalizeLabel(t *testing.T) {
	if got := normalizeLabel(""); got != "unknown" {
		t.Fatalf("expected unknown, got %q", got)
	}
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
