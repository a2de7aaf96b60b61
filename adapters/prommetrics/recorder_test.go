package prommetrics

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestRecorder_CountersAndHistograms(t *testing.T) {
	registry := prometheus.NewRegistry()
	recorder := NewRecorder(registry)
	ctx := context.Background()

	tags := map[string]string{"operation": "process", "status": "done"}
	recorder.IncCounter(ctx, "folio.webhook.process.total", 1, tags)
	recorder.IncCounter(ctx, "folio.webhook.process.total", 2, tags)
	recorder.ObserveHistogram(ctx, "folio.webhook.process.duration_ms", 12, tags)
	// A differing tag set reuses the first label schema.
	recorder.IncCounter(ctx, "folio.webhook.process.total", 1, map[string]string{"operation": "process", "state": "failed"})

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	found := map[string]float64{}
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			switch {
			case metric.GetCounter() != nil:
				found[family.GetName()] += metric.GetCounter().GetValue()
			case metric.GetHistogram() != nil:
				found[family.GetName()] += float64(metric.GetHistogram().GetSampleCount())
			}
		}
	}
	if found["folio_webhook_process_total"] != 4 {
		t.Fatalf("expected counter total 4, got %v", found["folio_webhook_process_total"])
	}
	if found["folio_webhook_process_duration_ms"] != 1 {
		t.Fatalf("expected one histogram sample, got %v", found["folio_webhook_process_duration_ms"])
	}
}

func TestRecorder_ReusesAlreadyRegisteredCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()
	first := NewRecorder(registry)
	second := NewRecorder(registry)
	tags := map[string]string{"operation": "submit"}

	first.IncCounter(context.Background(), "folio.xubio.submit.total", 1, tags)
	second.IncCounter(context.Background(), "folio.xubio.submit.total", 1, tags)

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(families) != 1 || families[0].GetMetric()[0].GetCounter().GetValue() != 2 {
		t.Fatalf("expected shared collector, got %#v", families)
	}
}

func TestMetricName(t *testing.T) {
	cases := map[string]string{
		"folio.webhook.process.total": "folio_webhook_process_total",
		" Folio-Xubio ":               "folio_xubio",
		"2xx":                         "_2xx",
		"":                            "",
	}
	for input, want := range cases {
		if got := MetricName(input); got != want {
			t.Fatalf("MetricName(%q) = %q, want %q", input, got, want)
		}
	}
}
