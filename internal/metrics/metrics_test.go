package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestObserveScrapeIncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.ObserveScrape("alpine-ridge", "static_html", "success", 0.42)
	c.ObserveScrape("alpine-ridge", "static_html", "success", 0.51)
	c.ObserveScrape("alpine-ridge", "static_html", "failure", 1.0)

	metric := &dto.Metric{}
	m, err := c.ScrapesTotal.GetMetricWithLabelValues("alpine-ridge", "static_html", "success")
	if err != nil {
		t.Fatalf("GetMetricWithLabelValues() error = %v", err)
	}
	if err := m.Write(metric); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if metric.Counter.GetValue() != 2 {
		t.Errorf("success counter = %v, want 2", metric.Counter.GetValue())
	}
}

func TestObserveRunRecordsHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.ObserveRun("completed", 12.5)

	metric := &dto.Metric{}
	if err := c.RunDuration.Write(metric); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if metric.Histogram.GetSampleCount() != 1 {
		t.Errorf("sample count = %d, want 1", metric.Histogram.GetSampleCount())
	}
}
