package http

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"
)

func TestMetricsServer(t *testing.T) {
	s := NewMetricsServer(func(w io.Writer) {
		_, _ = io.WriteString(w, "planet_test_total 42\n")
	}, true)
	if err := s.Start("127.0.0.1:0"); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer s.Close(time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	body, err := FetchMetrics(ctx, s.Addr().String())
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if !strings.Contains(string(body), "planet_test_total 42") {
		t.Errorf("unexpected metrics page %q", body)
	}

	if _, err := FetchMetrics(ctx, "http://"+s.Addr().String()+"/missing"); err == nil {
		t.Error("expected an error for a missing page")
	}
}

func TestMetricsURL(t *testing.T) {
	tests := map[string]string{
		"localhost:9100":           "http://localhost:9100/metrics",
		"http://localhost:9100":    "http://localhost:9100/metrics",
		"https://node:9100/custom": "https://node:9100/custom",
		"http://localhost:9100/":   "http://localhost:9100/metrics",
	}
	for in, want := range tests {
		got, err := metricsURL(in)
		if err != nil || got != want {
			t.Errorf("%s: expected %s, got %s (%v)", in, want, got, err)
		}
	}
}
