package observability

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestMetricsWritePrometheus(t *testing.T) {
	m := NewMetrics()
	m.ObserveAPI("GET", "/v1/embeddings/:id", "200", 30*time.Millisecond)
	m.ObserveAPI("GET", "/v1/embeddings/:id", "200", 40*time.Millisecond)
	m.ObserveTraining("node2vec", 2*time.Second, 42, 0.75, nil)
	m.ObserveTraining("risk_gnn", time.Second, 0, 0, errors.New("boom"))

	var buf bytes.Buffer
	if err := m.WritePrometheus(&buf); err != nil {
		t.Fatalf("write: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		`rg_api_requests_total{method="GET",route="/v1/embeddings/:id",status="200"} 2.000000`,
		`rg_api_request_duration_seconds_bucket{method="GET",route="/v1/embeddings/:id",status="200",le="0.05"} 2`,
		`rg_training_runs_total{model="node2vec",status="ok"} 1.000000`,
		`rg_training_runs_total{model="risk_gnn",status="error"} 1.000000`,
		`rg_training_final_loss{model="node2vec"} 0.750000`,
		`rg_model_nodes{model="node2vec"} 42.000000`,
		"# TYPE rg_api_inflight_requests gauge",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
	if strings.Contains(out, `rg_training_final_loss{model="risk_gnn"}`) {
		t.Fatalf("failed run should not set final loss")
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveAPI("GET", "/", "200", time.Millisecond)
	m.APIInflightInc()
	m.APIInflightDec()
	m.ObserveTraining("node2vec", time.Second, 1, 1, nil)

	rec := httptest.NewRecorder()
	m.WriteHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", rec.Code)
	}
}

func TestLabelEscaping(t *testing.T) {
	got := labelString([]string{"a", "b"}, []string{`x"y`})
	if got != `{a="x\"y",b="unknown"}` {
		t.Fatalf("labelString=%s", got)
	}
	if got := withLe("", "+Inf"); got != `{le="+Inf"}` {
		t.Fatalf("withLe=%s", got)
	}
}
