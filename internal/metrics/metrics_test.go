package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilRecorder(t *testing.T) {
	var r *Recorder

	r.ObserveAgent("/review", true, time.Second, 0.1)
	r.ObserveStage("adw_review", false, time.Second)
	r.IncAttempt("review")
	r.AddResolutions("review", 1, 0)
	r.IncFinding("blocker")

	if err := r.WriteTextfile(filepath.Join(t.TempDir(), "m.prom")); err != nil {
		t.Errorf("WriteTextfile() on nil recorder = %v", err)
	}
	if r.Registry() != nil {
		t.Error("Registry() on nil recorder should be nil")
	}
}

func TestRecorderCounts(t *testing.T) {
	r := New()

	r.ObserveAgent("/review", true, 2*time.Second, 0.25)
	r.ObserveAgent("/review", false, time.Second, 0)
	r.IncAttempt("review")
	r.IncAttempt("review")
	r.AddResolutions("review", 2, 1)
	r.IncFinding("blocker")

	if got := testutil.ToFloat64(r.agentCalls.WithLabelValues("/review", "success")); got != 1 {
		t.Errorf("success invocations = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.agentCalls.WithLabelValues("/review", "failure")); got != 1 {
		t.Errorf("failed invocations = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.agentCost.WithLabelValues("/review")); got != 0.25 {
		t.Errorf("cost = %v, want 0.25", got)
	}
	if got := testutil.ToFloat64(r.retryAttempts.WithLabelValues("review")); got != 2 {
		t.Errorf("attempts = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.resolutions.WithLabelValues("review", "failed")); got != 1 {
		t.Errorf("failed resolutions = %v, want 1", got)
	}
}

func TestWriteTextfile(t *testing.T) {
	r := New()
	r.ObserveStage("adw_plan", true, 3*time.Second)

	path := filepath.Join(t.TempDir(), "abc12345", "adw_plan", "metrics.prom")
	if err := r.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), `adw_stage_runs_total{result="success",stage="adw_plan"} 1`) {
		t.Errorf("textfile missing stage counter:\n%s", data)
	}
}
