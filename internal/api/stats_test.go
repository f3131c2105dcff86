package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/seantiz/faultline/internal/model"
)

func TestGetStatsEmpty(t *testing.T) {
	srv := newTestServer(t)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/stats")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	var stats statsResponse
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if stats.Total != 0 {
		t.Errorf("total = %d, want 0", stats.Total)
	}
	if stats.AvgDurationMS != 0 {
		t.Errorf("avg_duration_ms = %f, want 0", stats.AvgDurationMS)
	}
}

func newRun(name string) *model.Run {
	return &model.Run{
		ID: model.NewID(), Name: name, EntryPoint: "demoapp.factory",
		Status: model.StatusPending, Verdict: model.VerdictUndefined,
		Format: model.FormatTOML, ActCount: 1, CreatedAt: time.Now().UTC(),
	}
}

func TestGetStatsPopulated(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	// Three completed runs with one successful act each.
	for range 3 {
		r := newRun("chaos_ok")
		if err := srv.store.CreateRun(ctx, r); err != nil {
			t.Fatalf("CreateRun: %v", err)
		}
		if err := srv.store.UpdateRunStatus(ctx, r.ID, model.StatusRunning); err != nil {
			t.Fatalf("pending→running: %v", err)
		}
		dur := 100
		r.Status = model.StatusCompleted
		r.Verdict = model.VerdictCompleted
		r.DurationMS = &dur
		r.StartedAt = ptrTime(time.Now())
		r.FinishedAt = ptrTime(time.Now())
		if err := srv.store.UpdateRun(ctx, r); err != nil {
			t.Fatalf("UpdateRun: %v", err)
		}
		acts := []model.ActResult{{RunID: r.ID, Name: "act-0", Verdict: model.VerdictSuccess}}
		if err := srv.store.SaveActResults(ctx, r.ID, acts); err != nil {
			t.Fatalf("SaveActResults: %v", err)
		}
	}

	// One run rejected before it started.
	fr := newRun("chaos_bad")
	if err := srv.store.CreateRun(ctx, fr); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	if err := srv.store.UpdateRunStatus(ctx, fr.ID, model.StatusFailed); err != nil {
		t.Fatalf("pending→failed: %v", err)
	}

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/stats")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var stats statsResponse
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if stats.Total != 4 {
		t.Errorf("total = %d, want 4", stats.Total)
	}
	if stats.ByStatus["completed"] != 3 {
		t.Errorf("by_status[completed] = %d, want 3", stats.ByStatus["completed"])
	}
	if stats.ByStatus["failed"] != 1 {
		t.Errorf("by_status[failed] = %d, want 1", stats.ByStatus["failed"])
	}
	if stats.ByVerdict["completed"] != 3 {
		t.Errorf("by_verdict[completed] = %d, want 3", stats.ByVerdict["completed"])
	}
	if stats.ActsByVerdict["success"] != 3 {
		t.Errorf("acts_by_verdict[success] = %d, want 3", stats.ActsByVerdict["success"])
	}
	if stats.AvgDurationMS != 100 {
		t.Errorf("avg_duration_ms = %f, want 100", stats.AvgDurationMS)
	}
}

func ptrTime(t time.Time) *time.Time { return &t }
