package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/seantiz/faultline/internal/model"
	"github.com/seantiz/faultline/internal/scenario"
)

func getActVerdict(t *testing.T, ts *httptest.Server, runID, act string) (int, actVerdictResponse) {
	t.Helper()
	resp, err := http.Get(ts.URL + "/v1/runs/" + runID + "/acts/" + act)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	var body actVerdictResponse
	if resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
	}
	return resp.StatusCode, body
}

func TestListActs(t *testing.T) {
	srv := newTestServer(t)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	run := submit(t, ts, "chaos_unhandled", unhandledDoc)
	waitForTerminal(t, srv, run.ID)

	resp, err := http.Get(ts.URL + "/v1/runs/" + run.ID + "/acts")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	var body actsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != model.StatusFailed || body.Verdict != model.VerdictFailure {
		t.Errorf("run = %s/%s, want failed/failure", body.Status, body.Verdict)
	}
	if len(body.Acts) != 2 {
		t.Fatalf("len(acts) = %d, want 2", len(body.Acts))
	}
	if body.Acts[0].Verdict != model.VerdictFailure {
		t.Errorf("act-0 = %q, want failure", body.Acts[0].Verdict)
	}
	if body.Acts[1].Verdict != model.VerdictUndefined {
		t.Errorf("act-1 = %q, want undefined", body.Acts[1].Verdict)
	}
}

func TestGetActVerdict(t *testing.T) {
	srv := newTestServer(t)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	run := submit(t, ts, "chaos_unhandled", unhandledDoc)
	waitForTerminal(t, srv, run.ID)

	tests := []struct {
		act     string
		verdict model.Verdict
		message string
	}{
		{"act-0", model.VerdictFailure, scenario.MessageNotCompleted},
		{"act-1", model.VerdictUndefined, scenario.MessageNotReached},
	}
	for _, tt := range tests {
		t.Run(tt.act, func(t *testing.T) {
			status, body := getActVerdict(t, ts, run.ID, tt.act)
			if status != http.StatusOK {
				t.Fatalf("status = %d, want 200", status)
			}
			if body.Verdict != tt.verdict {
				t.Errorf("verdict = %q, want %q", body.Verdict, tt.verdict)
			}
			if body.Message != tt.message {
				t.Errorf("message = %q, want %q", body.Message, tt.message)
			}
			if !body.Final {
				t.Error("final = false for a finished run")
			}
		})
	}
}

func TestGetActVerdictUnknownAct(t *testing.T) {
	srv := newTestServer(t)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	run := submit(t, ts, "chaos_tolerated", toleratedDoc)
	waitForTerminal(t, srv, run.ID)

	for _, act := range []string{"act-2", "act-x", "0"} {
		if status, _ := getActVerdict(t, ts, run.ID, act); status != http.StatusNotFound {
			t.Errorf("%s: status = %d, want 404", act, status)
		}
	}
	if status, _ := getActVerdict(t, ts, "nonexistent", "act-0"); status != http.StatusNotFound {
		t.Errorf("unknown run: status = %d, want 404", status)
	}
}

func TestGetActVerdictRejectedRun(t *testing.T) {
	srv := newTestServer(t)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	// A missing next-point is rejected at construction, after the run exists.
	body := `{"name":"chaos_bad","document":"entry-point = \"demoapp.factory\"\n[[act]]\n"}`
	resp, err := http.Post(ts.URL+"/v1/runs", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	var rejected submitErrorResponse
	json.NewDecoder(resp.Body).Decode(&rejected)
	resp.Body.Close()
	if rejected.RunID == "" {
		t.Fatal("rejected run id missing")
	}

	status, got := getActVerdict(t, ts, rejected.RunID, "act-0")
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	if got.Verdict != model.VerdictFailure || !got.Final {
		t.Errorf("verdict = %q final=%v, want failure final=true", got.Verdict, got.Final)
	}
}
