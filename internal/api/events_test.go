package api

import (
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/seantiz/faultline/internal/engine"
	"github.com/seantiz/faultline/internal/model"
)

func TestStreamEventsFinishedRun(t *testing.T) {
	srv := newTestServer(t)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	run := submit(t, ts, "chaos_tolerated", toleratedDoc)
	waitForTerminal(t, srv, run.ID)

	resp, err := http.Get(ts.URL + "/v1/runs/" + run.ID + "/events")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}
}

func TestStreamEventsLive(t *testing.T) {
	srv := newTestServer(t, engine.WithMaxConcurrent(1))

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	// The first run holds the only slot, keeping the second one pending
	// while the stream subscribes.
	submit(t, ts, "chaos_blocker", toleratedDoc)
	run := submit(t, ts, "chaos_stream", toleratedDoc)

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(ts.URL + "/v1/runs/" + run.ID + "/events")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	var kinds []string
	sawDone := false
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "event: done" {
			sawDone = true
			continue
		}
		data, ok := strings.CutPrefix(line, "data: ")
		if !ok || data == "stream complete" {
			continue
		}
		var ev model.Event
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			t.Fatalf("decode event %q: %v", data, err)
		}
		if ev.RunID != run.ID {
			t.Errorf("event run_id = %q, want %q", ev.RunID, run.ID)
		}
		kinds = append(kinds, ev.Kind)
	}

	// An empty stream means the run finished before the handler looked it
	// up, which history covers.
	if len(kinds) == 0 {
		return
	}
	if !sawDone {
		t.Error("stream ended without a done event")
	}
	if kinds[len(kinds)-1] != model.EventCompleted {
		t.Errorf("last event = %q, want %q", kinds[len(kinds)-1], model.EventCompleted)
	}
}

func TestGetEventHistory(t *testing.T) {
	srv := newTestServer(t)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	run := submit(t, ts, "chaos_tolerated", toleratedDoc)
	waitForTerminal(t, srv, run.ID)

	resp, err := http.Get(ts.URL + "/v1/runs/" + run.ID + "/events/history")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	var body eventHistoryResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.RunID != run.ID {
		t.Errorf("run_id = %q, want %q", body.RunID, run.ID)
	}
	if len(body.Events) == 0 {
		t.Fatal("no events in history")
	}
	var faults int
	for i, e := range body.Events {
		if e.Seq != i+1 {
			t.Errorf("events[%d].seq = %d, want %d", i, e.Seq, i+1)
		}
		if e.Kind == model.EventFaultRaised {
			faults++
		}
	}
	if faults < 2 {
		t.Errorf("fault_raised events = %d, want at least 2", faults)
	}
}

func TestGetEventHistoryNotFound(t *testing.T) {
	srv := newTestServer(t)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/runs/nonexistent/events/history")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}
