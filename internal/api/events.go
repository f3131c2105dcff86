package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/seantiz/faultline/internal/model"
)

func (s *Server) handleStreamEvents(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookupRun(w, r)
	if !ok {
		return
	}

	// Set SSE headers.
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// Finished runs have nothing left to stream; history serves them.
	if model.IsTerminal(run.Status) {
		w.WriteHeader(http.StatusOK)
		return
	}

	// Disable write timeout for long-lived SSE connections.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		s.logger.Error("set write deadline for SSE", "error", err)
	}

	// Subscribe on a topic closed in the meantime yields a closed channel,
	// so the loop below exits straight away.
	ch, unsub := s.engine.Broker().Subscribe(run.ID)
	defer unsub()

	w.WriteHeader(http.StatusOK)
	flusher, canFlush := w.(http.Flusher)
	if canFlush {
		flusher.Flush()
	}

	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				_ = writeSSEEvent(w, "done", "stream complete")
				if canFlush {
					flusher.Flush()
				}
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				s.logger.Error("encode event", "run_id", run.ID, "error", err)
				continue
			}
			if err := writeSSEData(w, string(data)); err != nil {
				return
			}
			if canFlush {
				flusher.Flush()
			}
		case <-r.Context().Done():
			return
		}
	}
}

// eventHistoryResponse is the JSON response for GET /v1/runs/{id}/events/history.
type eventHistoryResponse struct {
	RunID  string        `json:"run_id"`
	Events []model.Event `json:"events"`
}

func (s *Server) handleGetEventHistory(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookupRun(w, r)
	if !ok {
		return
	}

	events, err := s.store.GetEvents(r.Context(), run.ID)
	if err != nil {
		s.logger.Error("get events", "run_id", run.ID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get events")
		return
	}
	if events == nil {
		events = []model.Event{}
	}

	s.writeJSON(w, http.StatusOK, eventHistoryResponse{
		RunID:  run.ID,
		Events: events,
	})
}

// writeSSEData writes a payload as an SSE data event. Multi-line payloads get
// one "data:" prefix per line.
func writeSSEData(w http.ResponseWriter, payload string) error {
	for seg := range strings.SplitSeq(payload, "\n") {
		if _, err := fmt.Fprintf(w, "data: %s\n", seg); err != nil {
			return err
		}
	}
	_, err := fmt.Fprint(w, "\n")
	return err
}

// writeSSEEvent writes a named SSE event (event: <type>\ndata: <data>\n\n).
func writeSSEEvent(w http.ResponseWriter, eventType, data string) error {
	if _, err := fmt.Fprintf(w, "event: %s\n", eventType); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	return nil
}
