package model

import "time"

// Event kinds emitted by the scenario controller.
const (
	EventActActivated = "act_activated"
	EventFaultRaised  = "fault_raised"
	EventAdvance      = "advance"
	EventActFailed    = "act_failed"
	EventWorkerExit   = "worker_exit"
	EventTimeout      = "timeout"
	EventCompleted    = "completed"
)

// Event is a single controller-side observation of the handshake protocol.
// Seq orders events within a run.
type Event struct {
	ID        int64     `json:"id"`
	RunID     string    `json:"run_id"`
	Seq       int       `json:"seq"`
	Kind      string    `json:"kind"`
	Act       string    `json:"act,omitempty"`
	Origin    string    `json:"origin,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
