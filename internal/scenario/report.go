package scenario

import (
	"time"

	"github.com/seantiz/faultline/internal/model"
)

// Verdict messages shown to test adapters.
const (
	MessageNotCompleted = "act was not completed"
	MessageNotReached   = "act was not reached due to a previously failed act"
)

// Report summarises one scenario run.
type Report struct {
	Scenario  string        `json:"scenario"`
	Status    model.Verdict `json:"status"`
	State     string        `json:"state"`
	Reason    string        `json:"reason,omitempty"`
	FailedAct string        `json:"failed_act,omitempty"`
	Worker    string        `json:"worker,omitempty"`
	Abandoned bool          `json:"abandoned,omitempty"`
	Duration  time.Duration `json:"duration"`
	Acts      []ActReport   `json:"acts"`
}

// ActReport is the outcome of a single act.
type ActReport struct {
	Name           string             `json:"name"`
	Ordinal        int                `json:"ordinal"`
	Verdict        model.Verdict      `json:"verdict"`
	NextPoint      string             `json:"next_point"`
	Message        string             `json:"message,omitempty"`
	Faults         []model.ChaosFault `json:"faults,omitempty"`
	ObservedFaults map[string]bool    `json:"observed_faults"`
}

// Passed reports whether every act succeeded.
func (r *Report) Passed() bool {
	return r.Status == model.VerdictCompleted
}

// VerdictMessage returns the adapter-facing explanation of v, or "" for
// success.
func VerdictMessage(v model.Verdict) string {
	switch v {
	case model.VerdictFailure:
		return MessageNotCompleted
	case model.VerdictUndefined:
		return MessageNotReached
	default:
		return ""
	}
}

func (s *Scenario) buildReport(reason string, exit *workerExit, abandoned bool, d time.Duration) *Report {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := &Report{
		Scenario:  s.name,
		Status:    model.VerdictCompleted,
		State:     s.state.String(),
		Reason:    reason,
		Abandoned: abandoned,
		Duration:  d,
		Acts:      make([]ActReport, 0, len(s.acts)),
	}
	if exit != nil {
		r.Worker = exit.detail()
	}
	if reason != "" {
		r.Status = model.VerdictFailure
	}

	for _, a := range s.acts {
		v := s.verdicts[a.name]
		if v != model.VerdictSuccess {
			r.Status = model.VerdictFailure
		}
		if v == model.VerdictFailure && r.FailedAct == "" {
			r.FailedAct = a.name
		}
		r.Acts = append(r.Acts, ActReport{
			Name:           a.name,
			Ordinal:        a.ordinal,
			Verdict:        v,
			NextPoint:      a.nextPoint,
			Message:        VerdictMessage(v),
			Faults:         a.Faults(),
			ObservedFaults: a.ObservedFaults(),
		})
	}
	return r
}
