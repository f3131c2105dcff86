package scenario

import (
	"context"
	"fmt"
	"time"

	"github.com/seantiz/faultline/internal/model"
)

// Failure reasons recorded in a Report.
const (
	ReasonTimeout     = "timeout"
	ReasonWorkerExit  = "worker-exit"
	ReasonWorkerPanic = "worker-panic"
	ReasonCancelled   = "cancelled"
	ReasonInvariant   = "invariant"

	// ReasonConfiguration marks a run stopped by a misbehaving entry point
	// before any act was activated.
	ReasonConfiguration = "configuration"
)

type exitKind int

const (
	exitReturned exitKind = iota
	exitPanicked
	exitTerminal
	exitGoexit
)

func (k exitKind) String() string {
	switch k {
	case exitReturned:
		return "returned"
	case exitPanicked:
		return "panicked"
	case exitTerminal:
		return "terminal"
	default:
		return "goexit"
	}
}

// workerExit is the worker's final status, reported on its own channel so
// an intended terminal exit is never confused with a failure.
type workerExit struct {
	kind  exitKind
	err   error
	panic any
}

func (w workerExit) detail() string {
	switch w.kind {
	case exitReturned:
		if w.err != nil {
			return fmt.Sprintf("returned: %v", w.err)
		}
		return "returned"
	case exitPanicked:
		return fmt.Sprintf("panicked: %v", w.panic)
	default:
		return w.kind.String()
	}
}

// spawn starts run on the worker goroutine.
func spawn(ctx context.Context, run RunFunc, ch *channel) <-chan workerExit {
	exited := make(chan workerExit, 1)
	go func() {
		var res workerExit
		returned := false
		defer func() {
			if r := recover(); r != nil {
				res = workerExit{kind: exitPanicked, panic: r}
			} else if !returned {
				res = workerExit{kind: exitGoexit}
				if ch.terminal.Load() {
					res.kind = exitTerminal
				}
			}
			exited <- res
		}()
		err := run(ctx)
		returned = true
		res = workerExit{kind: exitReturned, err: err}
	}()
	return exited
}

// execute drives one scenario run on the controller goroutine.
func (s *Scenario) execute(ctx context.Context) error {
	start := time.Now()
	s.logger.Info("scenario starting", "scenario", s.name, "acts", len(s.acts), "deadline", s.deadline.String())

	if len(s.acts) == 0 {
		s.setState(State{Phase: PhaseCompleted})
		s.finish(start, "", nil, false)
		return nil
	}

	run := s.factory()
	if run == nil {
		s.setState(State{Phase: PhaseFailed})
		s.finish(start, ReasonConfiguration, nil, false)
		return configErr("", "entry point returned a nil run function")
	}

	ch := newChannel()
	defer ch.close()
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := s.acts[0].activate(s.table, ch); err != nil {
		s.setState(State{Phase: PhaseFailed})
		s.finish(start, ReasonInvariant, nil, false)
		return err
	}
	s.setState(State{Phase: PhaseActActive, Act: 0})
	s.emit(model.EventActActivated, s.acts[0].name, "", "")

	exited := spawn(runCtx, run, ch)

	var (
		exit      *workerExit
		completed bool
		reason    string
	)
	timer := time.NewTimer(s.deadline)
	defer timer.Stop()

loop:
	for !ch.empty() || (exit == nil && !completed) {
		timer.Reset(s.deadline)
		select {
		case msg := <-ch.msgs:
			done, err := s.handle(msg, ch)
			if err != nil {
				s.abort(start, exit)
				return err
			}
			if done {
				completed = true
			}
		case ex := <-exited:
			exit = &ex
			exited = nil
			s.emit(model.EventWorkerExit, s.currentName(), "", ex.detail())
		case <-timer.C:
			if exit == nil {
				reason = ReasonTimeout
				s.emit(model.EventTimeout, s.currentName(), "", s.deadline.String())
				break loop
			}
		case <-ctx.Done():
			reason = ReasonCancelled
			break loop
		}
	}

	if completed {
		if exit == nil {
			select {
			case ex := <-exited:
				exit = &ex
				s.emit(model.EventWorkerExit, "", "", ex.detail())
			case <-time.After(s.deadline):
			}
		}
		if exit == nil || exit.kind != exitTerminal {
			s.setState(State{Phase: PhaseFailed, Act: len(s.acts) - 1})
			s.finish(start, ReasonInvariant, exit, exit == nil)
			if exit == nil {
				return invariantErr(nil, "worker still alive %s after the terminal checkpoint", s.deadline)
			}
			return invariantErr(nil, "worker %s after the terminal checkpoint", exit.kind)
		}
		s.setState(State{Phase: PhaseCompleted})
		s.emit(model.EventCompleted, "", "", "")
		s.finish(start, "", exit, false)
		return nil
	}

	if reason == "" {
		reason = ReasonWorkerExit
		if exit != nil && exit.kind == exitPanicked {
			reason = ReasonWorkerPanic
		}
	}
	failed := s.acts[s.cursor]
	s.setVerdict(s.cursor, model.VerdictFailure)
	if err := failed.deactivate(s.table); err != nil {
		s.logger.Error("restore call sites", "scenario", s.name, "act", failed.name, "error", err)
	}
	s.setState(State{Phase: PhaseFailed, Act: s.cursor})
	s.emit(model.EventActFailed, failed.name, "", reason)

	abandoned := exit == nil
	if abandoned {
		// Unblock any stand-in still waiting and let a context-aware
		// application wind down on its own.
		ch.close()
		cancel()
		s.logger.Warn("worker abandoned", "scenario", s.name, "act", failed.name, "reason", reason)
	}
	s.finish(start, reason, exit, abandoned)
	return nil
}

// handle applies one protocol message. It reports true once the final act
// advanced.
func (s *Scenario) handle(msg Message, ch *channel) (bool, error) {
	switch msg.Command {
	case CommandFaultRaised:
		if msg.Act < 0 || msg.Act >= len(s.acts) || !s.acts[msg.Act].observe(msg.Origin) {
			s.logger.Debug("fault from unknown origin", "scenario", s.name, "act", msg.Act, "origin", msg.Origin)
			return false, nil
		}
		s.emit(model.EventFaultRaised, s.acts[msg.Act].name, msg.Origin, "")

	case CommandAdvance:
		if msg.Act != s.cursor {
			s.logger.Warn("stale advance", "scenario", s.name, "act", msg.Act, "cursor", s.cursor)
			return false, nil
		}
		act := s.acts[s.cursor]
		s.setVerdict(s.cursor, model.VerdictSuccess)
		if err := act.deactivate(s.table); err != nil {
			return false, err
		}
		s.emit(model.EventAdvance, act.name, act.nextPoint, "")
		s.logger.Debug("act advanced", "scenario", s.name, "act", act.name)

		s.cursor++
		if s.cursor == len(s.acts) {
			return true, nil
		}
		next := s.acts[s.cursor]
		if err := next.activate(s.table, ch); err != nil {
			return false, err
		}
		s.setState(State{Phase: PhaseActActive, Act: s.cursor})
		s.emit(model.EventActActivated, next.name, "", "")

	case CommandAdvanceAck:
		// The next act is installed by now; let the worker resume.
		if msg.release != nil {
			close(msg.release)
		}
	}
	return false, nil
}

// abort tears a run down after an invariant violation.
func (s *Scenario) abort(start time.Time, exit *workerExit) {
	if s.cursor < len(s.acts) {
		_ = s.acts[s.cursor].deactivate(s.table)
		s.setVerdict(s.cursor, model.VerdictFailure)
	}
	s.setState(State{Phase: PhaseFailed, Act: s.cursor})
	s.finish(start, ReasonInvariant, exit, exit == nil)
}

func (s *Scenario) currentName() string {
	if s.cursor < len(s.acts) {
		return s.acts[s.cursor].name
	}
	return ""
}

// finish stores the run report.
func (s *Scenario) finish(start time.Time, reason string, exit *workerExit, abandoned bool) {
	r := s.buildReport(reason, exit, abandoned, time.Since(start))

	s.mu.Lock()
	s.report = r
	s.mu.Unlock()

	s.logger.Info("scenario finished",
		"scenario", s.name,
		"status", string(r.Status),
		"reason", reason,
		"failed_act", r.FailedAct,
		"duration_ms", r.Duration.Milliseconds(),
	)
}
