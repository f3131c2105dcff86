package scenario

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/seantiz/faultline/internal/faults"
	"github.com/seantiz/faultline/internal/intercept"
	"github.com/seantiz/faultline/internal/model"
)

// DefaultDeadline is the per-message receive deadline of the controller.
const DefaultDeadline = 3 * time.Second

// RunFunc is the application's run function. It executes on the worker
// goroutine.
type RunFunc func(ctx context.Context) error

// Factory is the application entry point: a zero-argument constructor
// returning the run function.
type Factory func() RunFunc

// Phase is the coarse state of the handshake state machine.
type Phase int

// Phases.
const (
	PhaseNotStarted Phase = iota
	PhaseActActive
	PhaseCompleted
	PhaseFailed
)

// State is the handshake state. Act is meaningful in PhaseActActive and,
// for PhaseFailed, names the act that failed.
type State struct {
	Phase Phase
	Act   int
}

func (s State) String() string {
	switch s.Phase {
	case PhaseNotStarted:
		return "not-started"
	case PhaseActActive:
		return fmt.Sprintf("act-active(%d)", s.Act)
	case PhaseCompleted:
		return "completed"
	case PhaseFailed:
		return fmt.Sprintf("failed(%d)", s.Act)
	default:
		return "unknown"
	}
}

// EventWriter receives controller-side protocol observations. It is called
// from the controller goroutine only. Seq numbers the events of one run
// from 1 without gaps.
type EventWriter func(e model.Event)

// Option configures a Scenario.
type Option func(*Scenario)

// WithTable sets the interception table call sites are resolved against.
func WithTable(t *intercept.Table) Option {
	return func(s *Scenario) { s.table = t }
}

// WithCatalog sets the fault catalog fault types are resolved against.
func WithCatalog(c *faults.Catalog) Option {
	return func(s *Scenario) { s.catalog = c }
}

// WithDeadline sets the per-message receive deadline.
func WithDeadline(d time.Duration) Option {
	return func(s *Scenario) {
		if d > 0 {
			s.deadline = d
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scenario) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithEventWriter registers a callback for protocol events.
func WithEventWriter(w EventWriter) Option {
	return func(s *Scenario) { s.events = w }
}

// WithName sets the scenario name used in logs.
func WithName(name string) Option {
	return func(s *Scenario) { s.name = name }
}

// Scenario owns an ordered list of acts, the synchronization channel and
// the handshake state machine. It runs at most once; verdict queries after
// the first read the memoized results.
type Scenario struct {
	name     string
	factory  Factory
	acts     []*Act
	table    *intercept.Table
	catalog  *faults.Catalog
	deadline time.Duration
	logger   *slog.Logger
	events   EventWriter

	once   sync.Once
	runErr error

	mu       sync.Mutex
	state    State
	cursor   int
	verdicts map[string]model.Verdict
	report   *Report
	seq      int
}

// New builds a scenario from parsed act descriptors. Every act is resolved
// here: a missing next-point, a doubly bound call site or an unresolvable
// name fails construction before any worker is started.
func New(factory Factory, descs []ActDescriptor, globalNext string, opts ...Option) (*Scenario, error) {
	s := &Scenario{
		name:     "scenario",
		factory:  factory,
		deadline: DefaultDeadline,
		logger:   slog.New(slog.NewJSONHandler(io.Discard, nil)),
		verdicts: make(map[string]model.Verdict, len(descs)),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.factory == nil {
		return nil, configErr("", "entry point is required")
	}
	if s.table == nil {
		return nil, configErr("", "interception table is required")
	}
	if s.catalog == nil {
		s.catalog = faults.Default
	}

	for i, desc := range descs {
		act, err := newAct(i, desc, globalNext, i == len(descs)-1, s.table, s.catalog)
		if err != nil {
			return nil, err
		}
		s.acts = append(s.acts, act)
		s.verdicts[act.name] = model.VerdictUndefined
	}

	return s, nil
}

// Name returns the scenario name.
func (s *Scenario) Name() string { return s.name }

// Acts returns the acts in order.
func (s *Scenario) Acts() []*Act {
	out := make([]*Act, len(s.acts))
	copy(out, s.acts)
	return out
}

// ActNames returns the act names in order.
func (s *Scenario) ActNames() []string {
	names := make([]string, len(s.acts))
	for i, a := range s.acts {
		names[i] = a.name
	}
	return names
}

// State returns the current handshake state.
func (s *Scenario) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Verdicts returns a copy of the per-act verdict table.
func (s *Scenario) Verdicts() map[string]model.Verdict {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]model.Verdict, len(s.verdicts))
	for k, v := range s.verdicts {
		out[k] = v
	}
	return out
}

// Run executes the scenario if it has not run yet and returns its report.
// Faults, timeouts and worker deaths are part of the report; the error is
// reserved for invariant violations.
func (s *Scenario) Run(ctx context.Context) (*Report, error) {
	s.once.Do(func() {
		s.runErr = s.execute(ctx)
	})
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.report, s.runErr
}

// RunTest returns the verdict of the named act, executing the scenario on
// the first query only.
func (s *Scenario) RunTest(ctx context.Context, actName string) (model.Verdict, error) {
	if _, err := s.Run(ctx); err != nil {
		return model.VerdictUndefined, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.verdicts[actName]
	if !ok {
		return model.VerdictUndefined, fmt.Errorf("%w: %q", ErrUnknownAct, actName)
	}
	return v, nil
}

func (s *Scenario) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
	s.logger.Debug("scenario state", "scenario", s.name, "state", st.String())
}

func (s *Scenario) setVerdict(i int, v model.Verdict) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verdicts[s.acts[i].name] = v
}

func (s *Scenario) emit(kind, act, origin, detail string) {
	if s.events == nil {
		return
	}
	s.seq++
	s.events(model.Event{
		Seq:       s.seq,
		Kind:      kind,
		Act:       act,
		Origin:    origin,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	})
}
