package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/seantiz/faultline/internal/chaosfile"
	"github.com/seantiz/faultline/internal/entrypoint"
	"github.com/seantiz/faultline/internal/model"
	"github.com/seantiz/faultline/internal/scenario"
	"github.com/seantiz/faultline/internal/store"
)

// DefaultMaxConcurrent is the default number of scenario runs executing at
// once.
const DefaultMaxConcurrent = 4

var tracer = otel.Tracer("faultline/engine")

// Request is a scenario document submitted for execution.
type Request struct {
	Name     string `json:"name"`
	Format   string `json:"format"`
	Document string `json:"document"`
}

// Option configures an Engine.
type Option func(*Engine)

// WithDeadline sets the per-message deadline of every built scenario.
func WithDeadline(d time.Duration) Option {
	return func(e *Engine) { e.deadline = d }
}

// WithMaxConcurrent bounds the number of runs executing at once.
func WithMaxConcurrent(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.sem = make(chan struct{}, n)
		}
	}
}

// WithTracer overrides the tracer used for run spans.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

// Engine orchestrates scenario runs.
type Engine struct {
	store    store.Store
	registry *entrypoint.Registry
	logger   *slog.Logger
	wg       sync.WaitGroup
	broker   *EventBroker
	sem      chan struct{}
	deadline time.Duration
	tracer   trace.Tracer
}

// NewEngine creates a new run engine.
func NewEngine(s store.Store, reg *entrypoint.Registry, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		store:    s,
		registry: reg,
		logger:   logger,
		broker:   NewEventBroker(),
		sem:      make(chan struct{}, DefaultMaxConcurrent),
		deadline: scenario.DefaultDeadline,
		tracer:   tracer,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Broker returns the engine's event broker for SSE subscription.
func (e *Engine) Broker() *EventBroker {
	return e.broker
}

// Registry returns the entry-point registry scenarios are built against.
func (e *Engine) Registry() *entrypoint.Registry {
	return e.registry
}

// Submit stores a pending run, builds its scenario and launches execution in
// a goroutine. Construction errors are returned together with the run,
// which is then recorded as failed.
func (e *Engine) Submit(ctx context.Context, req Request) (*model.Run, error) {
	run, sc, err := e.prepare(ctx, req)
	if err != nil {
		return run, err
	}

	runCopy := *run
	e.wg.Go(func() {
		if _, err := e.execute(context.Background(), &runCopy, sc); err != nil {
			e.logger.Error("run failed", "run_id", runCopy.ID, "error", err)
		}
	})

	return run, nil
}

// Execute runs a document synchronously and returns the finished run with
// its report.
func (e *Engine) Execute(ctx context.Context, req Request) (*model.Run, *scenario.Report, error) {
	run, sc, err := e.prepare(ctx, req)
	if err != nil {
		return run, nil, err
	}
	report, err := e.execute(ctx, run, sc)
	return run, report, err
}

// Wait blocks until all in-flight run goroutines complete.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// prepare creates the run record and builds the scenario.
func (e *Engine) prepare(ctx context.Context, req Request) (*model.Run, *scenario.Scenario, error) {
	doc, err := chaosfile.Parse(req.Name, []byte(req.Document), req.Format)
	if err != nil {
		return nil, nil, err
	}

	run := &model.Run{
		ID:         model.NewID(),
		Name:       req.Name,
		EntryPoint: doc.EntryPoint,
		Status:     model.StatusPending,
		Verdict:    model.VerdictUndefined,
		Format:     req.Format,
		Document:   req.Document,
		ActCount:   len(doc.Acts),
		CreatedAt:  time.Now().UTC(),
	}
	if err := e.store.CreateRun(ctx, run); err != nil {
		return nil, nil, fmt.Errorf("create run: %w", err)
	}

	sc, err := doc.Build(e.registry,
		scenario.WithDeadline(e.deadline),
		scenario.WithLogger(e.logger.With("run_id", run.ID)),
		scenario.WithEventWriter(func(ev model.Event) {
			ev.RunID = run.ID
			e.recordEvent(ev)
		}),
	)
	if err != nil {
		e.broker.Close(run.ID)
		e.finishFailed(run, nil, model.StatusFailed, err.Error())
		return run, nil, err
	}
	return run, sc, nil
}

// recordEvent persists an event for history, then publishes it for SSE.
func (e *Engine) recordEvent(ev model.Event) {
	if ev.Kind == model.EventFaultRaised {
		faultsRaisedTotal.Inc()
	}
	if err := e.store.InsertEvent(context.Background(), &ev); err != nil {
		e.logger.Error("failed to persist event", "run_id", ev.RunID, "seq", ev.Seq, "error", err)
	}
	e.broker.Publish(ev.RunID, ev)
}

// execute runs the scenario lifecycle: pending→running→completed/failed, or
// error for invariant violations.
func (e *Engine) execute(ctx context.Context, run *model.Run, sc *scenario.Scenario) (*scenario.Report, error) {
	defer e.broker.Close(run.ID)

	select {
	case e.sem <- struct{}{}:
		defer func() { <-e.sem }()
	case <-ctx.Done():
		e.finishFailed(run, nil, model.StatusFailed, fmt.Sprintf("not started: %v", ctx.Err()))
		return nil, ctx.Err()
	}

	if err := e.store.UpdateRunStatus(context.Background(), run.ID, model.StatusRunning); err != nil {
		e.logger.Error("failed to transition to running", "run_id", run.ID, "error", err)
		e.finishFailed(run, nil, model.StatusFailed, fmt.Sprintf("failed to start: %v", err))
		return nil, err
	}
	start := time.Now().UTC()

	ctx, span := e.tracer.Start(ctx, "scenario.run", trace.WithAttributes(
		attribute.String("run.id", run.ID),
		attribute.String("run.name", run.Name),
		attribute.String("run.entry_point", run.EntryPoint),
		attribute.Int("run.acts", run.ActCount),
	))
	defer span.End()

	runsInFlight.Inc()
	report, runErr := sc.Run(ctx)
	runsInFlight.Dec()

	status := model.StatusCompleted
	switch {
	case runErr != nil:
		status = model.StatusError
		if !errors.Is(runErr, scenario.ErrInvariant) {
			status = model.StatusFailed
		}
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
	case !report.Passed():
		status = model.StatusFailed
		span.SetStatus(codes.Error, report.Reason)
	}

	if report != nil {
		if err := e.store.SaveActResults(context.Background(), run.ID, actResults(run.ID, report)); err != nil {
			e.logger.Error("failed to persist act results", "run_id", run.ID, "error", err)
		}
		for _, a := range report.Acts {
			actVerdictsTotal.WithLabelValues(string(a.Verdict)).Inc()
		}
		span.SetAttributes(
			attribute.String("run.verdict", string(report.Status)),
			attribute.String("run.failed_act", report.FailedAct),
		)
	}

	now := time.Now().UTC()
	dur := int(now.Sub(start).Milliseconds())
	run.Status = status
	run.StartedAt = &start
	run.FinishedAt = &now
	run.DurationMS = &dur
	run.Verdict = model.VerdictFailure
	if report != nil {
		run.Verdict = report.Status
		run.Reason = report.Reason
	}
	if runErr != nil {
		run.Error = runErr.Error()
	}

	if err := e.store.UpdateRun(context.Background(), run); err != nil {
		e.logger.Error("failed to update finished run", "run_id", run.ID, "error", err)
	}
	runsTotal.WithLabelValues(status).Inc()
	runDuration.WithLabelValues(run.EntryPoint).Observe(now.Sub(start).Seconds())

	e.logger.Info("run finished",
		"run_id", run.ID,
		"name", run.Name,
		"status", status,
		"verdict", string(run.Verdict),
		"duration_ms", dur,
	)
	return report, runErr
}

// finishFailed records a run that could not execute. startedAt may be nil
// if execution never started.
func (e *Engine) finishFailed(run *model.Run, startedAt *time.Time, status, errMsg string) {
	now := time.Now().UTC()
	var durationMS int
	if startedAt != nil {
		durationMS = int(now.Sub(*startedAt).Milliseconds())
	}

	run.Status = status
	run.Verdict = model.VerdictFailure
	run.Error = errMsg
	run.DurationMS = &durationMS
	run.StartedAt = startedAt
	run.FinishedAt = &now

	if err := e.store.UpdateRun(context.Background(), run); err != nil {
		e.logger.Error("failed to update failed run", "run_id", run.ID, "error", err)
	}
	runsTotal.WithLabelValues(status).Inc()
}

func actResults(runID string, r *scenario.Report) []model.ActResult {
	out := make([]model.ActResult, len(r.Acts))
	for i, a := range r.Acts {
		out[i] = model.ActResult{
			RunID:          runID,
			Ordinal:        a.Ordinal,
			Name:           a.Name,
			Verdict:        a.Verdict,
			NextPoint:      a.NextPoint,
			Message:        a.Message,
			Faults:         a.Faults,
			ObservedFaults: a.ObservedFaults,
		}
	}
	return out
}
