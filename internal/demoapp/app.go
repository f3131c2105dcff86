// Package demoapp is a small polling service used to exercise the harness.
// It fetches data in a loop, tolerates KeyError from the fetch, stops on
// any other error and processes each successful round.
package demoapp

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/seantiz/faultline/internal/entrypoint"
	"github.com/seantiz/faultline/internal/faults"
	"github.com/seantiz/faultline/internal/intercept"
	"github.com/seantiz/faultline/internal/scenario"
)

// Call-site paths exposed by the application.
const (
	EntryPoint    = "demoapp.factory"
	GetData       = "demoapp.get_data"
	ProcessData   = "demoapp.process_data"
	UnusedMethod  = "demoapp.unused_method"
	defaultPeriod = 5 * time.Millisecond
)

// App is one instance of the demo service.
type App struct {
	logger *slog.Logger
	period time.Duration
	table  *intercept.Table

	getData     *intercept.Site
	processData *intercept.Site
	unused      *intercept.Site

	rounds    atomic.Int64
	tolerated atomic.Int64
}

// New creates an App with its call sites registered on a fresh table.
func New(logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	a := &App{
		logger: logger,
		period: defaultPeriod,
		table:  intercept.NewTable(),
	}
	a.getData = a.table.MustRegister(GetData, func(context.Context, ...any) (any, error) {
		return []byte("payload"), nil
	})
	a.processData = a.table.MustRegister(ProcessData, func(_ context.Context, args ...any) (any, error) {
		a.rounds.Add(1)
		return nil, nil
	})
	a.unused = a.table.MustRegister(UnusedMethod, func(context.Context, ...any) (any, error) {
		return nil, nil
	})
	return a
}

// Table returns the application's call sites.
func (a *App) Table() *intercept.Table { return a.table }

// Rounds returns how many rounds reached process_data's original.
func (a *App) Rounds() int64 { return a.rounds.Load() }

// Tolerated returns how many KeyErrors the loop absorbed.
func (a *App) Tolerated() int64 { return a.tolerated.Load() }

// Factory returns the run function. It matches scenario.Factory.
func (a *App) Factory() scenario.RunFunc {
	return a.Run
}

// Run is the service main loop.
func (a *App) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		a.logger.Debug("running")

		data, err := a.getData.Call(ctx)
		switch {
		case errors.Is(err, faults.ErrKey):
			a.tolerated.Add(1)
			a.logger.Info("recoverable error, continuing", "error", err)
		case err != nil:
			a.logger.Info("fetch failed, stopping", "error", err)
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(a.period):
		}

		if _, err := a.processData.Call(ctx, data); err != nil {
			return err
		}
	}
}

// Register adds the demo application to reg under EntryPoint.
func Register(reg *entrypoint.Registry, logger *slog.Logger) {
	reg.Register(EntryPoint, "polling service that tolerates KeyError", func() entrypoint.Instance {
		app := New(logger)
		return entrypoint.Instance{Factory: app.Factory, Table: app.Table()}
	})
}
