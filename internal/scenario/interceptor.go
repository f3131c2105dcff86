package scenario

import (
	"context"
	"errors"
	"runtime"

	"github.com/seantiz/faultline/internal/faults"
	"github.com/seantiz/faultline/internal/intercept"
	"github.com/seantiz/faultline/internal/model"
)

// ErrAborted is returned by an advance stand-in whose controller stopped
// before releasing it.
var ErrAborted = errors.New("scenario aborted")

// Interceptor is a reversible override of one call site.
type Interceptor interface {
	// CallSite returns the site this interceptor overrides.
	CallSite() intercept.CallSite
	// standIn builds the override installed while the owning act is active.
	standIn(ch *channel) intercept.Func
}

// FaultInterceptor makes its call site return (or panic with) a scripted
// fault after reporting it to the controller.
type FaultInterceptor struct {
	site  intercept.CallSite
	fault model.ChaosFault
	build faults.Constructor
	act   int
}

// CallSite returns the overridden call site.
func (f *FaultInterceptor) CallSite() intercept.CallSite { return f.site }

// Fault returns the scripted fault.
func (f *FaultInterceptor) Fault() model.ChaosFault { return f.fault }

func (f *FaultInterceptor) standIn(ch *channel) intercept.Func {
	return func(context.Context, ...any) (any, error) {
		ch.send(Message{Command: CommandFaultRaised, Act: f.act, Origin: f.fault.Origin})
		err := f.build(f.fault.Args...)
		if f.fault.Panic {
			panic(err)
		}
		return nil, err
	}
}

// AdvanceInterceptor marks a checkpoint of a non-final act. Its stand-in
// hands control to the controller and resumes the original call once the
// next act is live.
type AdvanceInterceptor struct {
	site intercept.CallSite
	act  int
}

// CallSite returns the checkpoint call site.
func (a *AdvanceInterceptor) CallSite() intercept.CallSite { return a.site }

func (a *AdvanceInterceptor) standIn(ch *channel) intercept.Func {
	return func(ctx context.Context, args ...any) (any, error) {
		release := make(chan struct{})
		if !ch.send(Message{Command: CommandAdvance, Act: a.act}) {
			return nil, ErrAborted
		}
		if !ch.send(Message{Command: CommandAdvanceAck, Act: a.act, release: release}) {
			return nil, ErrAborted
		}
		select {
		case <-release:
		case <-ch.done:
			return nil, ErrAborted
		}
		return a.site.Original(ctx, args...)
	}
}

// TerminalInterceptor marks the checkpoint of the final act. Its stand-in
// reports the advance and ends the worker goroutine.
//
// The checkpoint must be reached on the goroutine running the entry point;
// runtime.Goexit only ends the calling goroutine.
type TerminalInterceptor struct {
	site intercept.CallSite
	act  int
}

// CallSite returns the checkpoint call site.
func (t *TerminalInterceptor) CallSite() intercept.CallSite { return t.site }

func (t *TerminalInterceptor) standIn(ch *channel) intercept.Func {
	return func(context.Context, ...any) (any, error) {
		ch.send(Message{Command: CommandAdvance, Act: t.act})
		ch.markTerminal()
		runtime.Goexit()
		return nil, nil
	}
}
