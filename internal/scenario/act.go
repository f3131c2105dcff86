package scenario

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/seantiz/faultline/internal/faults"
	"github.com/seantiz/faultline/internal/intercept"
	"github.com/seantiz/faultline/internal/model"
)

// FaultSpec is one fault binding of a call site as read from a scenario
// document.
type FaultSpec struct {
	Type  string   `json:"type"`
	Args  []string `json:"args,omitempty"`
	Panic bool     `json:"panic,omitempty"`
}

// ActDescriptor is the parsed description of one act: a mapping from
// call-site path to its fault bindings plus an optional checkpoint.
type ActDescriptor struct {
	Faults    map[string][]FaultSpec `json:"faults"`
	NextPoint string                 `json:"next_point,omitempty"`
}

// Act is one execution phase: a fixed interceptor set live together, ended
// by exactly one checkpoint interceptor.
type Act struct {
	name       string
	ordinal    int
	last       bool
	nextPoint  string
	faults     []*FaultInterceptor
	checkpoint Interceptor

	mu       sync.Mutex
	observed map[string]bool
	active   bool
}

// ActName returns the conventional name of the act at ordinal.
func ActName(ordinal int) string {
	return fmt.Sprintf("act-%d", ordinal)
}

// newAct resolves every call site and fault type of desc. All errors are
// configuration or resolution errors and are raised before execution.
func newAct(ordinal int, desc ActDescriptor, globalNext string, last bool, tbl *intercept.Table, catalog *faults.Catalog) (*Act, error) {
	name := ActName(ordinal)

	next := strings.TrimSpace(desc.NextPoint)
	if next == "" {
		next = strings.TrimSpace(globalNext)
	}
	if next == "" {
		return nil, configErr(name, "no next-point defined and no global next-point to fall back to")
	}

	a := &Act{
		name:      name,
		ordinal:   ordinal,
		last:      last,
		nextPoint: next,
		observed:  make(map[string]bool),
	}

	// Sorted for deterministic install order and error messages.
	paths := make([]string, 0, len(desc.Faults))
	for path := range desc.Faults {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	// Keyed by resolved path: differently spelled keys may name one site.
	bound := make(map[string]bool, len(paths))
	for _, path := range paths {
		specs := desc.Faults[path]
		if len(specs) != 1 {
			return nil, configErr(name, "call site %q has %d fault bindings, exactly 1 allowed", path, len(specs))
		}
		spec := specs[0]

		site, err := tbl.Resolve(path)
		if err != nil {
			return nil, resolutionErr(name, err, "resolve call site %q", path)
		}
		if bound[site.Path()] {
			return nil, configErr(name, "call site %q is bound to more than one fault", site.Path())
		}
		bound[site.Path()] = true
		ctor, err := catalog.Resolve(spec.Type)
		if err != nil {
			return nil, resolutionErr(name, err, "resolve fault type %q", spec.Type)
		}

		args := spec.Args
		if len(args) == 0 {
			args = faults.DefaultMessage(spec.Type)
		}
		a.faults = append(a.faults, &FaultInterceptor{
			site: site,
			fault: model.ChaosFault{
				Type:   spec.Type,
				Args:   args,
				Origin: site.Path(),
				Panic:  spec.Panic,
			},
			build: ctor,
			act:   ordinal,
		})
	}

	cp, err := tbl.Resolve(next)
	if err != nil {
		return nil, resolutionErr(name, err, "resolve next-point %q", next)
	}
	if bound[cp.Path()] {
		return nil, configErr(name, "next-point %q is also bound to a fault", cp.Path())
	}
	if last {
		a.checkpoint = &TerminalInterceptor{site: cp, act: ordinal}
	} else {
		a.checkpoint = &AdvanceInterceptor{site: cp, act: ordinal}
	}

	return a, nil
}

// Name returns the act name ("act-0", ...).
func (a *Act) Name() string { return a.name }

// Ordinal returns the position of the act in its scenario.
func (a *Act) Ordinal() int { return a.ordinal }

// NextPoint returns the checkpoint path that ends the act.
func (a *Act) NextPoint() string { return a.nextPoint }

// Last reports whether the act is the final one of its scenario.
func (a *Act) Last() bool { return a.last }

// Interceptors returns every interceptor of the act, checkpoint last.
func (a *Act) Interceptors() []Interceptor {
	out := make([]Interceptor, 0, len(a.faults)+1)
	for _, f := range a.faults {
		out = append(out, f)
	}
	return append(out, a.checkpoint)
}

// Faults returns the scripted faults of the act.
func (a *Act) Faults() []model.ChaosFault {
	out := make([]model.ChaosFault, 0, len(a.faults))
	for _, f := range a.faults {
		out = append(out, f.fault)
	}
	return out
}

// ObservedFaults returns a copy of the origin → raised map.
func (a *Act) ObservedFaults() map[string]bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]bool, len(a.observed))
	for k, v := range a.observed {
		out[k] = v
	}
	return out
}

// activate installs every interceptor and resets the observed flags. On
// failure every interceptor installed so far is removed again.
func (a *Act) activate(tbl *intercept.Table, ch *channel) error {
	a.mu.Lock()
	for _, f := range a.faults {
		a.observed[f.fault.Origin] = false
	}
	a.mu.Unlock()

	var installed []Interceptor
	for _, ic := range a.Interceptors() {
		if err := tbl.Install(ic.CallSite(), ic.standIn(ch)); err != nil {
			for _, done := range installed {
				_ = tbl.Uninstall(done.CallSite())
			}
			return invariantErr(err, "activate %s", a.name)
		}
		installed = append(installed, ic)
	}
	a.active = true
	return nil
}

// deactivate restores every original. Safe to call on an inactive act.
func (a *Act) deactivate(tbl *intercept.Table) error {
	if !a.active {
		return nil
	}
	a.active = false

	var firstErr error
	for _, ic := range a.Interceptors() {
		if err := tbl.Uninstall(ic.CallSite()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		return invariantErr(firstErr, "deactivate %s", a.name)
	}
	return nil
}

// observe records a raised fault. Unknown origins are ignored and reported
// as false.
func (a *Act) observe(origin string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.observed[origin]; !ok {
		return false
	}
	a.observed[origin] = true
	return true
}
