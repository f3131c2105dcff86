package entrypoint

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/seantiz/faultline/internal/faults"
	"github.com/seantiz/faultline/internal/intercept"
	"github.com/seantiz/faultline/internal/scenario"
)

// ErrNotRegistered is returned when an entry point is not in the registry.
var ErrNotRegistered = errors.New("entry point is not registered")

// Instance is one freshly constructed host application.
type Instance struct {
	// Factory builds the run function executed on the worker goroutine.
	Factory scenario.Factory
	// Table holds the instance's interceptable call sites.
	Table *intercept.Table
	// Catalog optionally carries application-specific fault types. Nil
	// means faults.Default.
	Catalog *faults.Catalog
}

// Provider constructs a new Instance.
type Provider func() Instance

// Info describes a registered entry point.
type Info struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	CallSites   []string `json:"call_sites"`
}

type entry struct {
	description string
	provider    Provider
}

// Registry holds registered entry points.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// NewRegistry creates an empty entry-point registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]entry),
	}
}

// Register adds a provider under name, replacing any previous one.
func (r *Registry) Register(name, description string, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[name] = entry{description: description, provider: p}
}

// Resolve returns a new instance of the named entry point.
func (r *Registry) Resolve(name string) (Instance, error) {
	name = strings.TrimSpace(name)

	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return Instance{}, fmt.Errorf("%w: %q", ErrNotRegistered, name)
	}

	inst := e.provider()
	if inst.Factory == nil || inst.Table == nil {
		return Instance{}, fmt.Errorf("entry point %q: provider returned an incomplete instance", name)
	}
	if inst.Catalog == nil {
		inst.Catalog = faults.Default
	}
	return inst, nil
}

// Options returns the scenario options binding a scenario to inst.
func (inst Instance) Options() []scenario.Option {
	return []scenario.Option{
		scenario.WithTable(inst.Table),
		scenario.WithCatalog(inst.Catalog),
	}
}

// List returns information about all registered entry points, sorted by
// name for a stable API response.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]Info, 0, len(r.entries))
	for name, e := range r.entries {
		info := Info{Name: name, Description: e.description}
		if inst := e.provider(); inst.Table != nil {
			info.CallSites = inst.Table.Paths()
		}
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Name < infos[j].Name
	})
	return infos
}
