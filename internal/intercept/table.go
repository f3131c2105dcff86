// Package intercept provides the interception table host applications expose
// to the harness. A host registers each interceptable call site under a
// dotted path ("owner.sub.attr") and invokes it through the returned *Site.
// The harness overrides and restores sites through Install and Uninstall;
// resolution always yields the original function, never an installed
// stand-in.
package intercept

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

var (
	// ErrInvalidPath is returned when a path has no owner or no attribute.
	ErrInvalidPath = errors.New("invalid call site path")
	// ErrUnknownSite is returned when a path was never registered.
	ErrUnknownSite = errors.New("unknown call site")
	// ErrDuplicateSite is returned when a path is registered twice.
	ErrDuplicateSite = errors.New("call site already registered")
	// ErrAlreadyInstalled is returned when a site already carries an override.
	ErrAlreadyInstalled = errors.New("override already installed")
	// ErrNotInstalled is returned when uninstalling a site without an override.
	ErrNotInstalled = errors.New("no override installed")
)

// Func is the signature every interceptable call site shares.
type Func func(ctx context.Context, args ...any) (any, error)

// Site is a single interceptable call site. Calls go to the installed
// override when one is present and to the original function otherwise.
type Site struct {
	owner    string
	attr     string
	original Func
	override atomic.Pointer[Func]
}

// Call invokes the site.
func (s *Site) Call(ctx context.Context, args ...any) (any, error) {
	if fn := s.override.Load(); fn != nil {
		return (*fn)(ctx, args...)
	}
	return s.original(ctx, args...)
}

// Path returns the dotted path the site was registered under.
func (s *Site) Path() string {
	return s.owner + "." + s.attr
}

// Overridden reports whether an override is currently installed.
func (s *Site) Overridden() bool {
	return s.override.Load() != nil
}

// CallSite is a resolved reference to a registered site. It is a value and
// stays valid for the lifetime of the table.
type CallSite struct {
	Owner    string
	Attr     string
	Original Func

	site *Site
}

// Path returns the dotted path of the call site.
func (c CallSite) Path() string {
	return c.Owner + "." + c.Attr
}

// Table maps (owner, attribute) pairs to call sites. It is safe for
// concurrent use; host applications register sites before a scenario runs.
type Table struct {
	mu     sync.RWMutex
	owners map[string]map[string]*Site
}

// NewTable creates an empty interception table.
func NewTable() *Table {
	return &Table{
		owners: make(map[string]map[string]*Site),
	}
}

// SplitPath splits a dotted path into its owner and final attribute name.
func SplitPath(path string) (owner, attr string, err error) {
	path = strings.TrimSpace(path)
	i := strings.LastIndex(path, ".")
	if i <= 0 || i == len(path)-1 {
		return "", "", fmt.Errorf("%w: %q: provide owner and attribute", ErrInvalidPath, path)
	}
	return path[:i], path[i+1:], nil
}

// Register exposes fn as an interceptable call site under path.
func (t *Table) Register(path string, fn Func) (*Site, error) {
	if fn == nil {
		return nil, fmt.Errorf("register %q: nil function", path)
	}
	owner, attr, err := SplitPath(path)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	attrs, ok := t.owners[owner]
	if !ok {
		attrs = make(map[string]*Site)
		t.owners[owner] = attrs
	}
	if _, exists := attrs[attr]; exists {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateSite, path)
	}

	s := &Site{owner: owner, attr: attr, original: fn}
	attrs[attr] = s
	return s, nil
}

// MustRegister is like Register but panics on error. Intended for host
// application setup code.
func (t *Table) MustRegister(path string, fn Func) *Site {
	s, err := t.Register(path, fn)
	if err != nil {
		panic(err)
	}
	return s
}

// Resolve returns the call site registered under path.
func (t *Table) Resolve(path string) (CallSite, error) {
	owner, attr, err := SplitPath(path)
	if err != nil {
		return CallSite{}, err
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	s, ok := t.owners[owner][attr]
	if !ok {
		return CallSite{}, fmt.Errorf("%w: %q", ErrUnknownSite, path)
	}
	return CallSite{Owner: owner, Attr: attr, Original: s.original, site: s}, nil
}

// Install overrides the call site with fn. At most one override may be
// installed per site.
func (t *Table) Install(cs CallSite, fn Func) error {
	s, err := t.lookup(cs)
	if err != nil {
		return err
	}
	if !s.override.CompareAndSwap(nil, &fn) {
		return fmt.Errorf("install %q: %w", cs.Path(), ErrAlreadyInstalled)
	}
	return nil
}

// Uninstall restores the original function of the call site.
func (t *Table) Uninstall(cs CallSite) error {
	s, err := t.lookup(cs)
	if err != nil {
		return err
	}
	if s.override.Swap(nil) == nil {
		return fmt.Errorf("uninstall %q: %w", cs.Path(), ErrNotInstalled)
	}
	return nil
}

// Overridden reports whether the site at path carries an override.
func (t *Table) Overridden(path string) bool {
	cs, err := t.Resolve(path)
	if err != nil {
		return false
	}
	return cs.site.Overridden()
}

// Paths returns every registered path, sorted.
func (t *Table) Paths() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var paths []string
	for _, attrs := range t.owners {
		for _, s := range attrs {
			paths = append(paths, s.Path())
		}
	}
	sort.Strings(paths)
	return paths
}

func (t *Table) lookup(cs CallSite) (*Site, error) {
	if cs.site != nil {
		return cs.site, nil
	}
	resolved, err := t.Resolve(cs.Path())
	if err != nil {
		return nil, err
	}
	return resolved.site, nil
}
