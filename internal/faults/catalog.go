// Package faults resolves fault type names to error constructors. Lookup is
// two-tier: constructors registered by the host application under a full
// path are consulted first, then the builtin catalog by name.
package faults

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"sort"
	"strings"
	"sync"
)

// ErrUnknownType is returned when a fault type resolves in neither tier.
var ErrUnknownType = errors.New("unknown fault type")

// Builtin fault sentinels. Injected faults unwrap to these, so host
// applications match them with errors.Is.
var (
	ErrKey        = errors.New("KeyError")
	ErrOS         = errors.New("OSError")
	ErrValue      = errors.New("ValueError")
	ErrRuntime    = errors.New("RuntimeError")
	ErrTimeout    = errors.New("TimeoutError")
	ErrConnection = errors.New("ConnectionError")
	ErrPermission = errors.New("PermissionError")
	ErrException  = errors.New("Exception")
)

var builtins = map[string]error{
	"KeyError":        ErrKey,
	"OSError":         ErrOS,
	"IOError":         ErrOS,
	"ValueError":      ErrValue,
	"RuntimeError":    ErrRuntime,
	"TimeoutError":    ErrTimeout,
	"ConnectionError": ErrConnection,
	"PermissionError": ErrPermission,
	"Exception":       ErrException,

	"EOF":              io.EOF,
	"UnexpectedEOF":    io.ErrUnexpectedEOF,
	"DeadlineExceeded": context.DeadlineExceeded,
	"Canceled":         context.Canceled,
	"ErrNotExist":      fs.ErrNotExist,
	"ErrPermission":    fs.ErrPermission,
	"ErrClosed":        net.ErrClosed,
}

// Constructor builds the error an injected fault returns.
type Constructor func(args ...string) error

// Error is the error produced by a builtin fault type.
type Error struct {
	Type string
	Args []string

	base error
}

func (e *Error) Error() string {
	if len(e.Args) == 0 {
		return e.Type
	}
	return e.Type + ": " + strings.Join(e.Args, ", ")
}

// Unwrap returns the builtin sentinel for errors.Is compatibility.
func (e *Error) Unwrap() error {
	return e.base
}

// Catalog holds user-registered fault constructors. It is safe for
// concurrent use.
type Catalog struct {
	mu   sync.RWMutex
	user map[string]Constructor
}

// NewCatalog creates a catalog with no user-registered types.
func NewCatalog() *Catalog {
	return &Catalog{user: make(map[string]Constructor)}
}

// Default is the process-wide catalog used when none is configured.
var Default = NewCatalog()

// Register adds a constructor under path, replacing any previous one.
func (c *Catalog) Register(path string, ctor Constructor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.user[path] = ctor
}

// RegisterError registers a constructor that wraps sentinel, so injected
// faults satisfy errors.Is(err, sentinel).
func (c *Catalog) RegisterError(path string, sentinel error) {
	c.Register(path, func(args ...string) error {
		if len(args) == 0 {
			return sentinel
		}
		return fmt.Errorf("%w: %s", sentinel, strings.Join(args, ", "))
	})
}

// Resolve looks name up in the user tier, then the builtin tier.
func (c *Catalog) Resolve(name string) (Constructor, error) {
	name = strings.TrimSpace(name)

	c.mu.RLock()
	ctor, ok := c.user[name]
	c.mu.RUnlock()
	if ok {
		return ctor, nil
	}

	base, ok := builtins[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, name)
	}
	return func(args ...string) error {
		return &Error{Type: name, Args: args, base: base}
	}, nil
}

// Names returns every resolvable name, user entries first, each group sorted.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	user := make([]string, 0, len(c.user))
	for name := range c.user {
		user = append(user, name)
	}
	c.mu.RUnlock()
	sort.Strings(user)

	builtin := make([]string, 0, len(builtins))
	for name := range builtins {
		builtin = append(builtin, name)
	}
	sort.Strings(builtin)

	return append(user, builtin...)
}

// DefaultMessage is the single argument a fault gets when none are scripted.
func DefaultMessage(faultType string) []string {
	return []string{"injected " + faultType}
}
