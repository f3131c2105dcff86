// Package chaostest runs scenarios as Go tests: one subtest per act, each
// passing only if its act succeeded.
//
//	func TestChaos(t *testing.T) {
//		reg := entrypoint.NewRegistry()
//		demoapp.Register(reg, nil)
//		chaostest.RunDir(t, reg, "testdata")
//	}
package chaostest

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/seantiz/faultline/internal/chaosfile"
	"github.com/seantiz/faultline/internal/entrypoint"
	"github.com/seantiz/faultline/internal/model"
	"github.com/seantiz/faultline/internal/scenario"
)

// ErrActFailed is wrapped by Check for acts that did not succeed.
var ErrActFailed = errors.New("act failed")

// Check returns nil if the named act succeeded. The scenario runs on the
// first call only.
func Check(ctx context.Context, sc *scenario.Scenario, act string) error {
	v, err := sc.RunTest(ctx, act)
	if err != nil {
		return err
	}
	if v == model.VerdictSuccess {
		return nil
	}
	return fmt.Errorf("%w: %s: %s", ErrActFailed, act, scenario.VerdictMessage(v))
}

// Run creates one subtest per act of sc.
func Run(t *testing.T, sc *scenario.Scenario) {
	t.Helper()
	for _, name := range sc.ActNames() {
		t.Run(name, func(t *testing.T) {
			err := Check(t.Context(), sc, name)
			switch {
			case err == nil:
			case errors.Is(err, ErrActFailed):
				t.Error(err)
			default:
				t.Fatal(err)
			}
		})
	}
}

// RunFile loads a chaos file, builds its scenario against reg and runs it.
func RunFile(t *testing.T, reg *entrypoint.Registry, path string, opts ...scenario.Option) {
	t.Helper()
	doc, err := chaosfile.Load(path)
	if err != nil {
		t.Fatalf("load %s: %v", path, err)
	}
	sc, err := doc.Build(reg, opts...)
	if err != nil {
		t.Fatalf("build %s: %v", path, err)
	}
	Run(t, sc)
}

// RunDir runs every chaos file under dir as its own subtest.
func RunDir(t *testing.T, reg *entrypoint.Registry, dir string, opts ...scenario.Option) {
	t.Helper()
	files, err := chaosfile.Discover(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) == 0 {
		t.Skipf("no chaos files under %s", dir)
	}
	for _, f := range files {
		name := strings.TrimSuffix(filepath.Base(f), filepath.Ext(f))
		t.Run(name, func(t *testing.T) {
			RunFile(t, reg, f, opts...)
		})
	}
}
