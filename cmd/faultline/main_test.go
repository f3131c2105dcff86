package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/seantiz/faultline/internal/demoapp"
	"github.com/seantiz/faultline/internal/model"
	"github.com/seantiz/faultline/internal/scenario"
)

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := execute(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, exitOK},
		{"acts failed", errActsFailed, exitFailed},
		{"configuration", scenario.NewConfigurationError("bad", nil), exitConfig},
		{"resolution", scenario.NewResolutionError("missing", nil), exitConfig},
		{"wrapped", &reportedError{err: fmt.Errorf("run: %w", scenario.NewResolutionError("x", nil))}, exitConfig},
		{"other", errors.New("boom"), exitFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestRunPassingFile(t *testing.T) {
	code, out, _ := runCLI(t, "run", "testdata/chaos_pass.toml")
	if code != exitOK {
		t.Fatalf("exit = %d, want 0; output:\n%s", code, out)
	}
	if !strings.HasPrefix(out, "PASS  testdata/chaos_pass.toml (2 acts") {
		t.Errorf("output = %q", out)
	}
}

func TestRunFailingFile(t *testing.T) {
	code, out, _ := runCLI(t, "run", "testdata/chaos_fail.yaml")
	if code != exitFailed {
		t.Fatalf("exit = %d, want 1; output:\n%s", code, out)
	}
	for _, want := range []string{
		"FAIL  testdata/chaos_fail.yaml: failure (" + scenario.ReasonWorkerExit + ")",
		"act-0 failure: " + scenario.MessageNotCompleted,
		"act-1 undefined: " + scenario.MessageNotReached,
		"disk unplugged",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRunConstructionErrors(t *testing.T) {
	code, out, _ := runCLI(t, "run", "testdata/bad")
	if code != exitConfig {
		t.Fatalf("exit = %d, want 2; output:\n%s", code, out)
	}
	if n := strings.Count(out, "ERROR "); n != 2 {
		t.Errorf("ERROR lines = %d, want 2:\n%s", n, out)
	}
}

func TestRunJSONParallel(t *testing.T) {
	code, out, _ := runCLI(t, "run", "--json", "--parallel", "3", "--deadline", "2s",
		"testdata/chaos_pass.toml", "testdata/chaos_fail.yaml", "testdata/bad/chaos_unknown_site.yml")
	if code != exitConfig {
		t.Errorf("exit = %d, want 2", code)
	}

	var results []fileResult
	if err := json.Unmarshal([]byte(out), &results); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if len(results) != 3 {
		t.Fatalf("len(results) = %d, want 3", len(results))
	}
	// Results keep argument order regardless of completion order.
	if results[0].Verdict != model.VerdictCompleted || results[0].Status != model.StatusCompleted {
		t.Errorf("pass: %s/%s, want completed/completed", results[0].Status, results[0].Verdict)
	}
	if results[1].Verdict != model.VerdictFailure || results[1].Report == nil {
		t.Errorf("fail: verdict %q report %v", results[1].Verdict, results[1].Report)
	}
	if results[2].Code != string(scenario.KindResolution) {
		t.Errorf("unknown site: code = %q, want %q", results[2].Code, scenario.KindResolution)
	}
}

func TestRunMissingPath(t *testing.T) {
	code, _, errOut := runCLI(t, "run", "testdata/nope.toml")
	if code != exitFailed {
		t.Errorf("exit = %d, want 1", code)
	}
	if !strings.Contains(errOut, "faultline: stat testdata/nope.toml") {
		t.Errorf("stderr = %q", errOut)
	}
}

func TestValidate(t *testing.T) {
	code, out, _ := runCLI(t, "validate", "testdata/chaos_pass.toml", "testdata/chaos_fail.yaml")
	if code != exitOK {
		t.Fatalf("exit = %d, want 0; output:\n%s", code, out)
	}
	if strings.Count(out, "OK    ") != 2 {
		t.Errorf("output = %q", out)
	}

	code, out, _ = runCLI(t, "validate", "testdata")
	if code != exitConfig {
		t.Errorf("exit = %d, want 2; output:\n%s", code, out)
	}
}

func TestList(t *testing.T) {
	code, out, _ := runCLI(t, "list")
	if code != exitOK {
		t.Fatalf("exit = %d, want 0", code)
	}
	for _, want := range []string{demoapp.EntryPoint, "- " + demoapp.GetData, "- " + demoapp.ProcessData, "fault types:", "KeyError"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
