package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/seantiz/faultline/internal/chaosfile"
	"github.com/seantiz/faultline/internal/engine"
	"github.com/seantiz/faultline/internal/model"
	"github.com/seantiz/faultline/internal/scenario"
	"github.com/seantiz/faultline/internal/store"
)

// fileResult is the outcome of running one scenario file.
type fileResult struct {
	File    string           `json:"file"`
	RunID   string           `json:"run_id,omitempty"`
	Status  string           `json:"status"`
	Verdict model.Verdict    `json:"verdict"`
	Code    string           `json:"code,omitempty"`
	Error   string           `json:"error,omitempty"`
	Report  *scenario.Report `json:"report,omitempty"`

	err error
}

type runOptions struct {
	deadline time.Duration
	json     bool
	parallel int
}

func (c *cli) newRunCmd() *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run FILE|DIR...",
		Short: "Run scenario files and report per-act verdicts",
		Long: `Run executes each scenario file against the entry points built into
this binary. Directories are searched for chaos_*.toml, chaos_*.yaml and
chaos_*.yml files.

Exit status is 0 when every act passed, 1 when any act failed and 2 when
a scenario could not be constructed.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd.Context(), args, opts)
		},
	}
	cmd.Flags().DurationVar(&opts.deadline, "deadline", 0, "per-message deadline (default from FAULTLINE_MESSAGE_DEADLINE)")
	cmd.Flags().BoolVar(&opts.json, "json", false, "print results as JSON")
	cmd.Flags().IntVar(&opts.parallel, "parallel", 1, "number of files run at once")
	return cmd
}

func (c *cli) run(ctx context.Context, args []string, opts runOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	files, err := expandPaths(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no scenario files found in %v", args)
	}
	if opts.deadline <= 0 {
		opts.deadline = c.cfg.MessageDeadline
	}
	if opts.parallel <= 0 {
		opts.parallel = 1
	}

	db, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	logger := c.logger()
	eng := engine.NewEngine(db, c.registry(logger), logger,
		engine.WithDeadline(opts.deadline),
		engine.WithMaxConcurrent(opts.parallel),
	)

	results := make([]fileResult, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.parallel)
	for i, path := range files {
		g.Go(func() error {
			results[i] = runFile(gctx, eng, path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if opts.json {
		enc := json.NewEncoder(c.stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			return fmt.Errorf("encode results: %w", err)
		}
	} else {
		for _, r := range results {
			printResult(c, r)
		}
	}
	return worst(results)
}

func runFile(ctx context.Context, eng *engine.Engine, path string) fileResult {
	res := fileResult{File: path, Status: model.StatusFailed, Verdict: model.VerdictUndefined}

	format, err := chaosfile.FormatFromPath(path)
	if err != nil {
		return res.fail(scenario.NewConfigurationError("unsupported scenario file", err))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return res.fail(fmt.Errorf("read %s: %w", path, err))
	}

	run, report, err := eng.Execute(ctx, engine.Request{
		Name:     strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Format:   format,
		Document: string(data),
	})
	if run != nil {
		res.RunID = run.ID
		res.Status = run.Status
		res.Verdict = run.Verdict
	}
	res.Report = report
	if err != nil {
		return res.fail(err)
	}
	if report != nil && !report.Passed() {
		res.err = errActsFailed
	}
	return res
}

func (r fileResult) fail(err error) fileResult {
	r.err = err
	r.Error = err.Error()
	r.Code = string(scenario.KindOf(err))
	if r.Verdict == model.VerdictUndefined {
		r.Verdict = model.VerdictFailure
	}
	return r
}

func printResult(c *cli, r fileResult) {
	switch {
	case r.err == nil:
		fmt.Fprintf(c.stdout, "PASS  %s (%d acts, %s)\n", r.File, len(r.Report.Acts), r.Report.Duration.Round(time.Millisecond))
	case r.Report == nil:
		fmt.Fprintf(c.stdout, "ERROR %s: %s\n", r.File, r.Error)
	default:
		fmt.Fprintf(c.stdout, "FAIL  %s: %s", r.File, r.Report.Status)
		if r.Report.Reason != "" {
			fmt.Fprintf(c.stdout, " (%s)", r.Report.Reason)
		}
		fmt.Fprintln(c.stdout)
		for _, a := range r.Report.Acts {
			if a.Verdict == model.VerdictSuccess {
				fmt.Fprintf(c.stdout, "  %s %s\n", a.Name, a.Verdict)
				continue
			}
			fmt.Fprintf(c.stdout, "  %s %s: %s\n", a.Name, a.Verdict, a.Message)
		}
		if r.Report.Worker != "" {
			fmt.Fprintf(c.stdout, "  worker: %s\n", r.Report.Worker)
		}
		if r.Error != "" {
			fmt.Fprintf(c.stdout, "  error: %s\n", r.Error)
		}
	}
}

// worst returns the result error with the highest exit code.
func worst(results []fileResult) error {
	var out error
	for _, r := range results {
		if r.err != nil && (out == nil || ExitCode(r.err) > ExitCode(out)) {
			out = r.err
		}
	}
	if out == nil {
		return nil
	}
	return &reportedError{err: out}
}

// expandPaths replaces directories with the scenario files they contain.
func expandPaths(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		found, err := chaosfile.Discover(arg)
		if err != nil {
			return nil, err
		}
		files = append(files, found...)
	}
	return files, nil
}
