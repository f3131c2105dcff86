package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/seantiz/faultline/internal/config"
	"github.com/seantiz/faultline/internal/demoapp"
	"github.com/seantiz/faultline/internal/entrypoint"
	"github.com/seantiz/faultline/internal/scenario"
)

// Exit codes.
const (
	exitOK     = 0
	exitFailed = 1
	exitConfig = 2
)

// errActsFailed marks a run whose scenario finished without every act
// succeeding.
var errActsFailed = errors.New("one or more acts failed")

// reportedError wraps an error whose details were already printed.
type reportedError struct{ err error }

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }

func isReported(err error) bool {
	var r *reportedError
	return errors.As(err, &r)
}

// ExitCode maps a command error to the process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, scenario.ErrConfiguration), errors.Is(err, scenario.ErrResolution):
		return exitConfig
	default:
		return exitFailed
	}
}

func printErr(w io.Writer, err error) {
	fmt.Fprintf(w, "faultline: %v\n", err)
}

// cli carries the state shared by every subcommand.
type cli struct {
	stdout   io.Writer
	stderr   io.Writer
	logLevel string
	cfg      config.Config
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	c := &cli{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:           "faultline",
		Short:         "Fault-injection scenarios for call-site interception",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("log-level") {
				cfg.RawLogLevel = c.logLevel
				cfg.LogLevel = config.ParseLogLevel(c.logLevel)
			}
			c.cfg = cfg
			return nil
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(
		c.newRunCmd(),
		c.newValidateCmd(),
		c.newListCmd(),
		c.newServeCmd(),
	)
	return root
}

func (c *cli) logger() *slog.Logger {
	return config.NewLogger(c.stderr, c.cfg.LogLevel)
}

// registry returns the entry points built into this binary.
func (c *cli) registry(logger *slog.Logger) *entrypoint.Registry {
	reg := entrypoint.NewRegistry()
	demoapp.Register(reg, logger)
	return reg
}
