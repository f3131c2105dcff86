package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/seantiz/faultline/internal/api"
	"github.com/seantiz/faultline/internal/engine"
	"github.com/seantiz/faultline/internal/store"
)

func (c *cli) newServeCmd() *cobra.Command {
	var addr, dbPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the scenario run API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := c.cfg
			if cmd.Flags().Changed("addr") {
				cfg.ListenAddr = addr
			}
			if cmd.Flags().Changed("db") {
				cfg.DBPath = dbPath
			}

			logger := c.logger()
			logger.Info("faultline: starting",
				"listen_addr", cfg.ListenAddr,
				"db_path", cfg.DBPath,
				"message_deadline", cfg.MessageDeadline.String(),
				"max_concurrent_runs", cfg.MaxConcurrentRuns,
			)

			db, err := store.NewSQLiteStore(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()

			reg := c.registry(logger)
			eng := engine.NewEngine(db, reg, logger,
				engine.WithDeadline(cfg.MessageDeadline),
				engine.WithMaxConcurrent(cfg.MaxConcurrentRuns),
			)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := api.NewServer(cfg.ListenAddr, db, reg, eng, logger)
			return srv.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from FAULTLINE_LISTEN_ADDR)")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path (default from FAULTLINE_DB_PATH)")
	return cmd
}
