package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/garyjia/expense-approval/internal/container"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and background workers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadRuntime()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		c, err := container.NewContainer(cfg.ToContainerConfig(), logger)
		if err != nil {
			return err
		}
		if err := c.Start(ctx); err != nil {
			return fmt.Errorf("failed to start: %w", err)
		}
		defer func() {
			if err := c.Close(); err != nil {
				logger.Error("Shutdown finished with errors", zap.Error(err))
			}
		}()

		logger.Info("Expense approval service started",
			zap.String("address", c.Server().Address()),
			zap.String("org_chart", cfg.OrgChart.Provider))

		// Start blocks until the signal context is cancelled, then drains the listener
		if err := c.Server().Start(ctx); err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		logger.Info("Shutting down")
		return nil
	},
}
