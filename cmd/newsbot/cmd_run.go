package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dafidxcode/tehsainesia/internal/scheduler"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a cycle now and then on every interval until stopped",
	RunE:  runRun,
}

func runRun(cmd *cobra.Command, _ []string) error {
	a, err := newApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		select {
		case sig := <-sigCh:
			a.logger.Info("received shutdown signal", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	svc, err := a.cycleService(ctx)
	if err != nil {
		a.logger.Error("failed to start news bot", "error", err)
		return err
	}

	a.logger.Info("starting news bot",
		"interval", a.cfg.Cycle.Interval,
		"max_posts", a.cfg.Cycle.MaxPosts,
		"dedup_backend", a.cfg.Dedup.Backend,
		"events", a.cfg.RabbitMQ.Enabled,
	)

	sched := scheduler.NewScheduler(svc, a.cfg.Cycle.Interval, a.logger)
	if err := sched.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Error("scheduler error", "error", err)
		return err
	}
	return nil
}
