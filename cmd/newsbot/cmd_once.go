package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Run exactly one publishing cycle and exit",
	RunE:  runOnce,
}

func runOnce(cmd *cobra.Command, _ []string) error {
	a, err := newApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := a.cycleService(ctx)
	if err != nil {
		return err
	}

	stats, err := svc.Run(ctx)
	if stats != nil {
		t := newTable(cmd)
		t.AppendHeader(table.Row{"Fetched", "Invalid", "Duplicates", "Failed", "Published", "Trimmed", "Duration"})
		t.AppendRow(table.Row{stats.Fetched, stats.Invalid, stats.Duplicates, stats.Failed, stats.Published, stats.Trimmed, stats.Duration.Round(time.Millisecond)})
		t.Render()
	}
	if err != nil && errors.Is(ctx.Err(), context.Canceled) {
		return nil
	}
	return err
}
