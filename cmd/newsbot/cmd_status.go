package main

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/dafidxcode/tehsainesia/internal/status"
	"github.com/dafidxcode/tehsainesia/internal/storage/postgres"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report bot liveness from the event log and the size of the dedup set",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, _ []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	store, _, err := a.fingerprintStore(ctx)
	if err != nil {
		return err
	}

	r := status.Inspect(ctx, a.cfg.LogFile, store, a.cfg.Cycle.StaleAfter, time.Now())

	t := newTable(cmd)
	t.SetTitle("Science and Technology News Bot Status")
	switch {
	case !r.LogFound:
		t.AppendRow(table.Row{"Event log", "No log file found. Bot may not have run yet."})
	case r.LastLine != "":
		t.AppendRow(table.Row{"Last log entry", r.LastLine})
	}
	switch {
	case r.LogFound && r.LogErr != nil:
		t.AppendRow(table.Row{"Activity", fmt.Sprintf("Could not read log timestamp: %v", r.LogErr)})
	case r.Stale:
		t.AppendRow(table.Row{"Time since last activity", r.Idle.Round(time.Second)})
		t.AppendRow(table.Row{"Activity", fmt.Sprintf("WARNING: Bot may be inactive. Last activity was more than %s ago.", a.cfg.Cycle.StaleAfter)})
	case r.LogFound:
		t.AppendRow(table.Row{"Time since last activity", r.Idle.Round(time.Second)})
		t.AppendRow(table.Row{"Activity", "Bot appears to be active."})
	}
	if r.FingerprintsErr != nil {
		t.AppendRow(table.Row{"Processed articles", fmt.Sprintf("unavailable: %v", r.FingerprintsErr)})
	} else {
		t.AppendRow(table.Row{"Processed articles", r.Fingerprints})
	}

	history, err := a.cycleHistory(ctx)
	if err != nil {
		return err
	}
	if history != nil {
		state, err := history.Get(ctx)
		if err != nil {
			t.AppendRow(table.Row{"Last cycle", fmt.Sprintf("unavailable: %v", err)})
		} else {
			t.AppendRows(cycleRows(state))
		}
	}
	t.Render()

	return nil
}

func cycleRows(state *postgres.CycleState) []table.Row {
	if state.LastCycleAt.IsZero() {
		return []table.Row{{"Last cycle", "No cycle recorded yet."}}
	}
	return []table.Row{
		{"Last cycle", state.LastCycleAt.Local().Format(time.DateTime)},
		{"Published last cycle", state.LastPublished},
		{"Failed last cycle", state.LastFailed},
		{"Total published", state.TotalPublished},
	}
}
