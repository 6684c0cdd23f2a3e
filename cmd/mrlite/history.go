package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrlite/mrlite/pkg/history"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past job runs",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().String("data-dir", defaultDataDir(), "Directory holding the job history ledger")
	historyCmd.Flags().Int("limit", 20, "Maximum number of runs to show")
}

func runHistory(cmd *cobra.Command, args []string) error {
	dataDir, _ := cmd.Flags().GetString("data-dir")
	limit, _ := cmd.Flags().GetInt("limit")

	store, err := history.Open(dataDir)
	if err != nil {
		return fmt.Errorf("failed to open history ledger: %w", err)
	}
	defer store.Close()

	records, err := store.List()
	if err != nil {
		return err
	}
	if len(records) > limit {
		records = records[:limit]
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "IDENTITY\tMODE\tMAPPERS\tREDUCERS\tOUTCOME\tSTARTED\tELAPSED")
	for _, rec := range records {
		outcome := string(rec.Phase)
		if rec.Error != "" {
			outcome = fmt.Sprintf("%s (%s)", outcome, rec.Error)
		}
		elapsed := "-"
		if !rec.FinishedAt.IsZero() {
			elapsed = rec.FinishedAt.Sub(rec.StartedAt).Round(time.Second).String()
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\t%s\n",
			rec.Identity, rec.Mode, rec.NumMapWorkers, rec.NumReduceWorkers,
			outcome, rec.StartedAt.Format("2006-01-02 15:04:05"), elapsed)
	}
	return w.Flush()
}
