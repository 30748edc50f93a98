package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/urbanroots/plantsite/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List persisted scoring runs",
	RunE:  runRuns,
}

func init() {
	runsCmd.Flags().Int("limit", 20, "maximum number of runs to list")
	rootCmd.AddCommand(runsCmd)
}

func runRuns(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	limit, _ := cmd.Flags().GetInt("limit")

	st, err := store.NewSQLite(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	if err := st.Migrate(ctx); err != nil {
		return err
	}

	runs, err := st.ListRuns(ctx, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return nil
	}

	fmt.Printf("%-36s %-20s %-9s %6s %8s %10s\n",
		"ID", "Created", "Status", "EPSG", "Cells", "Top Score")
	for _, r := range runs {
		fmt.Printf("%-36s %-20s %-9s %6d %8d %10.4f\n",
			r.ID, r.CreatedAt.Format("2006-01-02 15:04:05"), r.Status,
			r.TargetEPSG, r.CellCount, r.TopScore)
	}
	return nil
}
