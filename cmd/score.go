package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/urbanroots/plantsite/internal/config"
	"github.com/urbanroots/plantsite/internal/pipeline"
	"github.com/urbanroots/plantsite/internal/store"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Run the suitability scoring pipeline",
	Long: `Run one full scoring pass over the configured layers.

The pipeline loads the input layers, reprojects everything into the working
CRS, buffers and unions the exclusion layers (buildings and roads, plus fire
zones when a fire-zone buffer is configured),
subtracts them from the eligible green/open areas, overlays a regular grid,
scores each cell by the configured weighted features, and exports the scored
grid plus the top-N candidate points.

Examples:
  # Full run with config.yaml defaults
  plantsite score

  # Coarser grid, more suggestions, spreadsheet for review
  plantsite score --cell-size 25 --top-n 200 --top-format xlsx

  # Keep the run out of the local store
  plantsite score --no-save`,
	RunE: runScore,
}

func init() {
	f := scoreCmd.Flags()
	f.Float64("cell-size", 0, "grid cell size in CRS units (overrides config)")
	f.Int("top-n", -1, "number of top candidates to export (overrides config)")
	f.String("top-format", "", "top-N output format: geojson, shapefile, or xlsx")
	f.String("out", "", "output directory (overrides config)")
	f.Int("workers", 0, "parallel feature-computation workers (overrides config)")
	f.Bool("no-save", false, "skip persisting the run to the local store")

	rootCmd.AddCommand(scoreCmd)
}

func runScore(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	applyScoreOverrides(cmd, cfg)

	var st store.Store
	noSave, _ := cmd.Flags().GetBool("no-save")
	if !noSave {
		s, err := store.NewSQLite(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()
		st = s
	}

	res, err := pipeline.Run(ctx, cfg, st)
	if err != nil {
		return eris.Wrap(err, "score: pipeline run")
	}

	printRunSummary(res)
	return nil
}

// applyScoreOverrides applies CLI flag overrides onto the loaded config.
func applyScoreOverrides(cmd *cobra.Command, c *config.Config) {
	if v, _ := cmd.Flags().GetFloat64("cell-size"); v > 0 {
		c.Pipeline.CellSize = v
	}
	if v, _ := cmd.Flags().GetInt("top-n"); v >= 0 {
		c.Pipeline.TopN = v
	}
	if v, _ := cmd.Flags().GetString("top-format"); v != "" {
		c.Export.TopFormat = v
	}
	if v, _ := cmd.Flags().GetString("out"); v != "" {
		c.Export.Dir = v
	}
	if v, _ := cmd.Flags().GetInt("workers"); v > 0 {
		c.Pipeline.Workers = v
	}
}

func printRunSummary(res *pipeline.Result) {
	if res.Empty {
		fmt.Println("Candidate area is empty: no plantable cells after exclusions.")
	}
	fmt.Printf("Run:        %s\n", res.RunID)
	fmt.Printf("Cells:      %d\n", len(res.Cells))
	fmt.Printf("Top-N:      %d\n", len(res.Top))
	if len(res.Cells) > 0 {
		fmt.Printf("Best score: %.4f (row %d, col %d)\n",
			res.Cells[0].Score, res.Cells[0].Row, res.Cells[0].Col)
	}
	for _, out := range res.Outputs {
		fmt.Printf("Wrote:      %s\n", out)
	}

	zap.L().Info("score: run finished",
		zap.String("run_id", res.RunID),
		zap.Int("cells", len(res.Cells)),
		zap.Bool("empty", res.Empty),
	)
}
