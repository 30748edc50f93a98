package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/urbanroots/plantsite/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "plantsite",
	Short: "Tree-planting suitability scoring pipeline",
	Long:  "Scores candidate tree-planting locations from municipal GIS layers: buffers exclusion geometries, subtracts them from green and open areas, grids the remainder, and ranks cells by a configurable weighted suitability score.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "cmd: load config")
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "cmd: init logger")
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
