package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/urbanroots/plantsite/internal/config"
	"github.com/urbanroots/plantsite/internal/layer"
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Print a CRS and feature-count summary of the configured layers",
	Long: `Check the configured input layers before a run: which exist, what CRS
each declares, and how many features load after reprojection.`,
	RunE: runSummary,
}

func init() {
	summaryCmd.Flags().Bool("counts", false, "also load each layer and report feature counts")
	rootCmd.AddCommand(summaryCmd)
}

func runSummary(cmd *cobra.Command, _ []string) error {
	counts, _ := cmd.Flags().GetBool("counts")

	layers := []struct {
		name string
		lc   config.LayerConfig
	}{
		{"trees", cfg.Layers.Trees},
		{"buildings", cfg.Layers.Buildings},
		{"roads", cfg.Layers.Roads},
		{"fire_zones", cfg.Layers.FireZones},
		{"greens", cfg.Layers.Greens},
	}
	for i, lc := range cfg.Layers.Eligible {
		layers = append(layers, struct {
			name string
			lc   config.LayerConfig
		}{fmt.Sprintf("eligible[%d]", i), lc})
	}

	for _, entry := range layers {
		if entry.lc.Path == "" {
			fmt.Printf("%-14s not configured\n", entry.name+":")
			continue
		}
		if _, err := os.Stat(entry.lc.Path); err != nil {
			fmt.Printf("%-14s missing (%s)\n", entry.name+":", entry.lc.Path)
			continue
		}

		epsg, err := layer.DeclaredEPSG(entry.lc.Path)
		if err != nil {
			fmt.Printf("%-14s unsupported format (%s)\n", entry.name+":", entry.lc.Path)
			continue
		}
		crsDesc := fmt.Sprintf("EPSG:%d", epsg)
		if epsg == 0 {
			crsDesc = "no declared CRS"
			if entry.lc.AssumeEPSG != 0 {
				crsDesc = fmt.Sprintf("no declared CRS (assuming EPSG:%d)", entry.lc.AssumeEPSG)
			}
		}

		if !counts {
			fmt.Printf("%-14s %s | %s\n", entry.name+":", crsDesc, entry.lc.Path)
			continue
		}

		l, err := layer.Load(entry.lc.Path, entry.name, layer.Options{
			TargetEPSG: cfg.Pipeline.TargetEPSG,
			AssumeEPSG: entry.lc.AssumeEPSG,
		})
		if err != nil {
			fmt.Printf("%-14s %s | load failed: %v\n", entry.name+":", crsDesc, err)
			continue
		}
		fmt.Printf("%-14s %s | %d features | %s\n", entry.name+":", crsDesc, len(l.Features), entry.lc.Path)
	}

	return nil
}
