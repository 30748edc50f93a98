package export

import (
	"os"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Manifest records what one scoring run produced, written next to the
// exported artifacts so a result directory is self-describing.
type Manifest struct {
	RunID      string             `yaml:"run_id"`
	CreatedAt  time.Time          `yaml:"created_at"`
	TargetEPSG int                `yaml:"target_epsg"`
	CellSize   float64            `yaml:"cell_size"`
	CellCount  int                `yaml:"cell_count"`
	TopN       int                `yaml:"top_n"`
	Weights    map[string]float64 `yaml:"weights"`
	Outputs    []string           `yaml:"outputs"`
}

// WriteManifest writes the run manifest as YAML.
func WriteManifest(path string, m Manifest) error {
	data, err := yaml.Marshal(&m)
	if err != nil {
		return eris.Wrap(err, "export: marshal manifest")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "export: write manifest %s", path)
	}
	return nil
}
