// Package config loads and validates the plantsite pipeline configuration.
package config

import (
	"math"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ErrInvalid marks a fatal configuration error. It is surfaced before any
// geometric work begins; no partial output is produced.
var ErrInvalid = eris.New("config: invalid configuration")

// Feature names used by the grid scorer. Weight and saturation maps are keyed
// by these.
const (
	FeatureTreeDistance = "tree_distance"
	FeatureRoadDistance = "road_distance"
	FeatureLandUse      = "land_use"
	FeatureGreenClass   = "green_class"
	FeatureFireFlag     = "fire_restriction"
)

// KnownFeatures lists every feature name the scorer can compute.
var KnownFeatures = []string{
	FeatureTreeDistance,
	FeatureRoadDistance,
	FeatureLandUse,
	FeatureGreenClass,
	FeatureFireFlag,
}

// Cell retention modes for the grid generator.
const (
	CellTestCentroid  = "centroid"
	CellTestFootprint = "footprint"
)

// Normalization policies.
const (
	NormLinear      = "linear"
	NormExponential = "exponential"
)

// Config holds the full application configuration.
type Config struct {
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`
	Layers   LayersConfig   `yaml:"layers" mapstructure:"layers"`
	Scoring  ScoringConfig  `yaml:"scoring" mapstructure:"scoring"`
	Export   ExportConfig   `yaml:"export" mapstructure:"export"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// PipelineConfig configures grid generation and run behavior.
type PipelineConfig struct {
	TargetEPSG int     `yaml:"target_epsg" mapstructure:"target_epsg"`
	CellSize   float64 `yaml:"cell_size" mapstructure:"cell_size"`
	CellTest   string  `yaml:"cell_test" mapstructure:"cell_test"`
	TopN       int     `yaml:"top_n" mapstructure:"top_n"`
	Tolerance  float64 `yaml:"tolerance" mapstructure:"tolerance"`
	Workers    int     `yaml:"workers" mapstructure:"workers"`
	MaxTrees   int     `yaml:"max_trees" mapstructure:"max_trees"`
}

// LayerConfig points at one input dataset. Buffer is required for the
// exclusion layers (buildings, roads) and must be set explicitly; there is no
// implicit default because downstream scoring correctness depends on it. A
// fire-zone buffer is optional: without one the zone only sets the per-cell
// restriction flag, with one it is additionally carved out of the candidate
// area.
type LayerConfig struct {
	Path       string   `yaml:"path" mapstructure:"path"`
	AssumeEPSG int      `yaml:"assume_epsg" mapstructure:"assume_epsg"`
	Buffer     *float64 `yaml:"buffer" mapstructure:"buffer"`
	ClassField string   `yaml:"class_field" mapstructure:"class_field"`
}

// LayersConfig names every input layer of the pipeline.
type LayersConfig struct {
	Trees     LayerConfig   `yaml:"trees" mapstructure:"trees"`
	Buildings LayerConfig   `yaml:"buildings" mapstructure:"buildings"`
	Roads     LayerConfig   `yaml:"roads" mapstructure:"roads"`
	FireZones LayerConfig   `yaml:"fire_zones" mapstructure:"fire_zones"`
	Greens    LayerConfig   `yaml:"greens" mapstructure:"greens"`
	Eligible  []LayerConfig `yaml:"eligible" mapstructure:"eligible"`
}

// ScoringConfig holds the weighting and normalization policy. Weights and
// saturation distances are keyed by feature name.
type ScoringConfig struct {
	Normalization string             `yaml:"normalization" mapstructure:"normalization"`
	Weights       map[string]float64 `yaml:"weights" mapstructure:"weights"`
	Saturation    map[string]float64 `yaml:"saturation" mapstructure:"saturation"`
	LandUseScores map[string]float64 `yaml:"land_use_scores" mapstructure:"land_use_scores"`
}

// ExportConfig configures the serializer outputs.
type ExportConfig struct {
	Dir       string `yaml:"dir" mapstructure:"dir"`
	TopFormat string `yaml:"top_format" mapstructure:"top_format"`
	WGS84     bool   `yaml:"wgs84" mapstructure:"wgs84"`
	Raster    bool   `yaml:"raster" mapstructure:"raster"`
	Manifest  bool   `yaml:"manifest" mapstructure:"manifest"`
}

// StoreConfig configures the local run store.
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PLANTSITE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("pipeline.target_epsg", 25832)
	v.SetDefault("pipeline.cell_test", CellTestCentroid)
	v.SetDefault("pipeline.top_n", 50)
	v.SetDefault("pipeline.tolerance", 0.01)
	v.SetDefault("pipeline.workers", 1)
	v.SetDefault("scoring.normalization", NormLinear)
	v.SetDefault("export.dir", "out")
	v.SetDefault("export.top_format", "geojson")
	v.SetDefault("export.manifest", true)
	v.SetDefault("store.path", "plantsite.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the configuration surface the pipeline depends on. It runs
// before any layer is opened so that configuration errors are fatal and
// immediate.
func (c *Config) Validate() error {
	var errs []string

	switch c.Pipeline.TargetEPSG {
	case 4326, 25832, 25833, 32632, 32633:
	default:
		errs = append(errs, "pipeline.target_epsg is not a supported EPSG code")
	}

	if c.Pipeline.CellSize <= 0 {
		errs = append(errs, "pipeline.cell_size must be > 0")
	}
	if c.Pipeline.CellTest != CellTestCentroid && c.Pipeline.CellTest != CellTestFootprint {
		errs = append(errs, "pipeline.cell_test must be centroid or footprint")
	}
	if c.Pipeline.TopN < 0 {
		errs = append(errs, "pipeline.top_n must be >= 0")
	}
	if c.Pipeline.Tolerance <= 0 {
		errs = append(errs, "pipeline.tolerance must be > 0")
	}
	if c.Pipeline.Workers < 0 {
		errs = append(errs, "pipeline.workers must be >= 0")
	}

	// Exclusion layers require an explicit buffer distance.
	for _, lc := range []struct {
		name  string
		layer LayerConfig
	}{
		{"buildings", c.Layers.Buildings},
		{"roads", c.Layers.Roads},
	} {
		if lc.layer.Path == "" {
			continue
		}
		if lc.layer.Buffer == nil {
			errs = append(errs, "layers."+lc.name+".buffer is required")
		} else if *lc.layer.Buffer < 0 {
			errs = append(errs, "layers."+lc.name+".buffer must be >= 0")
		}
	}
	// Fire zones always set the per-cell restriction flag; a buffer is only
	// needed when they should also be excluded from the candidate area.
	if fz := c.Layers.FireZones; fz.Path != "" && fz.Buffer != nil && *fz.Buffer < 0 {
		errs = append(errs, "layers.fire_zones.buffer must be >= 0")
	}

	if len(c.Scoring.Weights) == 0 {
		errs = append(errs, "scoring.weights must not be empty")
	}
	known := make(map[string]bool, len(KnownFeatures))
	for _, f := range KnownFeatures {
		known[f] = true
	}
	names := make([]string, 0, len(c.Scoring.Weights))
	for name := range c.Scoring.Weights {
		names = append(names, name)
	}
	sort.Strings(names)
	var anyNonZero bool
	for _, name := range names {
		w := c.Scoring.Weights[name]
		if !known[name] {
			errs = append(errs, "scoring.weights: unknown feature "+name)
			continue
		}
		if math.IsNaN(w) || math.IsInf(w, 0) {
			errs = append(errs, "scoring.weights."+name+" must be finite")
			continue
		}
		if w != 0 {
			anyNonZero = true
		}
	}
	if len(c.Scoring.Weights) > 0 && !anyNonZero {
		errs = append(errs, "scoring.weights must contain at least one non-zero weight")
	}

	if c.Scoring.Normalization != NormLinear && c.Scoring.Normalization != NormExponential {
		errs = append(errs, "scoring.normalization must be linear or exponential")
	}
	for name, s := range c.Scoring.Saturation {
		if s <= 0 {
			errs = append(errs, "scoring.saturation."+name+" must be > 0")
		}
	}

	if len(errs) > 0 {
		return eris.Wrap(ErrInvalid, strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
