package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/royalcat/fieldgrid/analyzer"
	"github.com/royalcat/fieldgrid/grid"
	"github.com/royalcat/fieldgrid/internal/telemetry"
	"github.com/spf13/viper"
)

type Config struct {
	Analysis  AnalysisConfig  `mapstructure:"analysis"`
	Server    ServerConfig    `mapstructure:"server"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

type AnalysisConfig struct {
	Zone                 int     `mapstructure:"zone"`
	South                bool    `mapstructure:"south"`
	CellSize             float64 `mapstructure:"cell_size"`
	Margin               float64 `mapstructure:"margin"`
	Mode                 string  `mapstructure:"mode"`
	BoundaryInclusive    bool    `mapstructure:"boundary_inclusive"`
	Threads              int     `mapstructure:"threads"`
	Rectangle            bool    `mapstructure:"rectangle"`
	MaxQuadrupleVertices int     `mapstructure:"max_quadruple_vertices"`
	SampleStep           float64 `mapstructure:"sample_step"`
	PoissonDistance      float64 `mapstructure:"poisson_distance"`
	Seed                 int64   `mapstructure:"seed"`
}

type ServerConfig struct {
	Listen string `mapstructure:"listen"`
}

type TelemetryConfig struct {
	ServiceName  string `mapstructure:"service_name"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	LogLevel     string `mapstructure:"log_level"`
}

// Load reads .env, an optional fieldgrid.yaml (or file when set) and
// FIELDGRID_* environment variables, in increasing priority.
func Load(file string) (*Config, error) {
	_ = godotenv.Load(".env") // OK if missing

	v := viper.New()

	defaults := analyzer.ConfigDefault()
	v.SetDefault("analysis.zone", defaults.Zone)
	v.SetDefault("analysis.south", defaults.South)
	v.SetDefault("analysis.cell_size", defaults.CellSize)
	v.SetDefault("analysis.margin", defaults.Margin)
	v.SetDefault("analysis.mode", defaults.Mode.String())
	v.SetDefault("analysis.boundary_inclusive", defaults.BoundaryInclusive)
	v.SetDefault("analysis.threads", defaults.Threads)
	v.SetDefault("analysis.rectangle", defaults.Rectangle)
	v.SetDefault("analysis.max_quadruple_vertices", defaults.MaxQuadrupleVertices)
	v.SetDefault("analysis.sample_step", defaults.SampleStep)
	v.SetDefault("analysis.poisson_distance", defaults.PoissonDistance)
	v.SetDefault("analysis.seed", defaults.Seed)
	v.SetDefault("server.listen", ":8080")
	v.SetDefault("telemetry.service_name", "fieldgrid")
	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.log_level", "info")

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	} else {
		v.SetConfigName("fieldgrid")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		_ = v.ReadInConfig() // OK if missing
	}

	// FIELDGRID_ANALYSIS_CELL_SIZE → analysis.cell_size
	v.SetEnvPrefix("FIELDGRID")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []string

	a := c.Analysis
	if a.Zone < 0 || a.Zone > 60 {
		errs = append(errs, fmt.Sprintf("analysis.zone must be 0-60, got %d", a.Zone))
	}
	if a.CellSize <= 0 {
		errs = append(errs, fmt.Sprintf("analysis.cell_size must be positive, got %v", a.CellSize))
	}
	if a.Margin < 0 {
		errs = append(errs, fmt.Sprintf("analysis.margin must not be negative, got %v", a.Margin))
	}
	if _, err := grid.ParseMode(a.Mode); err != nil {
		errs = append(errs, fmt.Sprintf("analysis.mode: %v", err))
	}
	if a.MaxQuadrupleVertices < 0 {
		errs = append(errs, "analysis.max_quadruple_vertices must not be negative")
	}
	if a.SampleStep < 0 || a.PoissonDistance < 0 {
		errs = append(errs, "analysis.sample_step and analysis.poisson_distance must not be negative")
	}
	if c.Server.Listen == "" {
		errs = append(errs, "server.listen is required")
	}
	if _, err := telemetry.ParseLevel(c.Telemetry.LogLevel); err != nil {
		errs = append(errs, fmt.Sprintf("telemetry.log_level: %v", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// Analyzer converts the analysis section. Validate must have passed.
func (c *Config) Analyzer() analyzer.Config {
	a := c.Analysis
	mode, _ := grid.ParseMode(a.Mode)
	return analyzer.Config{
		Zone:                 a.Zone,
		South:                a.South,
		CellSize:             a.CellSize,
		Margin:               a.Margin,
		Mode:                 mode,
		BoundaryInclusive:    a.BoundaryInclusive,
		Threads:              a.Threads,
		Rectangle:            a.Rectangle,
		MaxQuadrupleVertices: a.MaxQuadrupleVertices,
		SampleStep:           a.SampleStep,
		PoissonDistance:      a.PoissonDistance,
		Seed:                 a.Seed,
	}
}
