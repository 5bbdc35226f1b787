package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the run configuration of the field averaging driver
type Config struct {
	Mesh      MeshConfig    `yaml:"mesh"`
	Field     FieldConfig   `yaml:"field"`
	Averaging Dict          `yaml:"averaging"`
	Output    OutputConfig  `yaml:"output"`
	Metrics   MetricsConfig `yaml:"metrics"`
	Device    DeviceConfig  `yaml:"device"`
}

// MeshConfig selects a mesh file, or a generated box mesh when File is empty
type MeshConfig struct {
	File string    `yaml:"file"`
	Box  BoxConfig `yaml:"box"`
}

type BoxConfig struct {
	N   [3]int     `yaml:"n"`
	Min [3]float64 `yaml:"min"`
	Max [3]float64 `yaml:"max"`
}

// FieldConfig names the averaged field and its value type. Amplitude and
// Width shape the Gaussian pulse the run command deposits.
type FieldConfig struct {
	Name      string  `yaml:"name"`
	Type      string  `yaml:"type"` // scalar or vector
	Amplitude float64 `yaml:"amplitude"`
	Width     float64 `yaml:"width"`
}

type OutputConfig struct {
	Dir    string `yaml:"dir"`
	Format string `yaml:"format"` // text, zstd or sqlite
	Time   string `yaml:"time"`
	Level  int    `yaml:"level"` // zstd compression level
}

type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
	Subsystem string `yaml:"subsystem"`
}

// DeviceConfig enables the OCCA device backend for weighted averaging
type DeviceConfig struct {
	Enabled bool   `yaml:"enabled"`
	Props   string `yaml:"props"`
}

// Load reads, defaults, overrides from the environment and validates the
// configuration file at path
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("configuration file %q: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes a YAML configuration and prepares it like Load
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}
	ApplyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// ApplyDefaults fills unset fields
func ApplyDefaults(cfg *Config) {
	if cfg.Mesh.File == "" {
		if cfg.Mesh.Box.N == [3]int{} {
			cfg.Mesh.Box.N = [3]int{4, 4, 4}
		}
		if cfg.Mesh.Box.Max == [3]float64{} {
			cfg.Mesh.Box.Max = [3]float64{1, 1, 1}
		}
	}
	if cfg.Field.Name == "" {
		cfg.Field.Name = "averaged"
	}
	if cfg.Field.Type == "" {
		cfg.Field.Type = "scalar"
	}
	if cfg.Field.Amplitude == 0 {
		cfg.Field.Amplitude = 1
	}
	if cfg.Field.Width == 0 {
		cfg.Field.Width = 0.25
	}
	if cfg.Averaging == nil {
		cfg.Averaging = Dict{}
	}
	if _, ok := cfg.Averaging["averagingMethod"]; !ok {
		cfg.Averaging["averagingMethod"] = "basic"
	}
	if cfg.Output.Dir == "" {
		cfg.Output.Dir = "results"
	}
	if cfg.Output.Format == "" {
		cfg.Output.Format = "text"
	}
	if cfg.Output.Time == "" {
		cfg.Output.Time = "0"
	}
	if cfg.Output.Level == 0 {
		cfg.Output.Level = 3
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = "dgaverage"
	}
	if cfg.Metrics.Subsystem == "" {
		cfg.Metrics.Subsystem = "averaging"
	}
	if cfg.Device.Props == "" {
		cfg.Device.Props = `{"mode": "Serial"}`
	}
}

// applyEnvOverrides applies DGAVG_SECTION_FIELD environment variables
func applyEnvOverrides(cfg *Config) {
	if val := os.Getenv("DGAVG_MESH_FILE"); val != "" {
		cfg.Mesh.File = val
	}
	if val := os.Getenv("DGAVG_AVERAGING_METHOD"); val != "" {
		cfg.Averaging["averagingMethod"] = val
	}
	if val := os.Getenv("DGAVG_OUTPUT_DIR"); val != "" {
		cfg.Output.Dir = val
	}
	if val := os.Getenv("DGAVG_OUTPUT_FORMAT"); val != "" {
		cfg.Output.Format = strings.ToLower(val)
	}
	if val := os.Getenv("DGAVG_DEVICE_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Device.Enabled = b
		}
	}
}

// Validate checks the configuration for values the driver cannot use
func Validate(cfg *Config) error {
	if cfg.Mesh.File == "" {
		for i, n := range cfg.Mesh.Box.N {
			if n < 1 {
				return fmt.Errorf("mesh.box.n[%d] must be positive, got %d", i, n)
			}
			if cfg.Mesh.Box.Max[i] <= cfg.Mesh.Box.Min[i] {
				return fmt.Errorf("mesh.box: max[%d]=%g must exceed min[%d]=%g",
					i, cfg.Mesh.Box.Max[i], i, cfg.Mesh.Box.Min[i])
			}
		}
	}
	switch cfg.Field.Type {
	case "scalar", "vector":
	default:
		return fmt.Errorf("field.type must be scalar or vector, got %q", cfg.Field.Type)
	}
	if cfg.Field.Width <= 0 {
		return fmt.Errorf("field.width must be positive, got %g", cfg.Field.Width)
	}
	if _, err := cfg.Averaging.Lookup("averagingMethod"); err != nil {
		return fmt.Errorf("averaging: %w", err)
	}
	switch cfg.Output.Format {
	case "text", "zstd", "sqlite":
	default:
		return fmt.Errorf("output.format must be text, zstd or sqlite, got %q", cfg.Output.Format)
	}
	return nil
}
