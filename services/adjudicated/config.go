package adjudicated

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration to support YAML unmarshalling.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses human readable duration strings.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return nil
	}
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be string")
	}
	raw := value.Value
	if raw == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	d.Duration = parsed
	return nil
}

// Config captures the runtime configuration for adjudicated.
type Config struct {
	ListenAddress string    `yaml:"listen"`
	ScenarioPath  string    `yaml:"scenario"`
	InputPath     string    `yaml:"input"`
	OutputPath    string    `yaml:"output"`
	AuditPath     string    `yaml:"audit"`
	Environment   string    `yaml:"env"`
	ShutdownGrace Duration  `yaml:"shutdown_grace"`
	Log           LogConfig `yaml:"log"`
}

// LogConfig enables an optional rotating log file alongside stderr.
type LogConfig struct {
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// DefaultConfig returns the configuration used when no file is supplied:
// stdin to stdout, no audit stream, no admin listener.
func DefaultConfig() Config {
	return Config{
		ShutdownGrace: Duration{Duration: 10 * time.Second},
	}
}

// LoadConfig reads the daemon configuration from the provided YAML file.
func LoadConfig(path string) (Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(file)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if cfg.ShutdownGrace.Duration <= 0 {
		cfg.ShutdownGrace = Duration{Duration: 10 * time.Second}
	}
	return cfg, nil
}
