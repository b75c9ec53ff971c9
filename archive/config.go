// CLAUDE:SUMMARY Run configuration: YAML file loading, defaults, pre-run validation.
package archive

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full run configuration. Flags overlay whatever the
// optional YAML file provides.
type Config struct {
	ArchiveURL   string        `yaml:"archive_url"`
	OutputDir    string        `yaml:"output_dir"`
	ProfileDir   string        `yaml:"profile_dir"`
	Timeout      time.Duration `yaml:"timeout"`
	Retries      int           `yaml:"retries"`
	StartRow     int           `yaml:"start_row"`
	EndRow       int           `yaml:"end_row"`
	SkipExisting bool          `yaml:"skip_existing"`
	Headless     bool          `yaml:"headless"`
	VerifyPDF    bool          `yaml:"verify_pdf"`
	Report       string        `yaml:"report"`
	HistoryDB    string        `yaml:"history_db"`
	LogLevel     string        `yaml:"log_level"`
}

// LoadConfigFile reads a YAML configuration file and applies defaults.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills zero-valued fields with run defaults.
func (c *Config) ApplyDefaults() {
	if c.OutputDir == "" {
		c.OutputDir = "downloads"
	}
	if c.ProfileDir == "" {
		c.ProfileDir = ".flatex-profile"
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.Retries <= 0 {
		c.Retries = 3
	}
	if c.StartRow <= 0 {
		c.StartRow = 1
	}
	if c.Report == "" {
		c.Report = "flatex_report.json"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Validate checks the parts of the configuration that can be checked
// before the page state is known. Range-vs-rowCount is enforced by the
// Runner once the state is captured.
func (c *Config) Validate() error {
	if c.ArchiveURL == "" {
		return fmt.Errorf("archive: archive URL is required")
	}
	if c.EndRow > 0 && c.StartRow > c.EndRow {
		return fmt.Errorf("%w: start-row %d > end-row %d", ErrInvalidRange, c.StartRow, c.EndRow)
	}
	return nil
}
