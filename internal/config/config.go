package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models costline.yml: the tunables of the analytics engine.
type Config struct {
	Project struct {
		ID string `yaml:"id"`
	} `yaml:"project"`
	Health struct {
		// EAC above budget*ForecastRedFactor flags Red; above budget flags Yellow.
		ForecastRedFactor float64 `yaml:"forecast_red_factor"`
		CPIRedBelow       float64 `yaml:"cpi_red_below"`
		CPIYellowBelow    float64 `yaml:"cpi_yellow_below"`
	} `yaml:"health"`
	Burndown struct {
		// AtRiskDiffPct is the ideal-vs-actual gap, as percent of total budget,
		// below which the trajectory is classified AtRisk. Negative by convention.
		AtRiskDiffPct float64 `yaml:"at_risk_diff_pct"`
	} `yaml:"burndown"`
	Expenditure struct {
		Categories []string `yaml:"categories"`
	} `yaml:"expenditure"`
}

// Default returns the standard configuration for a project.
func Default(projectID string) *Config {
	c := &Config{}
	c.Project.ID = projectID
	c.Health.ForecastRedFactor = 1.05
	c.Health.CPIRedBelow = 0.85
	c.Health.CPIYellowBelow = 0.95
	c.Burndown.AtRiskDiffPct = -10
	c.Expenditure.Categories = []string{"Labour", "Material", "Vehicle", "Diesel", "Other"}
	return c
}

// Path returns the config file location within a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "costline.yml")
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found", Path(workspace))
		}
		return nil, err
	}
	return FromYAML(data)
}

// FromYAML parses and validates a config document.
func FromYAML(data []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// ToYAML serializes the config.
func (c *Config) ToYAML() ([]byte, error) {
	return yaml.Marshal(c)
}

// Validate ensures thresholds are ordered sensibly.
func (c *Config) Validate() error {
	if c.Health.ForecastRedFactor < 1 {
		return fmt.Errorf("config.health.forecast_red_factor must be >= 1, got %v", c.Health.ForecastRedFactor)
	}
	if c.Health.CPIRedBelow <= 0 || c.Health.CPIYellowBelow <= 0 {
		return fmt.Errorf("config.health CPI thresholds must be positive")
	}
	if c.Health.CPIRedBelow > c.Health.CPIYellowBelow {
		return fmt.Errorf("config.health.cpi_red_below %v must not exceed cpi_yellow_below %v",
			c.Health.CPIRedBelow, c.Health.CPIYellowBelow)
	}
	if c.Burndown.AtRiskDiffPct >= 0 {
		return fmt.Errorf("config.burndown.at_risk_diff_pct must be negative, got %v", c.Burndown.AtRiskDiffPct)
	}
	if len(c.Expenditure.Categories) == 0 {
		return fmt.Errorf("config.expenditure.categories is required")
	}
	for _, cat := range c.Expenditure.Categories {
		if cat == "" {
			return fmt.Errorf("config.expenditure.categories contains an empty entry")
		}
	}
	return nil
}
