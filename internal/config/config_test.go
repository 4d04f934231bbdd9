package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"costline/internal/config"
)

func TestDefaultIsValid(t *testing.T) {
	if err := config.Default("p1").Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
}

func TestValidateRejectsBadThresholds(t *testing.T) {
	cases := map[string]func(*config.Config){
		"forecast factor below one": func(c *config.Config) { c.Health.ForecastRedFactor = 0.9 },
		"zero cpi threshold":        func(c *config.Config) { c.Health.CPIRedBelow = 0 },
		"crossed cpi thresholds":    func(c *config.Config) { c.Health.CPIRedBelow = 0.96; c.Health.CPIYellowBelow = 0.95 },
		"positive at-risk gap":      func(c *config.Config) { c.Burndown.AtRiskDiffPct = 5 },
		"no categories":             func(c *config.Config) { c.Expenditure.Categories = nil },
		"empty category":            func(c *config.Config) { c.Expenditure.Categories = []string{"Labour", ""} },
	}
	for name, mutate := range cases {
		c := config.Default("p1")
		mutate(c)
		if err := c.Validate(); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	c := config.Default("p1")
	c.Health.CPIYellowBelow = 0.97
	data, err := c.ToYAML()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "costline.yml"), data, 0o644); err != nil {
		t.Fatal(err)
	}
	loaded, err := config.Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Health.CPIYellowBelow != 0.97 {
		t.Fatalf("threshold lost in round trip: %v", loaded.Health.CPIYellowBelow)
	}
	if loaded.Project.ID != "p1" {
		t.Fatalf("project id lost: %q", loaded.Project.ID)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := config.Load(t.TempDir()); err == nil {
		t.Fatal("expected error for missing config")
	}
}

func TestFromYAMLRejectsInvalid(t *testing.T) {
	_, err := config.FromYAML([]byte("health:\n  forecast_red_factor: 0.5\n"))
	if err == nil {
		t.Fatal("expected validation error")
	}
}
