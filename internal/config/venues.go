package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// VenueConfig is a venue whose booking types are kept warm in the cache.
type VenueConfig struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	IsActive bool   `yaml:"is_active"`
}

// VenuesConfig is the root configuration for venues.yaml.
type VenuesConfig struct {
	Venues []VenueConfig `yaml:"venues"`
}

// LoadVenuesConfig loads and validates the venue list from a YAML file.
func LoadVenuesConfig(path string) (*VenuesConfig, error) {
	if path == "" {
		path = "configs/venues.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read venues config: %w", err)
	}

	var cfg VenuesConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse venues config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate venues config: %w", err)
	}

	return &cfg, nil
}

// Validate checks the venue list for empty or duplicate ids.
func (c *VenuesConfig) Validate() error {
	seen := make(map[string]bool, len(c.Venues))
	for i, v := range c.Venues {
		id := strings.TrimSpace(v.ID)
		if id == "" {
			return fmt.Errorf("venue #%d: id is required", i+1)
		}
		if seen[id] {
			return fmt.Errorf("venue %s: duplicate id", id)
		}
		seen[id] = true
	}
	return nil
}

// ActiveIDs returns the ids of active venues in file order.
func (c *VenuesConfig) ActiveIDs() []string {
	ids := make([]string, 0, len(c.Venues))
	for _, v := range c.Venues {
		if v.IsActive {
			ids = append(ids, strings.TrimSpace(v.ID))
		}
	}
	return ids
}
