package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// MappingProfile is a user-confirmed column mapping saved as YAML:
//
//	schema: deals
//	columns:
//	  "Asking $": asking_price
//	  "Biz": business_name
type MappingProfile struct {
	Schema  string            `yaml:"schema"`
	Columns map[string]string `yaml:"columns"`
}

// LoadMappingProfile reads and decodes a profile file.
func LoadMappingProfile(path string) (*MappingProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read mapping profile %q: %w", path, err)
	}
	return ParseMappingProfile(data)
}

// ParseMappingProfile decodes a profile from YAML bytes.
func ParseMappingProfile(data []byte) (*MappingProfile, error) {
	var p MappingProfile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("config: decode mapping profile: %w", err)
	}
	if len(p.Columns) == 0 {
		return nil, fmt.Errorf("config: mapping profile has no columns")
	}
	return &p, nil
}

// Save writes the profile as YAML.
func (p *MappingProfile) Save(path string) error {
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("config: encode mapping profile: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write mapping profile %q: %w", path, err)
	}
	return nil
}
