package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RecordSettings configures the feed recorder tool: which channels and
// markets to capture and where the store lives.
type RecordSettings struct {
	DBPath        string   `yaml:"db_path"`
	MaxStoreBytes int64    `yaml:"max_store_bytes"`
	Channels      []string `yaml:"channels"`
	Tickers       []string `yaml:"tickers"`
}

// LoadRecordSettings reads a YAML settings file. Missing optional fields
// fall back to defaults.
func LoadRecordSettings(path string) (RecordSettings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RecordSettings{}, fmt.Errorf("read record settings: %w", err)
	}

	var s RecordSettings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return RecordSettings{}, fmt.Errorf("parse record settings: %w", err)
	}

	if s.DBPath == "" {
		s.DBPath = "data/feed.db"
	}
	if s.MaxStoreBytes == 0 {
		s.MaxStoreBytes = 1 << 30 // 1 GiB
	}
	if len(s.Channels) == 0 {
		s.Channels = []string{"ticker"}
	}
	return s, nil
}
