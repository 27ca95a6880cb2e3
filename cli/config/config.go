package config

import (
	"fmt"
	"time"
)

// Config represents an assay.yaml configuration file.
// All values are optional and act as defaults for assay chat/merge flags.
// CLI flags always override config values.
type Config struct {
	Client  ClientConfig  `yaml:"client"`
	Merge   MergeConfig   `yaml:"merge"`
	Archive ArchiveConfig `yaml:"archive"`
	Adapter AdapterConfig `yaml:"adapter"`
	Journal JournalConfig `yaml:"journal"`
}

// ClientConfig holds copilot service defaults from the config file.
type ClientConfig struct {
	BaseURL        string   `yaml:"base_url"`
	Model          string   `yaml:"model"`
	UserID         string   `yaml:"user_id"`
	TokenPath      string   `yaml:"token_path"`
	SystemPrompt   string   `yaml:"system_prompt"`
	IncludeHistory bool     `yaml:"include_history"`
	ConnectTimeout Duration `yaml:"connect_timeout"`
	Retries        *int     `yaml:"retries,omitempty"`
}

// MergeConfig holds batch merge defaults from the config file.
type MergeConfig struct {
	KeyField            string `yaml:"key_field"`
	RecordLimitPerBatch int    `yaml:"record_limit_per_batch"`
	TotalResultLimit    int    `yaml:"total_result_limit"`
}

// ArchiveConfig holds archive storage defaults from the config file.
type ArchiveConfig struct {
	Dataset     string `yaml:"dataset"`
	Backend     string `yaml:"backend"`
	Path        string `yaml:"path"`
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
}

// AdapterConfig holds adapter defaults from the config file.
type AdapterConfig struct {
	Type    string            `yaml:"type"`
	URL     string            `yaml:"url"`
	Channel string            `yaml:"channel,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
	Retries *int              `yaml:"retries,omitempty"`
}

// JournalConfig holds event journal defaults from the config file.
type JournalConfig struct {
	Dir string `yaml:"dir"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}
