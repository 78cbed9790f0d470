package models

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RunConfig holds the options of a conversion run. Values may come from a
// YAML file (LoadConfig) and are then overridden by CLI flags.
type RunConfig struct {
	OutputFile  string `yaml:"output_file,omitempty"`
	Compression string `yaml:"compression,omitempty"`
	WorkDir     string `yaml:"workdir,omitempty"`
	Workers     int    `yaml:"workers,omitempty"`
	BatchSize   int    `yaml:"batch_size,omitempty"`

	HTMLEncoding       string `yaml:"html_encoding,omitempty"`
	RemoveEmbeddedBg   string `yaml:"remove_embedded_bg,omitempty"`
	EnsureExtImageURLs bool   `yaml:"ensure_ext_image_urls,omitempty"`
	HeaderStyle        string `yaml:"header_style,omitempty"`

	Filters     []string `yaml:"filters,omitempty"`
	FilterFiles []string `yaml:"filter_files,omitempty"`
	FilterDir   string   `yaml:"filter_dir,omitempty"`

	LocalNamespaces []string `yaml:"local_namespaces,omitempty"`
	ContentDirs     []string `yaml:"content_dirs,omitempty"`
	ResourcesDir    string   `yaml:"resources_dir,omitempty"`
	NoMath          bool     `yaml:"no_math,omitempty"`

	// Tags overrides container tags (license.name, license.url, created.by, uri).
	Tags map[string]string `yaml:"tags,omitempty"`

	MetricsFile string `yaml:"metrics_file,omitempty"`
}

// Defaults fills unset fields with their default values.
func (c *RunConfig) Defaults() {
	if c.Compression == "" {
		c.Compression = "zlib"
	}
	if c.WorkDir == "" {
		c.WorkDir = "."
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.HTMLEncoding == "" {
		c.HTMLEncoding = "utf-8"
	}
	if c.HeaderStyle == "" {
		c.HeaderStyle = "details"
	}
}

// LoadConfig reads a RunConfig from a YAML file.
func LoadConfig(path string) (*RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config RunConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return &config, nil
}
