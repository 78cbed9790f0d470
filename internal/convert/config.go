package convert

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/dtnitsch/mw2dict/models"
)

// tagFlags maps CLI flags to the container tags they override.
var tagFlags = map[string]string{
	"license-name": "license.name",
	"license-url":  "license.url",
	"created-by":   "created.by",
	"uri":          "uri",
}

// loadRunConfig reads the optional --config file and applies the command
// line on top of it. Flags given explicitly always win; flag defaults only
// fill values the file leaves empty.
func loadRunConfig(c *cli.Context) (*models.RunConfig, error) {
	cfg := &models.RunConfig{}
	if path := c.String("config"); path != "" {
		loaded, err := models.LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	str := func(flag string, dst *string) {
		if c.IsSet(flag) || *dst == "" {
			*dst = c.String(flag)
		}
	}
	slice := func(flag string, dst *[]string) {
		if c.IsSet(flag) {
			*dst = c.StringSlice(flag)
		}
	}
	boolean := func(flag string, dst *bool) {
		if c.IsSet(flag) {
			*dst = c.Bool(flag)
		}
	}
	integer := func(flag string, dst *int) {
		if c.IsSet(flag) || *dst == 0 {
			*dst = c.Int(flag)
		}
	}

	str("output-file", &cfg.OutputFile)
	str("compression", &cfg.Compression)
	str("workdir", &cfg.WorkDir)
	str("html-encoding", &cfg.HTMLEncoding)
	str("remove-embedded-bg", &cfg.RemoveEmbeddedBg)
	str("header-style", &cfg.HeaderStyle)
	str("filter-dir", &cfg.FilterDir)
	str("resources-dir", &cfg.ResourcesDir)
	str("metrics-file", &cfg.MetricsFile)
	slice("filter", &cfg.Filters)
	slice("filter-file", &cfg.FilterFiles)
	slice("local-namespace", &cfg.LocalNamespaces)
	slice("content-dir", &cfg.ContentDirs)
	boolean("ensure-ext-image-urls", &cfg.EnsureExtImageURLs)
	boolean("no-math", &cfg.NoMath)
	integer("workers", &cfg.Workers)
	integer("batch-size", &cfg.BatchSize)

	for flag, tag := range tagFlags {
		if v := c.String(flag); v != "" {
			if cfg.Tags == nil {
				cfg.Tags = map[string]string{}
			}
			cfg.Tags[tag] = v
		}
	}

	cfg.Defaults()
	if cfg.Workers < 0 {
		return nil, fmt.Errorf("invalid worker count %d", cfg.Workers)
	}
	return cfg, nil
}
