package convert

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/dtnitsch/mw2dict/internal/common"
	"github.com/dtnitsch/mw2dict/models"
	"github.com/dtnitsch/mw2dict/pkg/caching"
	"github.com/dtnitsch/mw2dict/pkg/container"
	"github.com/dtnitsch/mw2dict/pkg/converter"
	"github.com/dtnitsch/mw2dict/pkg/fetcher"
	"github.com/dtnitsch/mw2dict/pkg/siteinfo"
	"github.com/dtnitsch/mw2dict/pkg/source"
	"github.com/dtnitsch/mw2dict/pkg/source/dump"
	"github.com/dtnitsch/mw2dict/pkg/source/scrape"
	"github.com/dtnitsch/mw2dict/pkg/worker"
)

// resourceDirs are copied from the resources directory into every container.
var resourceDirs = []string{"js", "css", "images"}

const mathResourceDir = "MathJax"

func newLogger(c *cli.Context) *slog.Logger {
	logLevel := slog.LevelInfo
	if c.Bool("verbose") {
		logLevel = slog.LevelDebug
	}
	if c.Bool("quiet") {
		logLevel = slog.LevelError
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
}

func signalContext(c *cli.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
}

// SiteinfoAction prints the siteinfo of a MediaWiki site as JSON.
func SiteinfoAction(c *cli.Context) error {
	logger := newLogger(c)
	if c.NArg() != 1 {
		return cli.Exit("Error: expected exactly one site URL, e.g. https://en.wikipedia.org", 1)
	}
	site, err := common.ValidateSiteURL(c.Args().First())
	if err != nil {
		logger.Error("invalid site URL", "error", err)
		return err
	}

	ctx, cancel := signalContext(c)
	defer cancel()

	raw, err := fetchSiteinfo(ctx, c, logger, site)
	if err != nil {
		logger.Error("failed to fetch siteinfo", "site", site, "error", err)
		return err
	}

	var pretty any
	if err := json.Unmarshal(raw, &pretty); err != nil {
		return fmt.Errorf("failed to decode siteinfo: %w", err)
	}
	out, err := json.MarshalIndent(pretty, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, string(out))
	return nil
}

// fetchSiteinfo queries the site API, going through the on-disk cache when
// --cache-dir is set.
func fetchSiteinfo(ctx context.Context, c *cli.Context, logger *slog.Logger, site string) ([]byte, error) {
	apiPath := c.String("api-path")
	cacheDir := c.String("cache-dir")
	if cacheDir == "" {
		return siteinfo.Fetch(ctx, fetcher.NewFetcher(), site, apiPath)
	}

	cache, err := caching.NewCache(cacheDir, c.Duration("max-age"))
	if err != nil {
		return nil, err
	}
	key := caching.SiteinfoKey(site, apiPath)
	if data, ok := cache.Get(key); ok {
		logger.Debug("Using cached siteinfo", "site", site)
		return data, nil
	}
	raw, err := siteinfo.Fetch(ctx, fetcher.NewFetcher(), site, apiPath)
	if err != nil {
		return nil, err
	}
	if err := cache.Set(key, raw); err != nil {
		logger.Warn("Failed to cache siteinfo", "site", site, "error", err)
	}
	return raw, nil
}

// DumpAction converts Wikimedia Enterprise HTML dumps.
func DumpAction(c *cli.Context) error {
	logger := newLogger(c)
	files := c.Args().Slice()
	if len(files) == 0 {
		return cli.Exit("Error: no dump files given", 1)
	}

	cfg, err := loadRunConfig(c)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		return err
	}
	if cfg.OutputFile == "" {
		cfg.OutputFile = dump.OutputName(files[0], container.Extension)
	}

	siteinfoPath := c.String("siteinfo")
	if siteinfoPath == "" {
		siteinfoPath = dump.SiteinfoPath(files[0])
	}
	raw, err := dump.ReadSiteinfo(siteinfoPath)
	if err != nil {
		logger.Error("failed to read siteinfo", "path", siteinfoPath, "error", err)
		return err
	}
	site, err := siteinfo.Parse(raw, cfg.LocalNamespaces)
	if err != nil {
		logger.Error("failed to parse siteinfo", "path", siteinfoPath, "error", err)
		return err
	}

	reader := &dump.Reader{
		Files:    files,
		Site:     site,
		Settings: settings(cfg),
		Progress: os.Stdout,
		Logger:   logger,
	}
	if s := c.String("start-line"); s != "" {
		if reader.Start, err = dump.ParseLocation(s); err != nil {
			return cli.Exit(err.Error(), 1)
		}
	}
	if s := c.String("end-line"); s != "" {
		if reader.End, err = dump.ParseLocation(s); err != nil {
			return cli.Exit(err.Error(), 1)
		}
	}

	ctx, cancel := signalContext(c)
	defer cancel()
	return Convert(ctx, logger, cfg, raw, site, reader, nil)
}

// ScrapeAction converts articles stored in an mwscrape CouchDB database.
func ScrapeAction(c *cli.Context) error {
	logger := newLogger(c)
	if c.NArg() != 1 {
		return cli.Exit("Error: expected exactly one CouchDB database URL", 1)
	}
	couchURL, err := common.ValidateSiteURL(c.Args().First())
	if err != nil {
		logger.Error("invalid CouchDB URL", "error", err)
		return err
	}

	cfg, err := loadRunConfig(c)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		return err
	}
	if cfg.OutputFile == "" {
		cfg.OutputFile = scrape.OutputName(couchURL, container.Extension)
	}

	ctx, cancel := signalContext(c)
	defer cancel()

	reader := &scrape.Reader{
		CouchURL:  couchURL,
		StartKey:  c.String("startkey"),
		EndKey:    c.String("endkey"),
		Keys:      c.StringSlice("key"),
		KeyFile:   c.String("key-file"),
		Langlinks: c.StringSlice("langlinks"),
		Settings:  settings(cfg),
		Fetcher:   fetcher.NewFetcher(),
		Logger:    logger,
	}
	raw, err := reader.Siteinfo(ctx)
	if err != nil {
		logger.Error("failed to read siteinfo", "error", err)
		return err
	}
	site, err := siteinfo.Parse(raw, cfg.LocalNamespaces)
	if err != nil {
		logger.Error("failed to parse siteinfo", "error", err)
		return err
	}
	reader.Site = site

	return Convert(ctx, logger, cfg, raw, site, reader, reader.Langlinks)
}

// InfoAction prints the tags and key count of a container.
func InfoAction(c *cli.Context) error {
	logger := newLogger(c)
	if c.NArg() != 1 {
		return cli.Exit("Error: expected exactly one container file", 1)
	}
	path := c.Args().First()

	r, err := container.Open(path)
	if err != nil {
		logger.Error("failed to open container", "path", path, "error", err)
		return err
	}
	defer r.Close()

	tags, err := r.Tags()
	if err != nil {
		return err
	}
	count, err := r.Count()
	if err != nil {
		return err
	}
	var keys []string
	if n := c.Int("keys"); n > 0 {
		if keys, err = r.Keys(n); err != nil {
			return err
		}
	}
	fmt.Fprintln(c.App.Writer, RenderInfo(path, tags, count, keys))
	return nil
}

func settings(cfg *models.RunConfig) source.Settings {
	return source.Settings{
		Encoding:           cfg.HTMLEncoding,
		RemoveEmbeddedBg:   cfg.RemoveEmbeddedBg,
		EnsureExtImageURLs: cfg.EnsureExtImageURLs,
	}
}

// Convert runs a whole conversion: it creates the container, writes tags
// and site metadata, converts every article of src, adds resources and
// finalizes. The container is discarded on any error.
func Convert(ctx context.Context, logger *slog.Logger, cfg *models.RunConfig, rawSiteinfo []byte, site models.SiteInfo, src source.Source, langlinks []string) error {
	header, err := converter.ParseHeaderStyle(cfg.HeaderStyle)
	if err != nil {
		logger.Error("invalid header style", "error", err)
		return err
	}
	filters, err := common.LoadFilters(cfg.FilterDir, cfg.FilterFiles, cfg.Filters)
	if err != nil {
		logger.Error("failed to load filters", "error", err)
		return err
	}
	if _, err := worker.NewContext(filters, site, worker.Options{}); err != nil {
		logger.Error("invalid filter", "error", err)
		return err
	}

	out, err := container.Create(cfg.OutputFile, container.Options{
		Compression: cfg.Compression,
		WorkDir:     cfg.WorkDir,
		Logger:      logger,
	})
	if err != nil {
		if errors.Is(err, container.ErrLocked) {
			logger.Error("output file is being written by another process", "path", cfg.OutputFile)
		} else {
			logger.Error("failed to create container", "path", cfg.OutputFile, "error", err)
		}
		return err
	}
	finalized := false
	defer func() {
		if !finalized {
			_ = out.Abort()
		}
	}()

	for _, tag := range common.BuildTags(site, langlinks, cfg.Tags) {
		if err := out.Tag(tag.Name, tag.Value); err != nil {
			return err
		}
	}
	if err := out.Add(rawSiteinfo, "application/json", "~/siteinfo.json"); err != nil {
		return err
	}

	var metrics *Metrics
	if cfg.MetricsFile != "" {
		metrics = NewMetrics()
	}

	coordinator := &Coordinator{
		Workers:     cfg.Workers,
		BatchSize:   cfg.BatchSize,
		Filters:     filters,
		Site:        site,
		Header:      header,
		ContentType: converter.ContentType(cfg.HTMLEncoding),
		Logger:      logger,
		Out:         os.Stdout,
		Metrics:     metrics,
	}
	stats, err := coordinator.Run(ctx, src, out)
	if err != nil {
		logger.Error("conversion failed", "error", err)
		return err
	}

	if err := addResources(out, cfg, logger); err != nil {
		logger.Error("failed to add resources", "error", err)
		return err
	}
	for _, dir := range cfg.ContentDirs {
		n, err := container.AddDir(out, dir, dir)
		if err != nil {
			logger.Error("failed to add content directory", "dir", dir, "error", err)
			return err
		}
		logger.Info("Added content directory", "dir", dir, "files", n)
	}

	if err := out.Finalize(); err != nil {
		logger.Error("failed to finalize container", "error", err)
		return err
	}
	finalized = true

	fmt.Fprintln(os.Stderr, RenderSummary(cfg.OutputFile, stats))

	if metrics != nil {
		if err := metrics.WriteTextfile(cfg.MetricsFile); err != nil {
			logger.Warn("Failed to write metrics", "path", cfg.MetricsFile, "error", err)
		}
	}
	return nil
}

func addResources(w container.Writer, cfg *models.RunConfig, logger *slog.Logger) error {
	if cfg.ResourcesDir == "" {
		logger.Warn("No resources directory given, stylesheets and scripts will be missing")
		return nil
	}
	include := append([]string(nil), resourceDirs...)
	if !cfg.NoMath {
		include = append(include, mathResourceDir)
	}
	n, err := container.AddDir(w, common.ExpandHome(cfg.ResourcesDir), "~", include...)
	if err != nil {
		return err
	}
	logger.Info("Added resources", "dir", cfg.ResourcesDir, "files", n)
	return nil
}
