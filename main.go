package main

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/dtnitsch/mw2dict/internal/convert"
	"github.com/dtnitsch/mw2dict/pkg/siteinfo"
)

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: "Only log errors"},
		&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "Log debug output"},
	}
}

func conversionFlags() []cli.Flag {
	return append(globalFlags(),
		&cli.StringFlag{Name: "config", Usage: "YAML file with default options; flags override it"},
		&cli.StringFlag{Name: "output-file", Aliases: []string{"o"}, Usage: "Name of the output container"},
		&cli.StringFlag{Name: "compression", Aliases: []string{"c"}, Value: "zlib", Usage: "Blob compression: zlib or none"},
		&cli.StringFlag{Name: "workdir", Aliases: []string{"w"}, Value: ".", Usage: "Directory for temporary files created while building"},
		&cli.StringFlag{Name: "uri", Aliases: []string{"u"}, Usage: "Value for the uri tag"},
		&cli.StringFlag{Name: "license-name", Aliases: []string{"l"}, Usage: "Value for the license.name tag"},
		&cli.StringFlag{Name: "license-url", Aliases: []string{"L"}, Usage: "Value for the license.url tag"},
		&cli.StringFlag{Name: "created-by", Aliases: []string{"a"}, Usage: "Value for the created.by tag"},
		&cli.StringFlag{Name: "filter-dir", Usage: "Directory filter files are read from"},
		&cli.StringSliceFlag{Name: "filter-file", Aliases: []string{"f"}, Usage: "File with CSS selectors of elements to drop, one per line"},
		&cli.StringSliceFlag{Name: "filter", Aliases: []string{"F"}, Usage: "CSS selector of elements to drop"},
		&cli.StringFlag{Name: "html-encoding", Value: "utf-8", Usage: "Encoding of stored article HTML"},
		&cli.StringFlag{Name: "remove-embedded-bg", Usage: "Comma separated CSS selectors of elements whose inline background is removed, e.g. [style]"},
		&cli.StringSliceFlag{Name: "content-dir", Usage: "Add files from a directory, keyed by their path"},
		&cli.StringFlag{Name: "resources-dir", Usage: "Directory holding the js, css, images and MathJax resources"},
		&cli.StringSliceFlag{Name: "local-namespace", Usage: "Keep links into this namespace inside the container"},
		&cli.BoolFlag{Name: "ensure-ext-image-urls", Usage: "Turn links to image files into external URLs"},
		&cli.BoolFlag{Name: "no-math", Usage: "Do not include MathJax resources"},
		&cli.StringFlag{Name: "header-style", Value: "details", Usage: "Article header: details, heading or none"},
		&cli.IntFlag{Name: "workers", Value: runtime.NumCPU(), Usage: "Number of conversion workers"},
		&cli.IntFlag{Name: "batch-size", Value: convert.DefaultBatchSize, Usage: "Number of articles queued for the workers"},
		&cli.StringFlag{Name: "metrics-file", Usage: "Write run metrics in Prometheus textfile format"},
	)
}

func main() {
	app := &cli.App{
		Name:  "mw2dict",
		Usage: "Convert MediaWiki article HTML into dictionary containers",
		Commands: []*cli.Command{
			{
				Name:      "siteinfo",
				Usage:     "Get MediaWiki site metadata",
				ArgsUsage: "URL",
				Flags: append(globalFlags(),
					&cli.StringFlag{Name: "api-path", Value: siteinfo.DefaultAPIPath, Usage: "Path of api.php on the site"},
					&cli.StringFlag{Name: "cache-dir", Usage: "Keep fetched siteinfo in this directory"},
					&cli.DurationFlag{Name: "max-age", Value: 24 * time.Hour, Usage: "Refetch cached siteinfo older than this"},
				),
				Action: convert.SiteinfoAction,
			},
			{
				Name:      "dump",
				Usage:     "Convert Wikimedia Enterprise HTML dumps",
				ArgsUsage: "DUMP_FILE...",
				Flags: append(conversionFlags(),
					&cli.StringFlag{Name: "siteinfo", Usage: "Siteinfo JSON file (default: dump name with .siteinfo.json extension)"},
					&cli.StringFlag{Name: "start-line", Aliases: []string{"s"}, Value: "1:1", Usage: "Start at FILE:LINE"},
					&cli.StringFlag{Name: "end-line", Aliases: []string{"e"}, Usage: "Stop after FILE:LINE"},
				),
				Action: convert.DumpAction,
			},
			{
				Name:      "scrape",
				Usage:     "Convert articles from an mwscrape CouchDB database",
				ArgsUsage: "COUCH_URL",
				Flags: append(conversionFlags(),
					&cli.StringFlag{Name: "startkey", Aliases: []string{"s"}, Usage: "Skip titles sorting before this one"},
					&cli.StringFlag{Name: "endkey", Aliases: []string{"e"}, Usage: "Stop after this title"},
					&cli.StringSliceFlag{Name: "key", Aliases: []string{"k"}, Usage: "Convert only this title"},
					&cli.StringFlag{Name: "key-file", Aliases: []string{"K"}, Usage: "Convert only titles listed in this file"},
					&cli.StringSliceFlag{Name: "langlinks", Aliases: []string{"ll"}, Usage: "Add titles of language links in this language as aliases"},
				),
				Action: convert.ScrapeAction,
			},
			{
				Name:      "info",
				Usage:     "Show container tags and key count",
				ArgsUsage: "CONTAINER",
				Flags: append(globalFlags(),
					&cli.IntFlag{Name: "keys", Usage: "Also list the first N keys"},
				),
				Action: convert.InfoAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
