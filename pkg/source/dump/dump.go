// Package dump reads articles from Wikimedia Enterprise HTML dumps:
// newline delimited JSON, plain or inside .tar and .tar.gz archives.
package dump

import (
	"archive/tar"
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/klauspost/compress/gzip"

	"github.com/dtnitsch/mw2dict/internal/common"
	"github.com/dtnitsch/mw2dict/models"
	"github.com/dtnitsch/mw2dict/pkg/source"
)

// ArticlePath is the article link prefix used inside dump HTML.
const ArticlePath = "./"

// Location addresses a line in a dump: the Line-th line of the File-th
// file of an archive, both counted from 1.
type Location struct {
	File int
	Line int
}

// IsZero reports whether l is unset.
func (l Location) IsZero() bool {
	return l.File == 0 && l.Line == 0
}

func (l Location) String() string {
	return fmt.Sprintf("%d:%d", l.File, l.Line)
}

// ParseLocation parses "FILE:LINE" or "LINE", the latter meaning file 1.
func ParseLocation(s string) (Location, error) {
	file, line, found := strings.Cut(s, ":")
	if !found {
		file, line = "1", s
	}
	f, err := strconv.Atoi(strings.TrimSpace(file))
	if err != nil || f < 1 {
		return Location{}, fmt.Errorf("invalid location %q: bad file number", s)
	}
	l, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil || l < 1 {
		return Location{}, fmt.Errorf("invalid location %q: bad line number", s)
	}
	return Location{File: f, Line: l}, nil
}

// Reader is a source.Source over one or more dump files.
type Reader struct {
	Files    []string
	Site     models.SiteInfo
	Settings source.Settings
	// Start and End bound the lines read in every dump file. A zero End
	// reads to the end.
	Start Location
	End   Location
	// Progress, when set, receives "FILE:LINE TITLE (LEN)" per article.
	Progress io.Writer
	Logger   *slog.Logger
}

type record struct {
	Name        string `json:"name"`
	ArticleBody *struct {
		HTML *string `json:"html"`
	} `json:"article_body"`
	Redirects []struct {
		Name string `json:"name"`
	} `json:"redirects"`
}

func (r *Reader) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return r.Logger
}

// Articles implements source.Source.
func (r *Reader) Articles(ctx context.Context, yield func(models.ConvertParams) error) error {
	for _, name := range r.Files {
		if err := r.readDump(ctx, name, yield); err != nil {
			if errors.Is(err, source.ErrStop) {
				return nil
			}
			return err
		}
	}
	return nil
}

func (r *Reader) readDump(ctx context.Context, name string, yield func(models.ConvertParams) error) error {
	name = common.ExpandHome(name)
	r.logger().Info("Reading articles", "file", name)

	f, err := os.Open(name)
	if err != nil {
		return fmt.Errorf("failed to open dump: %w", err)
	}
	defer f.Close()

	start := r.Start
	if start.IsZero() {
		start = Location{File: 1, Line: 1}
	}

	if !strings.HasSuffix(name, ".tar") && !strings.HasSuffix(name, ".tar.gz") {
		if start.File > 1 {
			return nil
		}
		return r.readLines(ctx, f, 1, start, yield)
	}

	var archive io.Reader = f
	if strings.HasSuffix(name, ".gz") {
		zr, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", name, err)
		}
		defer zr.Close()
		archive = zr
	}

	tr := tar.NewReader(archive)
	fileNumber := 0
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", name, err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		fileNumber++
		if fileNumber < start.File {
			continue
		}
		if !r.End.IsZero() && fileNumber > r.End.File {
			return nil
		}
		r.logger().Debug("Reading archive member", "file", name, "member", hdr.Name, "number", fileNumber)
		if err := r.readLines(ctx, tr, fileNumber, start, yield); err != nil {
			return err
		}
	}
}

func (r *Reader) readLines(ctx context.Context, in io.Reader, fileNumber int, start Location, yield func(models.ConvertParams) error) error {
	br := bufio.NewReaderSize(in, 1<<20)
	for lineNumber := 1; ; lineNumber++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, err := br.ReadBytes('\n')
		if len(line) == 0 && err == io.EOF {
			return nil
		}
		if err != nil && err != io.EOF {
			return fmt.Errorf("failed to read line %d: %w", lineNumber, err)
		}

		if fileNumber == start.File && lineNumber < start.Line {
			continue
		}
		if !r.End.IsZero() && fileNumber == r.End.File && lineNumber > r.End.Line {
			return nil
		}

		params, perr := r.parseLine(line)
		if perr != nil {
			r.logger().Error("Failed to read line", "file", fileNumber, "line", lineNumber, "error", perr)
		} else {
			if r.Progress != nil {
				fmt.Fprintf(r.Progress, "%d:%d %s (%d)\n", fileNumber, lineNumber, params.Title, utf8.RuneCountInString(*params.Text))
			}
			if yerr := yield(params); yerr != nil {
				return yerr
			}
		}

		if err == io.EOF {
			return nil
		}
	}
}

func (r *Reader) parseLine(line []byte) (models.ConvertParams, error) {
	var rec record
	if err := json.Unmarshal(line, &rec); err != nil {
		return models.ConvertParams{}, err
	}
	if rec.Name == "" {
		return models.ConvertParams{}, errors.New("record has no name")
	}
	if rec.ArticleBody == nil || rec.ArticleBody.HTML == nil {
		return models.ConvertParams{}, fmt.Errorf("record %q has no article_body.html", rec.Name)
	}
	aliases := make([]string, 0, len(rec.Redirects))
	for _, redirect := range rec.Redirects {
		aliases = append(aliases, redirect.Name)
	}
	return r.Settings.Params(r.Site, ArticlePath, rec.Name, aliases, rec.ArticleBody.HTML), nil
}

// replaceExtensions drops everything after the first dot of the base name
// and appends exts.
func replaceExtensions(path string, exts ...string) string {
	dir, base := filepath.Split(path)
	stem, _, _ := strings.Cut(base, ".")
	return filepath.Join(dir, strings.Join(append([]string{stem}, exts...), "."))
}

// SiteinfoPath returns the siteinfo file expected next to a dump, e.g.
// "enwiki.siteinfo.json" for "enwiki.njson.tar.gz".
func SiteinfoPath(dumpFile string) string {
	return replaceExtensions(common.ExpandHome(dumpFile), "siteinfo", "json")
}

// OutputName returns the default container name for a dump, in the
// current directory.
func OutputName(dumpFile string, ext string) string {
	return replaceExtensions(filepath.Base(dumpFile), strings.TrimPrefix(ext, "."))
}

// ReadSiteinfo reads a siteinfo JSON file.
func ReadSiteinfo(path string) ([]byte, error) {
	data, err := os.ReadFile(common.ExpandHome(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read siteinfo: %w", err)
	}
	return data, nil
}
