// Package worker holds the state one conversion goroutine needs: compiled
// filters and the site's namespace and interwiki lookup tables.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"

	"github.com/dtnitsch/mw2dict/models"
	"github.com/dtnitsch/mw2dict/pkg/converter"
)

// Options configures a Context.
type Options struct {
	Header converter.HeaderStyle
	Logger *slog.Logger
}

// Context is owned by a single goroutine and is not safe for concurrent use.
type Context struct {
	env    converter.Environment
	logger *slog.Logger
}

// NewContext compiles filters and builds the lookup tables of site.
func NewContext(filters []string, site models.SiteInfo, opts Options) (*Context, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	compiled := make([]converter.Filter, 0, len(filters))
	for _, selector := range filters {
		f, err := converter.CompileFilter(selector)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, f)
	}

	return &Context{
		env: converter.Environment{
			Filters:    compiled,
			Namespaces: NamespaceTable(site.Namespaces),
			Interwiki:  InterwikiTable(site.Interwiki),
			Header:     opts.Header,
			Logger:     logger,
		},
		logger: logger,
	}, nil
}

// InterwikiTable maps interwiki prefixes to URL templates. Entries missing
// either field are skipped.
func InterwikiTable(entries []models.InterwikiEntry) map[string]string {
	table := make(map[string]string, len(entries))
	for _, e := range entries {
		if e.Prefix == "" || e.URL == "" {
			continue
		}
		table[e.Prefix] = e.URL
	}
	return table
}

// NamespaceTable maps namespace names, canonical names and their lower
// case forms to namespace ids. The main namespace is left out.
func NamespaceTable(namespaces map[int]models.Namespace) map[string]int {
	table := make(map[string]int, len(namespaces)*4)
	for id, ns := range namespaces {
		if id == 0 {
			continue
		}
		for _, name := range []string{ns.Name, ns.Canonical} {
			if name == "" {
				continue
			}
			table[name] = id
			table[strings.ToLower(name)] = id
		}
	}
	return table
}

// Filters returns the compiled filters.
func (c *Context) Filters() []converter.Filter {
	return c.env.Filters
}

// ConvertOne converts a single article. The returned error is non-nil only
// when ctx is done; conversion failures, including panics, are reported in
// the result.
func (c *Context) ConvertOne(ctx context.Context, p models.ConvertParams) (result models.ConversionResult, err error) {
	if err := ctx.Err(); err != nil {
		return models.ConversionResult{}, err
	}

	result = models.ConversionResult{Title: p.Title, Aliases: p.Aliases}
	if p.Text == nil {
		return result, nil
	}

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Panic while converting article", "title", p.Title, "panic", r, "stack", string(debug.Stack()))
			result.HTML = nil
			result.Error = fmt.Sprintf("panic: %v", r)
			err = nil
		}
	}()

	out, convErr := converter.Convert(p, c.env)
	if convErr != nil {
		c.logger.Error("Failed to convert article", "title", p.Title, "error", convErr)
		result.Error = convErr.Error()
		return result, nil
	}
	result.HTML = out
	return result, nil
}
