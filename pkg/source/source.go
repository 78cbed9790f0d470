// Package source defines where articles come from. Implementations live in
// the dump and scrape subpackages.
package source

import (
	"context"
	"errors"

	"github.com/dtnitsch/mw2dict/models"
)

// ErrStop may be returned by a yield function to end iteration early
// without an error.
var ErrStop = errors.New("stop iteration")

// Source produces articles in order. Articles calls yield once per article
// and stops at the first error yield returns.
type Source interface {
	Articles(ctx context.Context, yield func(models.ConvertParams) error) error
}

// Settings are the per-article conversion options chosen for a run.
type Settings struct {
	Encoding           string
	RemoveEmbeddedBg   string
	EnsureExtImageURLs bool
}

// Params builds the conversion parameters of one article from site.
// articlePath is the prefix article links use inside text.
func (s Settings) Params(site models.SiteInfo, articlePath, title string, aliases []string, text *string) models.ConvertParams {
	return models.ConvertParams{
		Title:              title,
		Aliases:            aliases,
		Text:               text,
		RTL:                site.RTL,
		Server:             site.Server,
		ArticlePath:        articlePath,
		SiteArticlePath:    site.ArticlePath,
		Encoding:           s.Encoding,
		RemoveEmbeddedBg:   s.RemoveEmbeddedBg,
		EnsureExtImageURLs: s.EnsureExtImageURLs,
	}
}
