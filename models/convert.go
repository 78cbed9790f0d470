// Package models defines the data structures shared by article sources,
// the conversion pipeline and the coordinator.
package models

// ConvertParams carries everything needed to convert one article.
// A nil Text means the source had no content for the title (redirect,
// missing key, unreadable document); it is converted to an empty result.
type ConvertParams struct {
	Title   string
	Aliases []string
	Text    *string
	RTL     bool
	Server  string

	// ArticlePath is the article path prefix used inside the article HTML,
	// e.g. "./" in enterprise HTML dumps.
	ArticlePath string
	// SiteArticlePath is the article path of the online site, used to build
	// external links. Empty means same as ArticlePath.
	SiteArticlePath string

	Encoding           string
	RemoveEmbeddedBg   string
	EnsureExtImageURLs bool
}

// ConversionResult is the outcome of converting one ConvertParams.
type ConversionResult struct {
	Title   string
	Aliases []string
	// HTML is empty when the article had no content to convert.
	HTML []byte
	// Error is set when the conversion failed; HTML is nil in that case.
	Error string
}

// Failed reports whether the conversion failed.
func (r ConversionResult) Failed() bool {
	return r.Error != ""
}

// Keys returns the title followed by all aliases.
func (r ConversionResult) Keys() []string {
	keys := make([]string, 0, len(r.Aliases)+1)
	keys = append(keys, r.Title)
	return append(keys, r.Aliases...)
}

// StringPtr returns a pointer to s, for building ConvertParams.Text.
func StringPtr(s string) *string {
	return &s
}
