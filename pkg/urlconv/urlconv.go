// Package urlconv rewrites links found in wiki article HTML into the form
// used inside a dictionary container: absolute URLs stay absolute, links to
// other articles become container keys, links to non-article namespaces and
// interwiki targets become external URLs.
package urlconv

import (
	"net/url"
	"strings"
)

// DefaultArticlePath is used when a Config has no ArticlePath.
const DefaultArticlePath = "/wiki/"

var imageExtensions = map[string]struct{}{
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"svg":  {},
	"gif":  {},
	"bmp":  {},
}

// keyEscaper turns an article path into a container key usable as a single
// URL path segment. Underscores become spaces because keys are page titles.
var keyEscaper = strings.NewReplacer("/", "%2F", ":", "%3A", "_", "%20")

// Config describes the wiki a link was taken from.
type Config struct {
	// Server is the site base URL, e.g. "https://en.wikipedia.org". May be empty.
	Server string
	// ArticlePath is the article prefix as it appears in the article HTML.
	ArticlePath string
	// SiteArticlePath is the article prefix of the online site.
	SiteArticlePath string
	// Namespaces maps namespace names to ids; links into these namespaces
	// are made external when Server is set.
	Namespaces map[string]int
	// Interwiki maps interwiki prefixes to URL templates containing $1.
	Interwiki map[string]string
	// EnsureExtImageURLs makes links to image files external when Server is
	// set.
	EnsureExtImageURLs bool
}

func (c Config) articlePath() string {
	if c.ArticlePath == "" {
		return DefaultArticlePath
	}
	return c.ArticlePath
}

func (c Config) siteArticlePath() string {
	if c.SiteArticlePath == "" {
		return c.articlePath()
	}
	return c.SiteArticlePath
}

// Resolve rewrites a single href or src value. title is the title of the
// article the link appears in; when the link points to a fragment of that
// same article the result is a bare "#fragment". Pass an empty title to
// disable that.
func (c Config) Resolve(rawURL, title string) string {
	p := split(rawURL)

	if p.netloc != "" {
		if p.scheme == "" {
			p.scheme = "http"
		}
		return p.String()
	}

	path := p.path

	if c.EnsureExtImageURLs && c.Server != "" && IsImage(path) {
		return c.external(rawURL)
	}

	if p.query != "" {
		path += "?" + p.query
		p.query = ""
	}

	articlePath := c.articlePath()
	if strings.HasPrefix(path, articlePath) {
		path = path[len(articlePath):]
		if prefix, _, found := strings.Cut(path, ":"); found {
			if _, ok := c.Namespaces[unquote(prefix)]; ok && c.Server != "" {
				return c.external(rawURL)
			}
		}
	} else if p.scheme != "" {
		if template, ok := c.Interwiki[p.scheme]; ok {
			return interwikiURL(template, path, p.fragment)
		}
	}

	if title != "" && p.fragment != "" && strings.ReplaceAll(title, " ", "_") == path {
		p.path = ""
	} else {
		p.path = keyEscaper.Replace(path)
	}
	return p.String()
}

// ResolveSrcset rewrites the URLs of a srcset attribute value, leaving
// width and density descriptors untouched.
func (c Config) ResolveSrcset(value string) string {
	entries := strings.Split(value, ", ")
	for i, entry := range entries {
		candidate, descriptor, hasDescriptor := strings.Cut(strings.TrimSpace(entry), " ")
		candidate = c.Resolve(candidate, "")
		if hasDescriptor {
			entries[i] = candidate + " " + descriptor
		} else {
			entries[i] = candidate
		}
	}
	return strings.Join(entries, ", ")
}

// external makes a site-relative URL absolute by swapping the local article
// path for the site one.
func (c Config) external(rawURL string) string {
	if rest, ok := strings.CutPrefix(rawURL, c.articlePath()); ok {
		return c.Server + c.siteArticlePath() + rest
	}
	return c.Server + rawURL
}

func interwikiURL(template, path, fragment string) string {
	t := split(template)
	if strings.Contains(t.path, "$1") {
		t.path = strings.ReplaceAll(t.path, "$1", path)
	} else {
		// index.php?title=$1 style templates
		t.query = strings.ReplaceAll(t.query, "$1", path)
	}
	t.fragment = fragment
	if t.scheme == "" {
		t.scheme = "http"
	}
	return t.String()
}

// IsImage reports whether path ends with one of the known image extensions.
func IsImage(path string) bool {
	i := strings.LastIndexByte(path, '.')
	if i < 0 {
		return false
	}
	_, ok := imageExtensions[strings.ToLower(path[i+1:])]
	return ok
}

func unquote(s string) string {
	if u, err := url.PathUnescape(s); err == nil {
		return u
	}
	return s
}
