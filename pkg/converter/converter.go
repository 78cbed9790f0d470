// Package converter turns the HTML of a single wiki article into the
// self-contained HTML stored in a dictionary container.
package converter

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/dtnitsch/mw2dict/internal/dom"
	"github.com/dtnitsch/mw2dict/models"
	"github.com/dtnitsch/mw2dict/pkg/geo"
	"github.com/dtnitsch/mw2dict/pkg/sanitize"
	"github.com/dtnitsch/mw2dict/pkg/urlconv"
)

const stylesheets = `<link rel="stylesheet" href="~/css/shared.css" type="text/css">` +
	`<link rel="stylesheet" href="~/css/mediawiki_shared.css" type="text/css">` +
	`<link rel="stylesheet" href="~/css/mediawiki_monobook.css" type="text/css">` +
	`<link rel="alternate stylesheet" href="~/css/night.css" type="text/css" title="Night">`

const mathScripts = `<script src="~/js/jquery-2.2.4.min.js"></script>` +
	`<script src="~/MathJax/MathJax.js"></script>` +
	`<script src="~/MathJax/MediaWiki.js"></script>`

var blankLines = regexp.MustCompile(`\n{2,}`)

var (
	matchIPALinks   = cascadia.MustCompile("span.IPA > a")
	matchRedLinks   = cascadia.MustCompile("a.new")
	matchAutonum    = cascadia.MustCompile("a.autonumber")
	matchOnlineLink = cascadia.MustCompile(`link[rel="dc:isVersionOf"]`)
	matchMath       = cascadia.MustCompile("img.tex, .mwe-math-fallback-png-display, " +
		".mwe-math-fallback-image-inline, .mwe-math-fallback-png-inline, " +
		".mwe-math-fallback-source-display, .mwe-math-fallback-source-inline, strong.texerror")
	matchTexImages = cascadia.MustCompile("img.tex, img.mwe-math-fallback-image-inline")
	matchSections  = cascadia.MustCompile("section[data-mw-section-id]")
)

// Environment is the per-worker state shared by all conversions: compiled
// filters and the site's namespace and interwiki tables.
type Environment struct {
	Filters    []Filter
	Namespaces map[string]int
	Interwiki  map[string]string
	Header     HeaderStyle
	Logger     *slog.Logger
}

func (env Environment) logger() *slog.Logger {
	if env.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return env.Logger
}

// Convert runs the article in p through the full transformation and returns
// the encoded result. A nil Text is converted as an empty document.
func Convert(p models.ConvertParams, env Environment) ([]byte, error) {
	logger := env.logger().With("title", p.Title)

	var text string
	if p.Text != nil {
		text = blankLines.ReplaceAllString(*p.Text, "\n")
	}
	root, err := html.ParseWithOptions(strings.NewReader(text), html.ParseOptionEnableScripting(false))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	sanitize.Clean(root)
	doc := goquery.NewDocumentFromNode(root)

	geo.ConvertMicroformats(doc, logger)

	for _, f := range env.Filters {
		m, err := f.Matcher()
		if err != nil {
			return nil, err
		}
		doc.FindMatcher(m).Remove()
	}

	doc.Find("head, base").Remove()

	for _, n := range doc.FindMatcher(matchIPALinks).Nodes {
		dom.Unwrap(n)
	}
	for _, n := range doc.FindMatcher(matchRedLinks).Nodes {
		dom.Unwrap(n)
	}

	if err := stripEmbeddedBackgrounds(doc, p.RemoveEmbeddedBg, logger); err != nil {
		return nil, err
	}

	geo.ConvertMaps(doc, logger)

	resolver := urlconv.Config{
		Server:             p.Server,
		ArticlePath:        p.ArticlePath,
		SiteArticlePath:    p.SiteArticlePath,
		Namespaces:         env.Namespaces,
		Interwiki:          env.Interwiki,
		EnsureExtImageURLs: p.EnsureExtImageURLs,
	}
	rewriteLinks(doc, resolver, p.Title)
	numberAutonumberLinks(doc)
	stripEditorAttrs(doc)

	hasMath := doc.FindMatcher(matchMath).Length() > 0
	if hasMath {
		doc.FindMatcher(matchTexImages).RemoveAttr("src").RemoveAttr("srcset")
	}

	insertHeader(doc, root, p, env.Header)
	doc.Find("link").Remove()

	rendered, err := renderChildren(bodyOf(root))
	if err != nil {
		return nil, fmt.Errorf("failed to serialize HTML: %w", err)
	}

	var out strings.Builder
	out.WriteString(stylesheets)
	if hasMath {
		out.WriteString(mathScripts)
	}
	if p.RTL {
		out.WriteString(`<div dir="rtl" class="rtl">`)
		out.WriteString(rendered)
		out.WriteString(`</div>`)
	} else {
		out.WriteString(rendered)
	}
	return encode(out.String(), p.Encoding)
}

// rewriteLinks resolves every href, and the src and srcset of every element
// that has a src.
func rewriteLinks(doc *goquery.Document, resolver urlconv.Config, title string) {
	for _, item := range doc.Find("[href]").EachIter() {
		href, _ := item.Attr("href")
		item.SetAttr("href", resolver.Resolve(href, title))
	}
	for _, item := range doc.Find("[src]").EachIter() {
		src, _ := item.Attr("src")
		item.SetAttr("src", resolver.Resolve(src, title))
		if srcset, ok := item.Attr("srcset"); ok && srcset != "" {
			item.SetAttr("srcset", resolver.ResolveSrcset(srcset))
		}
	}
}

// numberAutonumberLinks labels external links rendered without text as
// "[1]", "[2]" and so on, counting every autonumber link in the document.
func numberAutonumberLinks(doc *goquery.Document) {
	for i, n := range doc.FindMatcher(matchAutonum).Nodes {
		if dom.LeadingText(n) == "" {
			dom.Prepend(n, dom.Text("["+strconv.Itoa(i+1)+"]"))
		}
	}
}

// stripEditorAttrs removes attributes only the wiki's visual editor uses.
func stripEditorAttrs(doc *goquery.Document) {
	doc.Find("[data-mw]").RemoveAttr("data-mw")
	doc.FindMatcher(matchSections).RemoveAttr("data-mw-section-id")
	for _, item := range doc.Find("[id]").EachIter() {
		if id, _ := item.Attr("id"); strings.HasPrefix(id, "mw") {
			item.RemoveAttr("id")
		}
	}
	doc.Find("[typeof]").RemoveAttr("typeof")
	doc.Find("a[rel]").RemoveAttr("rel")
	doc.Find("[about]").RemoveAttr("about")
	doc.Find("[title]").RemoveAttr("title")
}

func renderChildren(n *html.Node) (string, error) {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&b, c); err != nil {
			return "", err
		}
	}
	return b.String(), nil
}
