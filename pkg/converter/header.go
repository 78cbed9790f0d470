package converter

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/dtnitsch/mw2dict/internal/dom"
	"github.com/dtnitsch/mw2dict/models"
	"github.com/dtnitsch/mw2dict/pkg/toc"
)

// HeaderStyle selects how the article header is rendered.
type HeaderStyle string

const (
	// HeaderDetails renders a collapsible <details> header holding the
	// title link and the table of contents.
	HeaderDetails HeaderStyle = "details"
	// HeaderHeading folds the title link into the first <h1>.
	HeaderHeading HeaderStyle = "heading"
	// HeaderNone adds no header.
	HeaderNone HeaderStyle = "none"
)

// ParseHeaderStyle validates a header style name. An empty name selects
// HeaderDetails.
func ParseHeaderStyle(name string) (HeaderStyle, error) {
	switch HeaderStyle(strings.ToLower(name)) {
	case "", HeaderDetails:
		return HeaderDetails, nil
	case HeaderHeading:
		return HeaderHeading, nil
	case HeaderNone:
		return HeaderNone, nil
	}
	return "", fmt.Errorf("unknown header style %q", name)
}

// articleURL returns the online address of the article: the document's
// dc:isVersionOf link when present, otherwise one built from the site.
func articleURL(doc *goquery.Document, p models.ConvertParams) (string, bool) {
	if href, ok := doc.FindMatcher(matchOnlineLink).First().Attr("href"); ok {
		return href, true
	}
	if p.Server == "" || p.ArticlePath == "" {
		return "", false
	}
	prefix := p.SiteArticlePath
	if prefix == "" {
		prefix = p.ArticlePath
	}
	return p.Server + prefix + quoteTitle(p.Title), true
}

// quoteTitle percent-encodes a title for use in a URL path. Slashes and
// the RFC 3986 unreserved characters are kept, every other byte is escaped.
func quoteTitle(title string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	for i := 0; i < len(title); i++ {
		c := title[i]
		if c == '/' || isUnreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&15])
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return c == '-' || c == '.' || c == '_' || c == '~'
}

func insertHeader(doc *goquery.Document, root *html.Node, p models.ConvertParams, style HeaderStyle) {
	if style == HeaderNone {
		return
	}
	href, ok := articleURL(doc, p)
	if !ok {
		return
	}
	if style == HeaderHeading {
		insertHeading(doc, root, href, p.Title)
		return
	}

	link := dom.Element("a", dom.Attrs("id", "view-online-link", "href", href), dom.Text(p.Title))
	header := dom.Element("details", dom.Attrs("id", "a2-article-header"),
		dom.Element("summary", nil,
			dom.Element("span", dom.Attrs("id", "a2-toc-spacer")),
			dom.Element("span", dom.Attrs("id", "a2-title"), link),
		),
	)

	var contents *html.Node
	if existing := doc.Find("#toc").First(); existing.Length() > 0 {
		contents = existing.Get(0)
		dom.Detach(contents)
	} else {
		contents = toc.List(doc.Selection)
	}
	if hasElementChild(contents) {
		header.AppendChild(contents)
	}
	dom.Prepend(bodyOf(root), header)
}

func insertHeading(doc *goquery.Document, root *html.Node, href, title string) {
	h1 := doc.Find("h1").First()
	if h1.Length() == 0 {
		heading := dom.Element("h1", nil,
			dom.Element("a", dom.Attrs("href", href), dom.Text(title)),
		)
		dom.Prepend(bodyOf(root), heading)
		return
	}

	n := h1.Get(0)
	text := dom.LeadingText(n)
	if text == "" {
		return
	}
	for c := n.FirstChild; c != nil && c.Type == html.TextNode; c = n.FirstChild {
		n.RemoveChild(c)
	}
	n.AppendChild(dom.Element("a", dom.Attrs("href", href), dom.Text(text)))
}

func hasElementChild(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			return true
		}
	}
	return false
}

// bodyOf returns the <body> element of a parsed document, or the first
// element when there is none.
func bodyOf(root *html.Node) *html.Node {
	if body := dom.Find(root, "body"); body != nil {
		return body
	}
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			return c
		}
	}
	return root
}
