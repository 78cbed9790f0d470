// Package sanitize strips active content and page scaffolding from a parsed
// article: scripts, event handlers, javascript: URLs, comments, meta tags,
// embedded objects, frames and form controls. Inline styles and stylesheets
// are kept.
package sanitize

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/dtnitsch/mw2dict/internal/dom"
)

// removed elements are dropped together with their content.
var removed = map[string]struct{}{
	"script":   {},
	"meta":     {},
	"object":   {},
	"embed":    {},
	"applet":   {},
	"param":    {},
	"frame":    {},
	"frameset": {},
	"iframe":   {},
	"button":   {},
	"input":    {},
	"select":   {},
	"textarea": {},
	"title":    {},
}

// unwrapped elements are replaced by their content.
var unwrapped = map[string]struct{}{
	"head":    {},
	"form":    {},
	"blink":   {},
	"marquee": {},
}

// urlAttrs may carry javascript: URLs.
var urlAttrs = map[string]struct{}{
	"href":       {},
	"src":        {},
	"action":     {},
	"formaction": {},
	"background": {},
	"lowsrc":     {},
	"dynsrc":     {},
}

// Clean sanitizes the tree rooted at n in place.
func Clean(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		switch c.Type {
		case html.CommentNode:
			n.RemoveChild(c)
		case html.ElementNode:
			if _, ok := removed[c.Data]; ok {
				n.RemoveChild(c)
				break
			}
			cleanAttrs(c)
			Clean(c)
			if _, ok := unwrapped[c.Data]; ok {
				dom.Unwrap(c)
			}
		}
		c = next
	}
}

func cleanAttrs(n *html.Node) {
	kept := n.Attr[:0]
	for _, a := range n.Attr {
		key := strings.ToLower(a.Key)
		if strings.HasPrefix(key, "on") {
			continue
		}
		if _, ok := urlAttrs[key]; ok && isJavascriptURL(a.Val) {
			continue
		}
		kept = append(kept, a)
	}
	n.Attr = kept
}

func isJavascriptURL(v string) bool {
	v = strings.Map(func(r rune) rune {
		if r <= ' ' {
			return -1
		}
		return r
	}, v)
	v = strings.ToLower(v)
	return strings.HasPrefix(v, "javascript:") || strings.HasPrefix(v, "vbscript:")
}
