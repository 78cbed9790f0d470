// Package toc builds a navigation list from the section headings of an
// article.
package toc

import (
	"fmt"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/dtnitsch/mw2dict/internal/dom"
)

const (
	firstLevel = 2
	lastLevel  = 4
)

// Build returns one <li> per linkable heading of level 2 found in
// container, each with nested <ol> items for the level 3 and 4 headings
// under the heading's parent. Headings without an id are skipped.
func Build(container *goquery.Selection) []*html.Node {
	return buildLevel(container, firstLevel)
}

func buildLevel(container *goquery.Selection, level int) []*html.Node {
	if level > lastLevel {
		return nil
	}

	var items []*html.Node
	for _, h := range container.Find(fmt.Sprintf("h%d", level)).EachIter() {
		for _, span := range h.Find("span").EachIter() {
			if dom.Empty(span.Get(0)) {
				span.Remove()
			}
		}

		id, _ := h.Attr("id")
		if id == "" {
			continue
		}

		li := dom.Element("li", nil,
			dom.Element("a", dom.Attrs("href", "#"+id), dom.Text(h.Text())),
		)
		if sub := buildLevel(h.Parent(), level+1); len(sub) > 0 {
			li.AppendChild(dom.Element("ol", nil, sub...))
		}
		items = append(items, li)
	}
	return items
}

// List wraps the items of Build in <div id="a2-toc"><ol class="toc">. When
// there are no linkable headings an empty <div> is returned.
func List(container *goquery.Selection) *html.Node {
	items := Build(container)
	if len(items) == 0 {
		return dom.Element("div", nil)
	}
	return dom.Element("div", dom.Attrs("id", "a2-toc"),
		dom.Element("ol", dom.Attrs("class", "toc"), items...),
	)
}
