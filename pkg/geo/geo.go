// Package geo replaces the coordinate microformats found in wiki articles
// with geo: links a dictionary reader can hand to a map application.
package geo

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/dtnitsch/mw2dict/internal/dom"
)

// IconSrc is the container key of the globe icon shown in geo links.
const IconSrc = "~/images/Globe.svg"

var errNoCoordinates = errors.New("geo element without coordinates")

type detector struct {
	name    string
	convert func(*goquery.Document) error
}

var detectors = []detector{
	{name: "geo-nondefault", convert: convertNonDefault},
	{name: "geo", convert: convertLatLon},
	{name: "geo-dms", convert: convertDMS},
}

// Link builds <a href="geo:LAT,LON"><img ...></a>.
func Link(latitude, longitude string) *html.Node {
	href := fmt.Sprintf("geo:%s,%s", strings.TrimSpace(latitude), strings.TrimSpace(longitude))
	return dom.Element("a", dom.Attrs("href", href),
		dom.Element("img", dom.Attrs("class", "a2-geo-link-icon", "src", IconSrc)),
	)
}

// ConvertMicroformats runs all coordinate detectors over doc. A detector
// that fails is logged and skipped; the others still run.
func ConvertMicroformats(doc *goquery.Document, logger *slog.Logger) {
	for _, d := range detectors {
		if err := d.convert(doc); err != nil {
			logger.Error("Failed to convert geo", "detector", d.name, "error", err)
		}
	}
}

// convertNonDefault handles ".geo-nondefault" blocks holding a ".geo" span
// with "lat;lon" text. Links go after the block's parent, the block is dropped.
func convertNonDefault(doc *goquery.Document) error {
	return convertFlagged(doc, ".geo-nondefault", true)
}

// convertDMS handles ".geo-geo-dms" blocks the same way but keeps the block
// and only drops its decimal ".geo-dec" rendition.
func convertDMS(doc *goquery.Document) error {
	return convertFlagged(doc, ".geo-geo-dms", false)
}

func convertFlagged(doc *goquery.Document, selector string, dropBlock bool) error {
	for _, block := range doc.Find(selector).EachIter() {
		parent := block.Get(0).Parent
		if parent == nil || parent.Parent == nil {
			return fmt.Errorf("%s element has no parent", selector)
		}
		anchor := parent
		for _, g := range block.Find(".geo").EachIter() {
			latitude, longitude, ok := strings.Cut(dom.LeadingText(g.Get(0)), ";")
			if !ok {
				continue
			}
			link := Link(latitude, longitude)
			dom.InsertAfter(anchor, link)
			anchor = link
		}
		if dropBlock {
			block.Remove()
		} else {
			block.Find(".geo-dec").Remove()
		}
	}
	return nil
}

// convertLatLon handles ".geo" elements with separate ".latitude" and
// ".longitude" children.
func convertLatLon(doc *goquery.Document) error {
	for _, g := range doc.Find(".geo").EachIter() {
		latitude, longitude := g.Find(".latitude"), g.Find(".longitude")
		if latitude.Length() == 0 || longitude.Length() == 0 {
			continue
		}
		lat, lon := dom.LeadingText(latitude.Get(0)), dom.LeadingText(longitude.Get(0))
		if lat == "" || lon == "" {
			return errNoCoordinates
		}
		g.AfterNodes(Link(lat, lon))
		g.Remove()
	}
	return nil
}
