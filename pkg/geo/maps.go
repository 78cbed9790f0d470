package geo

import (
	"fmt"
	"log/slog"
	"math"
	"strconv"

	"github.com/PuerkitoBio/goquery"
)

// kartographer attributes that only make sense to the online map widget
var mapDataAttrs = []string{"data-overlays", "data-style", "data-height", "data-width"}

// ConvertMaps turns interactive kartographer map links into plain links to
// openstreetmap.org with a static tile as preview. Map links that cannot be
// converted are removed.
func ConvertMaps(doc *goquery.Document, logger *slog.Logger) {
	for _, a := range doc.Find("a.mw-kartographer-map").EachIter() {
		if err := convertMap(a); err != nil {
			logger.Debug("Failed to convert map", "error", err)
			a.Remove()
		}
	}
}

func convertMap(a *goquery.Selection) error {
	lat, err := floatAttr(a, "data-lat")
	if err != nil {
		return err
	}
	lon, err := floatAttr(a, "data-lon")
	if err != nil {
		return err
	}
	zoomAttr, _ := a.Attr("data-zoom")
	zoom, err := strconv.Atoi(zoomAttr)
	if err != nil {
		return fmt.Errorf("invalid data-zoom %q: %w", zoomAttr, err)
	}

	x, y := TileNumbers(lat, lon, zoom)
	tileURL := fmt.Sprintf("https://tile.openstreetmap.org/%d/%d/%d.png", zoom, x, y)
	mapURL := fmt.Sprintf("https://www.openstreetmap.org/#map=%d/%s/%s",
		zoom, strconv.FormatFloat(lat, 'f', -1, 64), strconv.FormatFloat(lon, 'f', -1, 64))

	a.RemoveAttr("data-lat").RemoveAttr("data-lon").RemoveAttr("data-zoom")
	for _, name := range mapDataAttrs {
		a.RemoveAttr(name)
	}
	a.SetAttr("href", mapURL)
	a.SetAttr("target", "_blank")
	a.Find("img").RemoveAttr("srcset").SetAttr("src", tileURL)
	return nil
}

func floatAttr(s *goquery.Selection, name string) (float64, error) {
	v, ok := s.Attr(name)
	if !ok {
		return 0, fmt.Errorf("missing %s", name)
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, v, err)
	}
	return f, nil
}

// TileNumbers returns the OpenStreetMap slippy map tile containing the
// given coordinates at zoom.
func TileNumbers(lat, lon float64, zoom int) (x, y int) {
	latRad := lat * math.Pi / 180
	n := math.Exp2(float64(zoom))
	x = int((lon + 180.0) / 360.0 * n)
	y = int((1.0 - math.Asinh(math.Tan(latRad))/math.Pi) / 2.0 * n)
	return x, y
}
