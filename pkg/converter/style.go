package converter

import (
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/aymerick/douceur/parser"
)

// stripEmbeddedBackgrounds removes background declarations from the style
// attribute of every element matched by selectors. Elements whose style
// cannot be parsed are left as they are.
func stripEmbeddedBackgrounds(doc *goquery.Document, selectors string, logger *slog.Logger) error {
	matchers, err := compileSelectorList(selectors)
	if err != nil {
		return err
	}
	for _, m := range matchers {
		for _, item := range doc.FindMatcher(m).EachIter() {
			style, ok := item.Attr("style")
			if !ok {
				continue
			}
			stripped, err := stripBackground(style)
			if err != nil {
				logger.Error("Failed to parse style attribute", "style", style, "error", err)
				continue
			}
			item.SetAttr("style", stripped)
		}
	}
	return nil
}

func stripBackground(style string) (string, error) {
	style = strings.TrimSpace(style)
	if style == "" {
		return "", nil
	}
	// the last declaration loses its value unless terminated
	if !strings.HasSuffix(style, ";") {
		style += ";"
	}
	declarations, err := parser.ParseDeclarations(style)
	if err != nil {
		return "", err
	}
	kept := make([]string, 0, len(declarations))
	for _, d := range declarations {
		switch strings.ToLower(strings.TrimSpace(d.Property)) {
		case "background", "background-color":
			continue
		}
		kept = append(kept, d.String())
	}
	return strings.Join(kept, " "), nil
}
