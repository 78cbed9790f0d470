package worker

import (
	"context"
	"strings"
	"testing"

	"github.com/dtnitsch/mw2dict/models"
)

func testSite() models.SiteInfo {
	return models.SiteInfo{
		Server:      "http://en.wikipedia.org",
		ArticlePath: "/wiki/",
		Interwiki: []models.InterwikiEntry{
			{Prefix: "w", URL: "http://en.wikipedia.org/wiki/$1"},
			{Prefix: "", URL: "http://nowhere.example/$1"},
			{Prefix: "broken"},
		},
		Namespaces: map[int]models.Namespace{
			0:  {ID: 0, Name: ""},
			6:  {ID: 6, Name: "Файл", Canonical: "File"},
			14: {ID: 14, Name: "Category", Canonical: "Category"},
		},
	}
}

func TestNewContext(t *testing.T) {
	ctx, err := NewContext([]string{".navbox", `div:contains("x")`}, testSite(), Options{})
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}

	filters := ctx.Filters()
	if len(filters) != 2 {
		t.Fatalf("got %d filters, want 2", len(filters))
	}
	if filters[0].Literal() {
		t.Error("plain selector should be precompiled")
	}
	if !filters[1].Literal() {
		t.Error(":contains selector should be kept literal")
	}
}

func TestNewContextInvalidFilter(t *testing.T) {
	if _, err := NewContext([]string{"div["}, testSite(), Options{}); err == nil {
		t.Fatal("expected error for invalid selector")
	}
}

func TestInterwikiTable(t *testing.T) {
	table := InterwikiTable(testSite().Interwiki)
	if len(table) != 1 {
		t.Fatalf("got %d entries, want 1: %v", len(table), table)
	}
	if table["w"] != "http://en.wikipedia.org/wiki/$1" {
		t.Errorf("unexpected template %q", table["w"])
	}
}

func TestNamespaceTable(t *testing.T) {
	table := NamespaceTable(testSite().Namespaces)

	tests := []struct {
		name string
		want int
		ok   bool
	}{
		{name: "Файл", want: 6, ok: true},
		{name: "файл", want: 6, ok: true},
		{name: "File", want: 6, ok: true},
		{name: "file", want: 6, ok: true},
		{name: "category", want: 14, ok: true},
		{name: "", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := table[tt.name]
			if ok != tt.ok || got != tt.want {
				t.Errorf("table[%q] = %d, %v; want %d, %v", tt.name, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestConvertOne(t *testing.T) {
	wctx, err := NewContext([]string{".navbox"}, testSite(), Options{})
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}

	tests := []struct {
		name       string
		params     models.ConvertParams
		wantFailed bool
		wantEmpty  bool
		contains   string
	}{
		{
			name: "converted",
			params: models.ConvertParams{
				Title:       "A",
				Aliases:     []string{"B"},
				Text:        models.StringPtr(`<div class="navbox">nav</div><p><a href="/wiki/Category:Birds">birds</a></p>`),
				Server:      "http://en.wikipedia.org",
				ArticlePath: "/wiki/",
				Encoding:    "utf-8",
			},
			contains: `href="http://en.wikipedia.org/wiki/Category:Birds"`,
		},
		{
			name:      "nil text",
			params:    models.ConvertParams{Title: "Missing"},
			wantEmpty: true,
		},
		{
			name: "bad encoding fails",
			params: models.ConvertParams{
				Title:    "Bad",
				Text:     models.StringPtr("<p>x</p>"),
				Encoding: "no-such-charset",
			},
			wantFailed: true,
			wantEmpty:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := wctx.ConvertOne(context.Background(), tt.params)
			if err != nil {
				t.Fatalf("ConvertOne: %v", err)
			}
			if result.Title != tt.params.Title {
				t.Errorf("Title = %q, want %q", result.Title, tt.params.Title)
			}
			if result.Failed() != tt.wantFailed {
				t.Errorf("Failed() = %v (%s), want %v", result.Failed(), result.Error, tt.wantFailed)
			}
			if (len(result.HTML) == 0) != tt.wantEmpty {
				t.Errorf("HTML empty = %v, want %v", len(result.HTML) == 0, tt.wantEmpty)
			}
			if tt.contains != "" {
				out := string(result.HTML)
				if !strings.Contains(out, tt.contains) {
					t.Errorf("output missing %q: %s", tt.contains, out)
				}
				if strings.Contains(out, "navbox") {
					t.Errorf("filtered element kept: %s", out)
				}
			}
		})
	}
}

func TestConvertOneCancelled(t *testing.T) {
	wctx, err := NewContext(nil, testSite(), Options{})
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = wctx.ConvertOne(ctx, models.ConvertParams{Title: "A", Text: models.StringPtr("<p>x</p>")})
	if err != context.Canceled {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
