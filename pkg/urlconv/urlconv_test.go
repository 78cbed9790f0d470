package urlconv

import "testing"

func TestResolve(t *testing.T) {
	tests := []struct {
		name   string
		config Config
		url    string
		title  string
		want   string
	}{
		{
			name: "article link with fragment",
			url:  "/wiki/ABC#xyz",
			want: "ABC#xyz",
		},
		{
			name: "slash in title is escaped",
			url:  "/wiki/ABC/123#xyz",
			want: "ABC%2F123#xyz",
		},
		{
			name:   "root article path",
			config: Config{ArticlePath: "/"},
			url:    "/ABC",
			want:   "ABC",
		},
		{
			name:   "dot article path",
			config: Config{ArticlePath: "./"},
			url:    "./ABC",
			want:   "ABC",
		},
		{
			name:   "dot article path with server",
			config: Config{ArticlePath: "./", Server: "http://simple.wikipedia.org"},
			url:    "./ABC",
			want:   "ABC",
		},
		{
			name:   "protocol relative gets http",
			config: Config{ArticlePath: "/"},
			url:    "//example.com/ABC",
			want:   "http://example.com/ABC",
		},
		{
			name: "plain relative",
			url:  "ABC",
			want: "ABC",
		},
		{
			name:   "interwiki",
			config: Config{Interwiki: map[string]string{"w": "http://en.wikipedia.org/wiki/$1"}},
			url:    "w:ABC",
			want:   "http://en.wikipedia.org/wiki/ABC",
		},
		{
			name:   "interwiki keeps fragment and defaults scheme",
			config: Config{Interwiki: map[string]string{"wikt": "//en.wiktionary.org/wiki/$1"}},
			url:    "wikt:word#English",
			want:   "http://en.wiktionary.org/wiki/word#English",
		},
		{
			name: "namespace link is external",
			config: Config{
				Server:     "http://ru.wikipedia.org",
				Namespaces: map[string]int{"Файл": 6},
			},
			url:  "/wiki/%D0%A4%D0%B0%D0%B9%D0%BB:ABC.gif",
			want: "http://ru.wikipedia.org/wiki/%D0%A4%D0%B0%D0%B9%D0%BB:ABC.gif",
		},
		{
			name:   "namespace link without server stays local",
			config: Config{Namespaces: map[string]int{"Category": 14}},
			url:    "/wiki/Category:Birds",
			want:   "Category%3ABirds",
		},
		{
			name:   "unknown namespace stays local",
			config: Config{Server: "http://en.wikipedia.org", Namespaces: map[string]int{"Category": 14}},
			url:    "/wiki/Star_Trek:_Voyager",
			want:   "Star%20Trek%3A%20Voyager",
		},
		{
			name:   "site article path used for external links",
			config: Config{Server: "https://en.wikipedia.org", ArticlePath: "./", SiteArticlePath: "/wiki/", Namespaces: map[string]int{"Talk": 1}},
			url:    "./Talk:Foo",
			want:   "https://en.wikipedia.org/wiki/Talk:Foo",
		},
		{
			name: "absolute url unchanged",
			url:  "http://images.uncyclomedia.co/uncyclopedia/en/thumb/a/ac/Melone-Cesare-Borgia-BR600.jpg/300px-Melone-Cesare-Borgia-BR600.jpg",
			want: "http://images.uncyclomedia.co/uncyclopedia/en/thumb/a/ac/Melone-Cesare-Borgia-BR600.jpg/300px-Melone-Cesare-Borgia-BR600.jpg",
		},
		{
			name:   "image made external",
			config: Config{Server: "http://ru.wikipedia.org", EnsureExtImageURLs: true},
			url:    "/wiki/%D0%A4%D0%B0%D0%B9%D0%BB:ABC.gif",
			want:   "http://ru.wikipedia.org/wiki/%D0%A4%D0%B0%D0%B9%D0%BB:ABC.gif",
		},
		{
			name:   "image stays a key without server",
			config: Config{ArticlePath: "./", SiteArticlePath: "/wiki/", EnsureExtImageURLs: true},
			url:    "./File:X.jpg",
			want:   "File%3AX.jpg",
		},
		{
			name:  "same page fragment",
			url:   "/wiki/Ab_Def#xyz",
			title: "Ab Def",
			want:  "#xyz",
		},
		{
			name:  "other page fragment",
			url:   "/wiki/Ab_Def#xyz",
			title: "Other",
			want:  "Ab%20Def#xyz",
		},
		{
			name: "query folded into key once",
			url:  "/wiki/A?x=1",
			want: "A?x=1",
		},
		{
			name: "fragment only",
			url:  "#cite_note-1",
			want: "#cite_note-1",
		},
		{
			name: "empty url",
			url:  "",
			want: "",
		},
		{
			name: "geo link",
			url:  "geo:1.5,2.5",
			want: "geo:1.5,2.5",
		},
		{
			name: "stray percent survives",
			url:  "/wiki/100%_pure",
			want: "100%%20pure",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.config.Resolve(tt.url, tt.title)
			if got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.url, got, tt.want)
			}
		})
	}
}

func TestResolveAbsoluteUnchanged(t *testing.T) {
	config := Config{
		Server:             "http://en.wikipedia.org",
		Namespaces:         map[string]int{"Category": 14},
		Interwiki:          map[string]string{"http": "http://broken/$1"},
		EnsureExtImageURLs: true,
	}
	urls := []string{
		"https://example.org/a/b_c:d?e=f#g",
		"http://upload.wikimedia.org/x.png",
		"ftp://example.org/file_name",
	}
	for _, u := range urls {
		if got := config.Resolve(u, "Title"); got != u {
			t.Errorf("Resolve(%q) = %q, want unchanged", u, got)
		}
	}
}

func TestResolveIdempotentOnKeys(t *testing.T) {
	var config Config
	inputs := []string{"/wiki/ABC/123#xyz", "/wiki/Foo_bar:Baz", "/wiki/Plain"}
	for _, in := range inputs {
		once := config.Resolve(in, "")
		twice := config.Resolve(once, "")
		if once != twice {
			t.Errorf("Resolve not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestResolveSrcset(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  string
	}{
		{
			name:  "relative entries unchanged",
			value: "mdn-logo-HD.png 2x, mdn-logo-small.png 15w, mdn-banner-HD.png 100w 2x",
			want:  "mdn-logo-HD.png 2x, mdn-logo-small.png 15w, mdn-banner-HD.png 100w 2x",
		},
		{
			name:  "protocol relative entries",
			value: "//example.com/mdn-logo-HD.png 2x, //example.com/mdn-logo-small.png 15w",
			want:  "http://example.com/mdn-logo-HD.png 2x, http://example.com/mdn-logo-small.png 15w",
		},
		{
			name:  "mixed entries",
			value: "http://example.com/mdn-logo-HD.png 2x, //example.com/mdn-logo-small.png 15w",
			want:  "http://example.com/mdn-logo-HD.png 2x, http://example.com/mdn-logo-small.png 15w",
		},
		{
			name:  "commas inside url",
			value: "https://maps.wikimedia.org/img/osm-intl,12,a,a,270x200@2x.png?lang=en&amp;groups=_69ef",
			want:  "https://maps.wikimedia.org/img/osm-intl,12,a,a,270x200@2x.png?lang=en&amp;groups=_69ef",
		},
		{
			name:  "descriptor untouched",
			value: "/wiki/File_a.png 1_5x",
			want:  "File%20a.png 1_5x",
		},
	}

	var config Config
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := config.ResolveSrcset(tt.value); got != tt.want {
				t.Errorf("ResolveSrcset() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsImage(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/a/bb/ccc/file.jpg", true},
		{"/a/bb/ccc/file.JPEG", true},
		{"/a/jpg", false},
		{"/a/jpg.pdf", false},
		{"Globe.svg", true},
	}
	for _, tt := range tests {
		if got := IsImage(tt.path); got != tt.want {
			t.Errorf("IsImage(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}
