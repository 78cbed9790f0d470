package scrape

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtnitsch/mw2dict/models"
	"github.com/dtnitsch/mw2dict/pkg/fetcher"
)

func doc(html string, aliases ...any) map[string]any {
	return map[string]any{
		"aliases": aliases,
		"parse": map[string]any{
			"text": map[string]any{"*": html},
			"langlinks": []map[string]string{
				{"lang": "de", "*": "Deutsch " + html},
				{"lang": "fr", "*": "Français " + html},
			},
		},
	}
}

// fakeCouch serves _all_docs for a fixed set of documents, paging with
// startkey and limit like CouchDB.
func fakeCouch(t *testing.T, docs map[string]map[string]any) *httptest.Server {
	t.Helper()
	ids := make([]string, 0, len(docs))
	for id := range docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	rowFor := func(id string) map[string]any {
		d, ok := docs[id]
		if !ok {
			return map[string]any{"key": id, "error": "not_found"}
		}
		return map[string]any{"id": id, "key": id, "value": map[string]string{"rev": "1"}, "doc": d}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/enwiki/_all_docs", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "true", q.Get("include_docs"))
		assert.Equal(t, "ok", q.Get("stale"))

		var rows []map[string]any
		if r.Method == http.MethodPost {
			var body struct {
				Keys []string `json:"keys"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			for _, k := range body.Keys {
				rows = append(rows, rowFor(k))
			}
		} else {
			var startKey, endKey string
			if s := q.Get("startkey"); s != "" {
				require.NoError(t, json.Unmarshal([]byte(s), &startKey))
			}
			if s := q.Get("endkey"); s != "" {
				require.NoError(t, json.Unmarshal([]byte(s), &endKey))
			}
			limit, _ := strconv.Atoi(q.Get("limit"))
			for _, id := range ids {
				if id < startKey || (endKey != "" && id > endKey) {
					continue
				}
				if limit > 0 && len(rows) == limit {
					break
				}
				rows = append(rows, rowFor(id))
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"rows": rows})
	})
	mux.HandleFunc("/siteinfo/enwiki", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"_id":"enwiki","general":{"sitename":"Wikipedia","lang":"en"}}`))
	})
	return httptest.NewServer(mux)
}

func testDocs() map[string]map[string]any {
	return map[string]map[string]any{
		"Alpha":   doc("a", "Alpha (letter)", []string{"Greek", "Alpha"}),
		"Beta":    doc("b"),
		"Gamma":   doc("g"),
		"Delta":   doc("d"),
		"Epsilon": {"parse": map[string]any{}},
	}
}

func newReader(srv *httptest.Server) *Reader {
	return &Reader{
		CouchURL: srv.URL + "/enwiki",
		Site:     models.SiteInfo{Server: "https://en.wikipedia.org", ArticlePath: "/wiki/"},
		PageSize: 2,
		Fetcher:  fetcher.NewFetcherWithClient(srv.Client()),
	}
}

func collect(t *testing.T, r *Reader) []models.ConvertParams {
	t.Helper()
	var got []models.ConvertParams
	require.NoError(t, r.Articles(context.Background(), func(p models.ConvertParams) error {
		got = append(got, p)
		return nil
	}))
	return got
}

func titles(params []models.ConvertParams) []string {
	out := make([]string, 0, len(params))
	for _, p := range params {
		out = append(out, p.Title)
	}
	return out
}

func TestAllDocsPaging(t *testing.T) {
	srv := fakeCouch(t, testDocs())
	defer srv.Close()

	got := collect(t, newReader(srv))
	assert.Equal(t, []string{"Alpha", "Beta", "Delta", "Epsilon", "Gamma"}, titles(got))

	alpha := got[0]
	require.NotNil(t, alpha.Text)
	assert.Equal(t, "a", *alpha.Text)
	assert.Equal(t, []string{"Alpha (letter)", "Greek#Alpha"}, alpha.Aliases)
	assert.Equal(t, "/wiki/", alpha.ArticlePath)

	epsilon := got[3]
	assert.Nil(t, epsilon.Text, "unreadable document yields no text")
}

func TestAllDocsRange(t *testing.T) {
	srv := fakeCouch(t, testDocs())
	defer srv.Close()

	r := newReader(srv)
	r.StartKey = "Beta"
	r.EndKey = "Epsilon"
	assert.Equal(t, []string{"Beta", "Delta", "Epsilon"}, titles(collect(t, r)))
}

func TestLanglinks(t *testing.T) {
	srv := fakeCouch(t, testDocs())
	defer srv.Close()

	r := newReader(srv)
	r.Keys = []string{"Beta"}
	r.Langlinks = []string{"fr"}
	got := collect(t, r)
	require.Len(t, got, 1)
	assert.Equal(t, []string{"Français b"}, got[0].Aliases)
}

func TestExplicitKeysSkipMissing(t *testing.T) {
	srv := fakeCouch(t, testDocs())
	defer srv.Close()

	r := newReader(srv)
	r.Keys = []string{"Gamma", "Nope", "Beta"}
	assert.Equal(t, []string{"Gamma", "Beta"}, titles(collect(t, r)))
}

func TestKeyFileReportsMissing(t *testing.T) {
	srv := fakeCouch(t, testDocs())
	defer srv.Close()

	keyFile := filepath.Join(t.TempDir(), "keys.txt")
	require.NoError(t, os.WriteFile(keyFile, []byte("Gamma\nNo_Such_Page\n\nBeta\n"), 0o644))

	r := newReader(srv)
	r.KeyFile = keyFile
	got := collect(t, r)

	assert.Equal(t, []string{"Gamma", "No Such Page", "Beta"}, titles(got))
	assert.NotNil(t, got[0].Text)
	assert.Nil(t, got[1].Text)
}

func TestSiteinfo(t *testing.T) {
	srv := fakeCouch(t, testDocs())
	defer srv.Close()

	raw, err := newReader(srv).Siteinfo(context.Background())
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"sitename":"Wikipedia"`)
}

func TestOutputName(t *testing.T) {
	assert.Equal(t, "en.m.wikipedia.dict", OutputName("http://localhost:5984/en.m.wikipedia.org", ".dict"))
	assert.Equal(t, "enwiki.dict", OutputName("http://localhost:5984/enwiki/", "dict"))
}
