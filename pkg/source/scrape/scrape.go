// Package scrape reads articles from a CouchDB database filled by the
// mwscrape tool: one document per title holding the parse API response.
package scrape

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/dtnitsch/mw2dict/internal/common"
	"github.com/dtnitsch/mw2dict/models"
	"github.com/dtnitsch/mw2dict/pkg/fetcher"
	"github.com/dtnitsch/mw2dict/pkg/source"
)

// DefaultPageSize is the number of documents requested at once.
const DefaultPageSize = 50

// SiteinfoDB is the database holding one siteinfo document per scraped site.
const SiteinfoDB = "siteinfo"

// Reader is a source.Source over a CouchDB database.
type Reader struct {
	CouchURL string
	Site     models.SiteInfo
	Settings source.Settings

	// StartKey and EndKey bound the titles read in key order.
	StartKey string
	EndKey   string
	// Keys, when set, restricts the run to these titles.
	Keys []string
	// KeyFile names a file with one title per line. Titles it lists that
	// are not in the database yield articles without text.
	KeyFile string
	// Langlinks adds titles of language links in these languages as aliases.
	Langlinks []string

	PageSize int
	Fetcher  *fetcher.Fetcher
	Logger   *slog.Logger
}

type row struct {
	ID    string          `json:"id"`
	Key   string          `json:"key"`
	Error string          `json:"error"`
	Doc   json.RawMessage `json:"doc"`
}

type viewResponse struct {
	Rows []row `json:"rows"`
}

type document struct {
	Aliases []json.RawMessage `json:"aliases"`
	Parse   *struct {
		Text *struct {
			HTML *string `json:"*"`
		} `json:"text"`
		Langlinks []struct {
			Lang  string `json:"lang"`
			Title string `json:"*"`
		} `json:"langlinks"`
	} `json:"parse"`
}

// splitCouchURL separates the server part of a database URL from the
// database name.
func splitCouchURL(couchURL string) (server, db string, err error) {
	u, err := url.Parse(couchURL)
	if err != nil {
		return "", "", fmt.Errorf("invalid CouchDB URL: %w", err)
	}
	db = strings.Trim(u.Path, "/")
	if db == "" {
		return "", "", fmt.Errorf("CouchDB URL %q has no database name", couchURL)
	}
	u.Path, u.RawPath, u.RawQuery, u.Fragment = "", "", "", ""
	return u.String(), db, nil
}

func (r *Reader) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return r.Logger
}

func (r *Reader) fetcher() *fetcher.Fetcher {
	if r.Fetcher == nil {
		return fetcher.NewFetcher()
	}
	return r.Fetcher
}

func (r *Reader) pageSize() int {
	if r.PageSize <= 0 {
		return DefaultPageSize
	}
	return r.PageSize
}

func (r *Reader) allDocsURL() (string, error) {
	server, db, err := splitCouchURL(r.CouchURL)
	if err != nil {
		return "", err
	}
	return server + "/" + url.PathEscape(db) + "/_all_docs", nil
}

// Siteinfo returns the siteinfo document stored for the database.
func (r *Reader) Siteinfo(ctx context.Context) (json.RawMessage, error) {
	server, db, err := splitCouchURL(r.CouchURL)
	if err != nil {
		return nil, err
	}
	var raw json.RawMessage
	if err := r.fetcher().GetJSON(ctx, server+"/"+SiteinfoDB+"/"+url.PathEscape(db), &raw); err != nil {
		return nil, fmt.Errorf("failed to read siteinfo for %s: %w", db, err)
	}
	return raw, nil
}

// Articles implements source.Source.
func (r *Reader) Articles(ctx context.Context, yield func(models.ConvertParams) error) error {
	var err error
	switch {
	case r.KeyFile != "":
		err = r.keyFileDocs(ctx, yield)
	case len(r.Keys) > 0:
		err = r.keyDocs(ctx, r.Keys, false, yield)
	default:
		err = r.allDocs(ctx, yield)
	}
	if errors.Is(err, source.ErrStop) {
		return nil
	}
	return err
}

func (r *Reader) allDocs(ctx context.Context, yield func(models.ConvertParams) error) error {
	endpoint, err := r.allDocsURL()
	if err != nil {
		return err
	}
	pageSize := r.pageSize()
	startKey := r.StartKey

	for {
		q := url.Values{
			"include_docs": {"true"},
			"stale":        {"ok"},
			"limit":        {strconv.Itoa(pageSize + 1)},
		}
		if startKey != "" {
			q.Set("startkey", jsonString(startKey))
		}
		if r.EndKey != "" {
			q.Set("endkey", jsonString(r.EndKey))
		}

		var resp viewResponse
		if err := r.fetcher().GetJSON(ctx, endpoint+"?"+q.Encode(), &resp); err != nil {
			return fmt.Errorf("failed to read documents: %w", err)
		}

		rows := resp.Rows
		more := len(rows) > pageSize
		if more {
			startKey = rows[pageSize].Key
			rows = rows[:pageSize]
		}
		for _, rw := range rows {
			params, ok := r.rowParams(rw)
			if !ok {
				continue
			}
			if err := yield(params); err != nil {
				return err
			}
		}
		if !more {
			return nil
		}
	}
}

func (r *Reader) keyFileDocs(ctx context.Context, yield func(models.ConvertParams) error) error {
	f, err := os.Open(common.ExpandHome(r.KeyFile))
	if err != nil {
		return fmt.Errorf("failed to open key file: %w", err)
	}
	defer f.Close()

	var keys []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		key := strings.ReplaceAll(strings.TrimSpace(scanner.Text()), "_", " ")
		if key != "" {
			keys = append(keys, key)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read key file: %w", err)
	}
	return r.keyDocs(ctx, keys, true, yield)
}

// keyDocs fetches keys in groups of PageSize. With reportMissing, keys the
// database does not have are yielded without text.
func (r *Reader) keyDocs(ctx context.Context, keys []string, reportMissing bool, yield func(models.ConvertParams) error) error {
	endpoint, err := r.allDocsURL()
	if err != nil {
		return err
	}
	q := url.Values{"include_docs": {"true"}, "stale": {"ok"}}
	pageSize := r.pageSize()

	for start := 0; start < len(keys); start += pageSize {
		group := keys[start:min(start+pageSize, len(keys))]

		var resp viewResponse
		body := map[string][]string{"keys": group}
		if err := r.fetcher().PostJSON(ctx, endpoint+"?"+q.Encode(), body, &resp); err != nil {
			return fmt.Errorf("failed to read documents: %w", err)
		}

		found := make(map[string]struct{}, len(group))
		for _, rw := range resp.Rows {
			params, ok := r.rowParams(rw)
			if !ok {
				continue
			}
			found[params.Title] = struct{}{}
			if err := yield(params); err != nil {
				return err
			}
		}
		if !reportMissing {
			continue
		}
		for _, key := range group {
			if _, ok := found[key]; ok {
				continue
			}
			found[key] = struct{}{}
			if err := yield(r.Settings.Params(r.Site, r.Site.ArticlePath, key, nil, nil)); err != nil {
				return err
			}
		}
	}
	return nil
}

// rowParams converts a view row. Rows without a document are skipped;
// documents that cannot be read yield an article without text.
func (r *Reader) rowParams(rw row) (models.ConvertParams, bool) {
	if rw.Error != "" || len(rw.Doc) == 0 || bytes.Equal(rw.Doc, []byte("null")) {
		return models.ConvertParams{}, false
	}
	aliases, text, err := r.readDocument(rw.Doc)
	if err != nil {
		r.logger().Error("Failed to read document", "title", rw.ID, "error", err)
		return r.Settings.Params(r.Site, r.Site.ArticlePath, rw.ID, nil, nil), true
	}
	return r.Settings.Params(r.Site, r.Site.ArticlePath, rw.ID, aliases, text), true
}

func (r *Reader) readDocument(raw json.RawMessage) ([]string, *string, error) {
	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, nil, err
	}
	if doc.Parse == nil || doc.Parse.Text == nil || doc.Parse.Text.HTML == nil {
		return nil, nil, errors.New("document has no parse.text")
	}

	set := make(map[string]struct{})
	for _, a := range doc.Aliases {
		alias, err := decodeAlias(a)
		if err != nil {
			return nil, nil, err
		}
		set[alias] = struct{}{}
	}
	if len(r.Langlinks) > 0 {
		for _, ll := range doc.Parse.Langlinks {
			if ll.Lang != "" && ll.Title != "" && slices.Contains(r.Langlinks, ll.Lang) {
				set[ll.Title] = struct{}{}
			}
		}
	}

	aliases := make([]string, 0, len(set))
	for a := range set {
		aliases = append(aliases, a)
	}
	sort.Strings(aliases)
	return aliases, doc.Parse.Text.HTML, nil
}

// decodeAlias accepts a plain title or a [title, fragment] pair, returned
// as "title#fragment".
func decodeAlias(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var pair []string
	if err := json.Unmarshal(raw, &pair); err != nil {
		return "", fmt.Errorf("invalid alias %s", raw)
	}
	switch len(pair) {
	case 1:
		return pair[0], nil
	case 2:
		if pair[1] == "" {
			return pair[0], nil
		}
		return pair[0] + "#" + pair[1], nil
	}
	return "", fmt.Errorf("invalid alias %s", raw)
}

func jsonString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

// OutputName returns the default container name for a database URL.
func OutputName(couchURL, ext string) string {
	base := path.Base(strings.TrimRight(couchURL, "/"))
	if u, err := url.Parse(couchURL); err == nil && u.Path != "" {
		base = path.Base(strings.TrimRight(u.Path, "/"))
	}
	stem := strings.TrimSuffix(base, path.Ext(base))
	return stem + "." + strings.TrimPrefix(ext, ".")
}
